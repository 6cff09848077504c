package search

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// PollFunc performs one completion check.
type PollFunc func(ctx context.Context) (bool, error)

// Wait calls poll until it reports completion, an error occurs, or ctx is
// done. Calls are paced by limiter; a nil limiter polls back to back.
func Wait(ctx context.Context, poll PollFunc, limiter *rate.Limiter) error {
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("wait for job: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("wait for job: %w", err)
		}

		done, err := poll(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
