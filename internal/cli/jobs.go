package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var jobsDelete bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect or cancel search jobs",
	Long: `Inspect or cancel search jobs by SID.

Examples:
  splunk jobs status 1700000000.42
  splunk jobs cancel 1700000000.42 1700000000.43
  splunk jobs cancel 1700000000.42 --delete`,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <sid>",
	Short: "Show the status of a search job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <sid>...",
	Short: "Cancel one or more search jobs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	jobsCancelCmd.Flags().BoolVar(&jobsDelete, "delete", false, "delete job artifacts instead of only cancelling")

	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := connectSplunk(ctx)
	if err != nil {
		return err
	}

	content, err := client.Job(args[0]).Refresh(ctx)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job: %s\n", args[0])
	fmt.Fprintf(out, "  State: %s\n", content.DispatchState())
	fmt.Fprintf(out, "  Progress: %.0f%%\n", content.DoneProgress()*100)
	fmt.Fprintf(out, "  Done: %t\n", content.IsDone())
	if content.IsFailed() {
		fmt.Fprintln(out, "  Failed: true")
	}
	fmt.Fprintf(out, "  Events: %d\n", content.EventCount())
	fmt.Fprintf(out, "  Results: %d\n", content.ResultCount())
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := connectSplunk(ctx)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, sid := range args {
		g.Go(func() error {
			handle := client.Job(sid)
			if jobsDelete {
				if err := handle.Delete(gCtx); err != nil {
					return fmt.Errorf("delete job %s: %w", sid, err)
				}
				return nil
			}
			if err := handle.Cancel(gCtx); err != nil {
				return fmt.Errorf("cancel job %s: %w", sid, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	printCancelled(cmd.OutOrStdout(), args, jobsDelete)
	return nil
}

func printCancelled(w io.Writer, sids []string, deleted bool) {
	verb := "Cancelled"
	if deleted {
		verb = "Deleted"
	}
	for _, sid := range sids {
		fmt.Fprintf(w, "%s %s\n", verb, sid)
	}
}
