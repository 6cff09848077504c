package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/models"
	"github.com/raphaelgruber/splunkgo/internal/results"
	"github.com/raphaelgruber/splunkgo/internal/search"
)

var (
	searchWait      bool
	searchEarliest  string
	searchLatest    string
	searchCount     int
	searchOutputDir string
	searchMode      string
	searchJSON      bool
	searchStats     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Submit a search job",
	Long: `Submit a search job to splunkd and print its SID.

With --wait the command polls until the job is done, then fetches the
results in every output mode and prints them as a table (or JSON rows with
--json). On a terminal a progress bar is shown; Ctrl+C leaves the job
running in the background.

Queries that do not start with "search" or "|" are prefixed with "search ".

Examples:
  splunk search "index=_internal | head 5"
  splunk search "index=main error" --earliest -1h --wait
  splunk search "| makeresults count=3" --wait --output-dir ./out --mode csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVarP(&searchWait, "wait", "w", false, "wait for the job and print its results")
	searchCmd.Flags().StringVar(&searchEarliest, "earliest", "", "earliest time bound (e.g. -24h)")
	searchCmd.Flags().StringVar(&searchLatest, "latest", "", "latest time bound (e.g. now)")
	searchCmd.Flags().IntVarP(&searchCount, "count", "n", 0, "max results to fetch (0 = all)")
	searchCmd.Flags().StringVarP(&searchOutputDir, "output-dir", "o", "", "write raw results to this directory")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(models.OutputCSV), "output mode for --output-dir")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON rows")
	searchCmd.Flags().BoolVar(&searchStats, "stats", false, "print operation timings")
}

func searchOptions() search.Options {
	opts := search.Options{}
	if searchEarliest != "" {
		opts["earliest_time"] = searchEarliest
	}
	if searchLatest != "" {
		opts["latest_time"] = searchLatest
	}
	return opts
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	out := cmd.OutOrStdout()

	var mode models.OutputMode
	if searchOutputDir != "" {
		var err error
		if mode, err = models.ParseOutputMode(searchMode); err != nil {
			return err
		}
		if !searchWait {
			return errors.New("--output-dir requires --wait")
		}
	}

	sess, err := newSession(ctx)
	if err != nil {
		return err
	}

	sid, err := sess.RecordAndSubmit(ctx, args[0], searchOptions())
	if err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	if !searchWait {
		fmt.Fprintln(out, sid)
		return nil
	}

	detached, err := waitForJob(ctx, sess, sid)
	if err != nil {
		return err
	}
	if detached {
		return nil
	}

	fetchOpts := search.Options{}
	if searchCount > 0 {
		fetchOpts["count"] = strconv.Itoa(searchCount)
	}
	if _, err := sess.Fetch(ctx, fetchOpts); err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}

	job := sess.Current()
	printMessages(cmd.ErrOrStderr(), job.Messages())
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job.Rows()); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		printTable(out, job.CSV())
	}

	if searchOutputDir != "" {
		path, err := sess.WriteResults(ctx, searchOutputDir, mode)
		if err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	}

	if searchStats {
		printStats(out, collector.Snapshot())
	}
	return nil
}

// waitForJob blocks until the current job is done. On a terminal it drives
// the progress UI; otherwise it polls at the configured interval.
func waitForJob(ctx context.Context, sess *search.Session, sid string) (detached bool, err error) {
	if isInteractive() {
		status := func(ctx context.Context) (models.JobContent, error) {
			if _, err := sess.Poll(ctx); err != nil {
				return nil, err
			}
			return sess.Current().Content(), nil
		}
		return runJobProgress(sid, status, cfg.PollInterval)
	}

	poll := func(ctx context.Context) (bool, error) {
		done, err := sess.Poll(ctx)
		if err != nil {
			return false, err
		}
		return done || sess.Current().Content().IsFailed(), nil
	}
	limiter := rate.NewLimiter(rate.Every(cfg.PollInterval), 1)
	if err := search.Wait(ctx, poll, limiter); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Search %s continues in background.\n", sid)
			return true, nil
		}
		return false, err
	}
	if sess.Current().Content().IsFailed() {
		return false, fmt.Errorf("search job %s failed", sid)
	}
	return false, nil
}

func printTable(w io.Writer, t *results.Table) {
	if t == nil || t.Len() == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func printMessages(w io.Writer, msgs models.Messages) {
	severities := make([]string, 0, len(msgs))
	for sev := range msgs {
		severities = append(severities, sev)
	}
	sort.Strings(severities)
	for _, sev := range severities {
		fmt.Fprintf(w, "%s: %s\n", sev, msgs[sev])
	}
}

func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\n%-16s %6s %6s %10s %10s\n", "OPERATION", "COUNT", "ERRORS", "AVG(ms)", "MAX(ms)")
	fmt.Fprintln(w, "----------------------------------------------------------")
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%-16s %6d %6d %10.1f %10d\n", op.Name, op.Count, op.Errors, op.AvgTimeMs, op.MaxTimeMs)
	}
}
