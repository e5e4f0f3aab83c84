package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis run history",
	Long:  "Commands for listing, viewing, and summarizing analysis runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		product, _ := cmd.Flags().GetString("product")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:            model.RunStatus(status),
			ProductIdentifier: product,
			Limit:             limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		format, _ := cmd.Flags().GetString("format")
		return writeOutput(os.Stdout, format, run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate task statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		since, _ := cmd.Flags().GetDuration("since")
		if since > 0 {
			runs = runsSince(runs, time.Now().Add(-since))
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, stopped)")
	runsListCmd.Flags().String("product", "", "filter by product identifier")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().String("format", "json", "output format: json or yaml")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h); 0 for all")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

func runsSince(runs []model.AnalysisRun, after time.Time) []model.AnalysisRun {
	out := runs[:0:0]
	for _, r := range runs {
		if !r.CreatedAt.Before(after) {
			out = append(out, r)
		}
	}
	return out
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Runs        int
	Complete    int
	Stopped     int
	Running     int
	Tasks       int
	Completed   int
	Fallbacks   int
	Errors      int
	AvgConf     float64
	AvgTaskSecs float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.AnalysisRun) runStats {
	var s runStats
	s.Runs = len(runs)

	var confSum float64
	var totalDur time.Duration
	var durCount int

	for i := range runs {
		r := &runs[i]
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
		case model.RunStatusStopped:
			s.Stopped++
		default:
			s.Running++
		}

		for _, t := range r.Tools {
			s.Tasks++
			switch t.Status {
			case model.TaskCompleted:
				s.Completed++
				confSum += t.ConfidenceScore
				if t.Fallback {
					s.Fallbacks++
				}
			case model.TaskError:
				s.Errors++
			}
			if d := t.Duration(); d > 0 {
				totalDur += d
				durCount++
			}
		}
	}

	if s.Completed > 0 {
		s.AvgConf = confSum / float64(s.Completed)
	}
	if durCount > 0 {
		s.AvgTaskSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.AnalysisRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPRODUCT\tSTATUS\tDONE\tFALLBACK\tERRORS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t----\t--------\t------\t-------\t--------")

	for i := range runs {
		r := &runs[i]
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}

		product := r.Product.Identifier
		if r.Product.Name != "" && r.Product.Name != r.Product.Identifier {
			product = r.Product.Name
		}

		s := r.Summary()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			clip(product, 30),
			r.Status,
			s.Completed, s.Total,
			s.Fallbacks,
			s.Errors,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Runs)
	_, _ = fmt.Fprintf(w, "  Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "  Stopped:\t%d\n", s.Stopped)
	_, _ = fmt.Fprintf(w, "  Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Tasks:\t%d\n", s.Tasks)
	_, _ = fmt.Fprintf(w, "  Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "  Fallback:\t%d\n", s.Fallbacks)
	_, _ = fmt.Fprintf(w, "  Errors:\t%d\n", s.Errors)
	if s.Completed > 0 {
		_, _ = fmt.Fprintf(w, "Avg confidence:\t%.2f\n", s.AvgConf)
	}
	if s.AvgTaskSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg task time:\t%.1fs\n", s.AvgTaskSecs)
	}
	_ = w.Flush()
}
