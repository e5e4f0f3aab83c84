package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List persisted task results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, _ := cmd.Flags().GetString("run")
		tool, _ := cmd.Flags().GetString("tool")
		product, _ := cmd.Flags().GetString("product")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		recs, err := st.ListTaskResults(ctx, store.ResultFilter{
			RunID:             runID,
			ToolID:            tool,
			ProductIdentifier: product,
			Limit:             limit,
		})
		if err != nil {
			return eris.Wrap(err, "results list")
		}

		if format != "table" {
			return writeOutput(os.Stdout, format, recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}
		formatResults(os.Stdout, recs)
		return nil
	},
}

func init() {
	resultsCmd.Flags().String("run", "", "filter by run id")
	resultsCmd.Flags().String("tool", "", "filter by task id")
	resultsCmd.Flags().String("product", "", "filter by product identifier")
	resultsCmd.Flags().Int("limit", 50, "max number of results")
	resultsCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(resultsCmd)
}

// formatResults writes a tabular list of task records to w.
func formatResults(out io.Writer, recs []model.TaskRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tPRODUCT\tTASK\tSTATUS\tCONF\tFALLBACK\tMODEL\tTIME")
	_, _ = fmt.Fprintln(w, "---\t-------\t----\t------\t----\t--------\t-----\t----")

	for _, r := range recs {
		fallback := ""
		if r.Fallback {
			fallback = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\t%dms\n",
			truncateID(r.RunID),
			clip(r.ProductIdentifier, 20),
			r.ToolID,
			r.Status,
			r.ConfidenceScore,
			fallback,
			r.ModelUsed,
			r.ProcessingTimeMs,
		)
	}
	_ = w.Flush()
}
