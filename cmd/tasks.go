package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/product-analyzer/internal/tasks"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the analysis task catalogue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatTasks(os.Stdout, tasks.Default())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func formatTasks(out io.Writer, reg *tasks.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tCONFIDENCE")
	for _, t := range reg.All() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", t.ID, t.Name, t.Category, t.DefaultConfidence)
	}
	_ = w.Flush()
}
