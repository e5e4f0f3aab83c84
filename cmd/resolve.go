package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/product-analyzer/internal/fetch"
	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/search"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <code>",
	Short: "Find identity candidates for a product code",
	Long: "Searches the web for a product code, scores the pages that mention it " +
		"and prints ranked name candidates. --confirm or --auto-confirm records " +
		"the chosen name for later analyses.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		code := strings.TrimSpace(args[0])

		confirm, _ := cmd.Flags().GetString("confirm")
		autoConfirm, _ := cmd.Flags().GetBool("auto-confirm")
		format, _ := cmd.Flags().GetString("format")

		if !model.IsCode(code) {
			return eris.Errorf("resolve: %q is not an 8 to 13 digit product code", code)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cache, err := identity.NewCache(cfg.Identity.CacheSize, st)
		if err != nil {
			return err
		}

		if confirm != "" {
			id, err := cache.Confirm(ctx, code, confirm)
			if err != nil {
				return eris.Wrap(err, "resolve confirm")
			}
			return writeConfirmed(format, id)
		}

		if id, ok := cache.Get(ctx, code); ok {
			fmt.Fprintf(os.Stderr, "Already confirmed on %s.\n", id.ConfirmedAt.Format(time.DateOnly))
			return writeConfirmed(format, id)
		}

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}
		searcher, err := search.New(cfg)
		if err != nil {
			return eris.Wrap(err, "init search")
		}
		resolver := identity.NewResolver(searcher, fetch.New(cfg), identity.Options{
			MinScore:       cfg.Identity.MinScore,
			TopN:           cfg.Identity.TopN,
			MaxConcurrency: cfg.Identity.MaxConcurrency,
		})

		cands := resolver.ResolveCandidates(ctx, code)
		if len(cands) == 0 {
			fmt.Fprintln(os.Stderr, "No candidates found.")
			return nil
		}

		if autoConfirm {
			id, err := cache.Confirm(ctx, code, cands[0].Name)
			if err != nil {
				return eris.Wrap(err, "resolve confirm")
			}
			fmt.Fprintf(os.Stderr, "Confirmed %q (score %.2f).\n", id.Name, cands[0].Score)
			return writeConfirmed(format, id)
		}

		if format == "table" {
			printCandidates(os.Stdout, cands)
			return nil
		}
		return writeOutput(os.Stdout, format, cands)
	},
}

func init() {
	resolveCmd.Flags().String("confirm", "", "record this name for the code without searching")
	resolveCmd.Flags().Bool("auto-confirm", false, "record the top candidate")
	resolveCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(resolveCmd)
}

func writeConfirmed(format string, id model.ConfirmedIdentity) error {
	if format == "table" {
		_, err := fmt.Fprintf(os.Stdout, "%s\t%s\n", id.Code, id.Name)
		return err
	}
	return writeOutput(os.Stdout, format, id)
}
