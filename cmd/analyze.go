package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/analyzer"
	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/input"
	"github.com/sells-group/product-analyzer/internal/model"
)

// productAnalyzer is the part of analyzer.Analyzer the commands use.
type productAnalyzer interface {
	Analyze(ctx context.Context, p model.Product, onProgress analyzer.ProgressFunc) *model.AnalysisRun
	AnalyzeWithID(ctx context.Context, runID string, p model.Product, onProgress analyzer.ProgressFunc) *model.AnalysisRun
	ResolveCandidates(ctx context.Context, code string, cache *identity.Cache) analyzer.Resolution
}

// runCreator persists finished runs.
type runCreator interface {
	CreateRun(ctx context.Context, run *model.AnalysisRun) error
}

type analyzeOptions struct {
	Strict      bool
	AutoConfirm bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [identifier...]",
	Short: "Run the nine analysis tasks for one or more products",
	Long: "Analyzes products given as arguments or read from --file (.txt, .csv, .xlsx). " +
		"Numeric identifiers of 8 to 13 digits are treated as product codes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		modelName, _ := cmd.Flags().GetString("model")
		format, _ := cmd.Flags().GetString("format")
		strict, _ := cmd.Flags().GetBool("strict")
		autoConfirm, _ := cmd.Flags().GetBool("auto-confirm")

		products, err := collectProducts(ctx, args, file, name)
		if err != nil {
			return err
		}

		env, err := initAnalysis(ctx, "analyze", modelName)
		if err != nil {
			return err
		}
		defer env.Close()

		runs := analyzeProducts(ctx, os.Stderr, env.Analyzer, env.Store, env.Cache, products, analyzeOptions{
			Strict:      strict,
			AutoConfirm: autoConfirm,
		})
		return writeOutput(os.Stdout, format, runs)
	},
}

func init() {
	analyzeCmd.Flags().String("file", "", "read products from a .txt, .csv or .xlsx file")
	analyzeCmd.Flags().String("name", "", "product name for a single code argument")
	analyzeCmd.Flags().String("model", "", "override llm.model for this run")
	analyzeCmd.Flags().String("format", "json", "output format: json or yaml")
	analyzeCmd.Flags().Bool("strict", false, "resolve unconfirmed product codes before analysis")
	analyzeCmd.Flags().Bool("auto-confirm", false, "with --strict, accept the top identity candidate")
	rootCmd.AddCommand(analyzeCmd)
}

// collectProducts merges positional identifiers and file entries. name
// applies only when exactly one identifier is given.
func collectProducts(ctx context.Context, args []string, file, name string) ([]model.Product, error) {
	var products []model.Product
	if len(args) == 1 && name != "" {
		products = append(products, model.NewProduct(args[0], name))
	} else {
		products = input.FromArgs(args)
	}

	if file != "" {
		fromFile, err := input.ReadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		products = append(products, fromFile...)
	}

	products = model.DedupeProducts(products)
	if len(products) == 0 {
		return nil, eris.New("no products given: pass identifiers or --file")
	}
	return products, nil
}

// analyzeProducts analyzes products one after another. Progress goes to
// progress; runs are persisted through st and returned. Cancelling ctx stops
// after the current product.
func analyzeProducts(
	ctx context.Context,
	progress io.Writer,
	a productAnalyzer,
	st runCreator,
	cache *identity.Cache,
	products []model.Product,
	opts analyzeOptions,
) []*model.AnalysisRun {
	runs := make([]*model.AnalysisRun, 0, len(products))
	for i, p := range products {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(progress, "[%d/%d] %s\n", i+1, len(products), p.Identifier)

		p, ok := confirmIdentity(ctx, progress, a, cache, p, opts)
		if !ok {
			continue
		}

		run := a.Analyze(ctx, p, func(taskID string, status model.TaskStatus, _ map[string]any) {
			if status.Terminal() {
				fmt.Fprintf(progress, "  %-22s %s\n", taskID, status)
			}
		})
		if err := st.CreateRun(context.WithoutCancel(ctx), run); err != nil {
			zap.L().Warn("analyze: save run failed", zap.String("run_id", run.ID), zap.Error(err))
		}

		s := run.Summary()
		fmt.Fprintf(progress, "  run %s %s: %d completed (%d fallback), %d errors, %d pending\n",
			truncateID(run.ID), run.Status, s.Completed, s.Fallbacks, s.Errors, s.Pending)
		runs = append(runs, run)
	}
	return runs
}

// confirmIdentity applies a confirmed name to code-kind products. In strict
// mode an unconfirmed code is resolved first; it is analyzed only when
// autoConfirm accepts the top candidate. The bool is false when the product
// must be skipped.
func confirmIdentity(
	ctx context.Context,
	progress io.Writer,
	a productAnalyzer,
	cache *identity.Cache,
	p model.Product,
	opts analyzeOptions,
) (model.Product, bool) {
	if !p.IsCode() {
		return p, true
	}
	if cache != nil {
		if id, ok := cache.Get(ctx, p.Identifier); ok {
			return p.WithName(id.Name), true
		}
	}
	if !opts.Strict {
		return p, true
	}

	res := a.ResolveCandidates(ctx, p.Identifier, cache)
	if res.Confirmed != nil {
		return p.WithName(res.Confirmed.Name), true
	}
	if len(res.Candidates) == 0 {
		fmt.Fprintf(progress, "  skipped: no identity candidates for %s\n", p.Identifier)
		return p, false
	}
	if !opts.AutoConfirm {
		fmt.Fprintf(progress, "  skipped: %s needs confirmation, candidates:\n", p.Identifier)
		printCandidates(progress, res.Candidates)
		return p, false
	}

	top := res.Candidates[0]
	if cache != nil {
		if _, err := cache.Confirm(ctx, p.Identifier, top.Name); err != nil {
			zap.L().Warn("analyze: confirm identity failed", zap.String("code", p.Identifier), zap.Error(err))
		}
	}
	fmt.Fprintf(progress, "  confirmed %q (score %.2f)\n", top.Name, top.Score)
	return p.WithName(top.Name), true
}

func printCandidates(w io.Writer, cands []model.IdentityCandidate) {
	for i, c := range cands {
		fmt.Fprintf(w, "    %d. %s", i+1, c.Name)
		if c.Brand != "" {
			fmt.Fprintf(w, " [%s]", c.Brand)
		}
		fmt.Fprintf(w, " score=%.2f %s\n", c.Score, c.SourceURL)
	}
}
