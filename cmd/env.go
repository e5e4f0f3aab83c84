package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/analyzer"
	"github.com/sells-group/product-analyzer/internal/enrich"
	"github.com/sells-group/product-analyzer/internal/executor"
	"github.com/sells-group/product-analyzer/internal/fetch"
	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/llm"
	"github.com/sells-group/product-analyzer/internal/resilience"
	"github.com/sells-group/product-analyzer/internal/search"
	"github.com/sells-group/product-analyzer/internal/store"
	"github.com/sells-group/product-analyzer/internal/tasks"
)

// eventBuffer sizes the task event channel so a run's nine events never
// wait on the store.
const eventBuffer = 64

// analysisEnv holds the wired collaborators used by analyze and serve.
type analysisEnv struct {
	Store    store.Store
	Analyzer *analyzer.Analyzer
	Cache    *identity.Cache
	Chatter  llm.Chatter
	Registry *tasks.Registry

	closeSink func() int
}

// Close drains the result sink and releases the store.
func (e *analysisEnv) Close() {
	if e.closeSink != nil {
		n := e.closeSink()
		zap.L().Debug("result sink drained", zap.Int("written", n))
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initAnalysis wires store, search, fetch, backend, executor and analyzer.
// A non-empty modelName overrides the configured one. Callers should defer
// env.Close().
func initAnalysis(ctx context.Context, mode, modelName string) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	searcher, err := search.New(cfg)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init search")
	}

	chatter, err := llm.New(ctx, cfg, modelName)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init llm")
	}

	cache, err := identity.NewCache(cfg.Identity.CacheSize, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registry := tasks.Default()
	exec := executor.New(chatter, registry, executor.Options{
		Policy: resilience.NewPolicy(
			cfg.Executor.MaxRetries,
			cfg.Executor.InitialBackoffMs,
			cfg.Executor.MaxBackoffMs,
			2.0, 0,
		),
		CallTimeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})

	resolver := identity.NewResolver(searcher, fetch.New(cfg), identity.Options{
		MinScore:       cfg.Identity.MinScore,
		TopN:           cfg.Identity.TopN,
		MaxConcurrency: cfg.Identity.MaxConcurrency,
	})

	events, closeSink := analyzer.NewStoreSink(st).Start(context.WithoutCancel(ctx), eventBuffer)

	a := analyzer.New(enrich.New(searcher), exec, resolver, registry, analyzer.Options{
		MaxConcurrency: cfg.Analyzer.MaxConcurrency,
		Events:         events,
		Model:          chatter.Model(),
		Provider:       chatter.Provider(),
	})

	zap.L().Info("analysis environment ready",
		zap.String("provider", chatter.Provider()),
		zap.String("model", chatter.Model()),
		zap.String("search", cfg.Search.Provider),
		zap.String("store", cfg.Store.Driver),
	)

	return &analysisEnv{
		Store:     st,
		Analyzer:  a,
		Cache:     cache,
		Chatter:   chatter,
		Registry:  registry,
		closeSink: closeSink,
	}, nil
}
