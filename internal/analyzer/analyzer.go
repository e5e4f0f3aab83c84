// Package analyzer runs the nine analysis tasks for a product: it enriches
// the product once, dispatches every task concurrently and reports each
// settled result.
package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-analyzer/internal/executor"
	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/tasks"
)

// ProgressFunc observes task status transitions. It is called synchronously
// from the task goroutines, so it must be safe for concurrent use.
type ProgressFunc func(taskID string, status model.TaskStatus, data map[string]any)

// Enricher builds the shared search context for a product.
type Enricher interface {
	Enrich(ctx context.Context, p model.Product) model.EnrichedContext
}

// TaskExecutor runs one task and always yields an outcome.
type TaskExecutor interface {
	Execute(ctx context.Context, taskID, prompt string, defaultConfidence float64) executor.Outcome
}

// CandidateResolver finds identity candidates for a product code.
type CandidateResolver interface {
	ResolveCandidates(ctx context.Context, code string) []model.IdentityCandidate
}

const defaultMaxConcurrency = 9

// Options configures an Analyzer.
type Options struct {
	MaxConcurrency int
	// Events receives one TaskEvent per settled task. The caller owns the
	// channel and must keep draining it while Analyze runs. Nil disables
	// publishing.
	Events chan<- model.TaskEvent
	// Model and Provider label published events.
	Model    string
	Provider string
}

// Analyzer orchestrates analysis runs. It holds no per-run state and is safe
// for concurrent use.
type Analyzer struct {
	enricher Enricher
	exec     TaskExecutor
	resolver CandidateResolver
	registry *tasks.Registry
	opts     Options
	now      func() time.Time
}

// New creates an Analyzer. A nil registry selects tasks.Default(). resolver
// may be nil when code resolution is not used.
func New(enricher Enricher, exec TaskExecutor, resolver CandidateResolver, registry *tasks.Registry, opts Options) *Analyzer {
	if registry == nil {
		registry = tasks.Default()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	return &Analyzer{
		enricher: enricher,
		exec:     exec,
		resolver: resolver,
		registry: registry,
		opts:     opts,
		now:      time.Now,
	}
}

// Resolution is the outcome of a code lookup: either a previously confirmed
// identity or fresh candidates awaiting confirmation.
type Resolution struct {
	Confirmed  *model.ConfirmedIdentity  `json:"confirmed,omitempty"`
	Candidates []model.IdentityCandidate `json:"candidates"`
}

// ResolveCandidates returns the confirmed identity for code when cache knows
// it, otherwise the resolver's ranked candidates. cache may be nil.
func (a *Analyzer) ResolveCandidates(ctx context.Context, code string, cache *identity.Cache) Resolution {
	if cache != nil {
		if id, ok := cache.Get(ctx, code); ok {
			return Resolution{Confirmed: &id, Candidates: []model.IdentityCandidate{}}
		}
	}
	if a.resolver == nil {
		return Resolution{Candidates: []model.IdentityCandidate{}}
	}
	cands := a.resolver.ResolveCandidates(ctx, code)
	if cands == nil {
		cands = []model.IdentityCandidate{}
	}
	return Resolution{Candidates: cands}
}

// Analyze runs every registered task for p and returns the finished run.
// Cancelling ctx stops dispatch: tasks not yet started stay pending and the
// run is marked stopped, while tasks already running complete normally.
func (a *Analyzer) Analyze(ctx context.Context, p model.Product, onProgress ProgressFunc) *model.AnalysisRun {
	return a.AnalyzeWithID(ctx, uuid.NewString(), p, onProgress)
}

// AnalyzeWithID is Analyze with a caller-chosen run id, for callers that
// must hand out the id before the run finishes.
func (a *Analyzer) AnalyzeWithID(ctx context.Context, runID string, p model.Product, onProgress ProgressFunc) *model.AnalysisRun {
	if onProgress == nil {
		onProgress = func(string, model.TaskStatus, map[string]any) {}
	}

	run := &model.AnalysisRun{
		ID:        runID,
		Product:   p,
		Status:    model.RunStatusRunning,
		Tools:     make(map[string]model.TaskResult, a.registry.Len()),
		CreatedAt: a.now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("product", p.Identifier))
	log.Info("analyzer: starting run", zap.String("kind", string(p.Kind)), zap.Int("tasks", a.registry.Len()))

	for _, id := range a.registry.IDs() {
		run.Tools[id] = model.TaskResult{TaskID: id, Status: model.TaskPending}
		onProgress(id, model.TaskPending, nil)
	}

	if ctx.Err() != nil {
		return a.finish(run, true, log)
	}

	ec := a.enricher.Enrich(ctx, p)
	run.Context = &ec

	var (
		mu      sync.Mutex
		stopped bool
	)
	setResult := func(r model.TaskResult) {
		mu.Lock()
		run.Tools[r.TaskID] = r
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(a.opts.MaxConcurrency)
	for _, task := range a.registry.All() {
		if ctx.Err() != nil {
			mu.Lock()
			stopped = true
			mu.Unlock()
			break
		}
		prompt := task.BuildPrompt(p, &ec)
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				stopped = true
				mu.Unlock()
				return nil
			}
			a.runTask(ctx, run.ID, p, task, prompt, setResult, onProgress)
			return nil
		})
	}
	_ = g.Wait()

	return a.finish(run, stopped, log)
}

// runTask executes one task. The backend call runs detached from ctx
// cancellation so an in-flight task always settles. Panics are recorded as
// an error result.
func (a *Analyzer) runTask(
	ctx context.Context,
	runID string,
	p model.Product,
	task tasks.Task,
	prompt string,
	setResult func(model.TaskResult),
	onProgress ProgressFunc,
) {
	started := a.now().UTC()
	res := model.TaskResult{TaskID: task.ID, Status: model.TaskRunning, StartedAt: &started}
	setResult(res)
	onProgress(task.ID, model.TaskRunning, nil)

	defer func() {
		finished := a.now().UTC()
		res.FinishedAt = &finished
		if r := recover(); r != nil {
			zap.L().Error("analyzer: task panicked",
				zap.String("run_id", runID),
				zap.String("task", task.ID),
				zap.Any("panic", r),
			)
			res.Status = model.TaskError
			res.Data = nil
			res.Error = fmt.Sprintf("task panicked: %v", r)
		}
		setResult(res)
		onProgress(task.ID, res.Status, res.Data)
		a.publish(model.TaskEvent{
			RunID:    runID,
			Product:  p,
			TaskName: task.Name,
			Result:   res,
			Model:    a.opts.Model,
			Provider: a.opts.Provider,
		})
	}()

	out := a.exec.Execute(context.WithoutCancel(ctx), task.ID, prompt, task.DefaultConfidence)
	res.Status = model.TaskCompleted
	res.Data = out.Data
	res.ConfidenceScore = out.ConfidenceScore
	res.Fallback = out.Fallback
	res.Attempts = out.Attempts
	if out.Fallback {
		res.Error = out.LastError
	}
}

func (a *Analyzer) publish(ev model.TaskEvent) {
	if a.opts.Events == nil {
		return
	}
	a.opts.Events <- ev
}

func (a *Analyzer) finish(run *model.AnalysisRun, stopped bool, log *zap.Logger) *model.AnalysisRun {
	done := a.now().UTC()
	run.CompletedAt = &done
	run.Status = model.RunStatusComplete
	if stopped {
		run.Status = model.RunStatusStopped
	}

	s := run.Summary()
	log.Info("analyzer: run finished",
		zap.String("status", string(run.Status)),
		zap.Int("completed", s.Completed),
		zap.Int("fallbacks", s.Fallbacks),
		zap.Int("errors", s.Errors),
		zap.Int("pending", s.Pending),
		zap.Duration("elapsed", done.Sub(run.CreatedAt)),
	)
	return run
}
