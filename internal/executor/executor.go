// Package executor runs one analysis task against a generative backend with
// retries, JSON repair and schema validation, falling back to a static
// payload when no usable answer arrives.
package executor

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/llm"
	"github.com/sells-group/product-analyzer/internal/resilience"
	"github.com/sells-group/product-analyzer/internal/tasks"
)

// SystemPrompt is sent with every task prompt.
const SystemPrompt = "You are an expert product analyst. Always respond with valid JSON only, no additional text or explanations."

const (
	confidenceKey      = "confidence_score"
	minFallbackConf    = 0.3
	fallbackConfFactor = 0.5
	defaultCallTimeout = 120 * time.Second
)

var (
	errEmptyResponse = errors.New("executor: empty response")
	errSchema        = errors.New("executor: response failed validation")
)

// Outcome is the result of one task execution. Execute always returns one.
type Outcome struct {
	Data            map[string]any
	ConfidenceScore float64
	Fallback        bool
	Attempts        int
	// LastError describes the final failure when Fallback is set.
	LastError string
}

// Options configures an Executor.
type Options struct {
	// Policy controls attempts and backoff. Zero values take the resilience
	// defaults (3 attempts, 2s doubling, 30s cap).
	Policy resilience.Policy
	// CallTimeout bounds each backend call.
	CallTimeout time.Duration
	// Model overrides the backend's configured model.
	Model string
}

// Executor runs tasks. It is safe for concurrent use.
type Executor struct {
	chat     llm.Chatter
	registry *tasks.Registry
	policy   resilience.Policy
	timeout  time.Duration
	model    string
}

// New creates an Executor.
func New(chat llm.Chatter, registry *tasks.Registry, opts Options) *Executor {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if registry == nil {
		registry = tasks.Default()
	}
	return &Executor{
		chat:     chat,
		registry: registry,
		policy:   opts.Policy,
		timeout:  opts.CallTimeout,
		model:    opts.Model,
	}
}

// Execute runs taskID with prompt. Backend, parse and validation failures
// are retried; unauthorized errors end the loop at once. When no attempt
// succeeds the task fallback is returned with a reduced confidence.
func (e *Executor) Execute(ctx context.Context, taskID, prompt string, defaultConfidence float64) Outcome {
	log := zap.L().With(zap.String("task", taskID))

	task, known := e.registry.Get(taskID)
	validate := tasks.ValidObject
	if known {
		validate = task.Validate
	}

	policy := e.policy
	policy.OnRetry = resilience.RetryLogger(e.chat.Provider(), taskID)

	data, attempts, err := resilience.Retry(ctx, policy, func(ctx context.Context, attempt int) (map[string]any, error) {
		return e.attempt(ctx, prompt, validate)
	})
	if err == nil {
		conf := ensureConfidence(data, defaultConfidence)
		log.Debug("executor: task completed", zap.Int("attempts", attempts), zap.Float64("confidence", conf))
		return Outcome{Data: data, ConfidenceScore: conf, Attempts: attempts}
	}

	log.Warn("executor: using fallback", zap.Int("attempts", attempts), zap.Error(err))
	fb := tasks.GenericFallback()
	if known {
		fb = task.Fallback()
	}
	conf := math.Max(minFallbackConf, defaultConfidence*fallbackConfFactor)
	fb[confidenceKey] = conf
	return Outcome{
		Data:            fb,
		ConfidenceScore: conf,
		Fallback:        true,
		Attempts:        attempts,
		LastError:       err.Error(),
	}
}

func (e *Executor) attempt(ctx context.Context, prompt string, validate func(map[string]any) bool) (map[string]any, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.chat.Chat(cctx, llm.Request{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
	}, nil)
	if err != nil {
		if llm.IsUnauthorized(err) {
			return nil, resilience.Stop(err)
		}
		return nil, eris.Wrap(err, "executor: backend call")
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errEmptyResponse
	}

	data, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if !validate(data) {
		return nil, errSchema
	}
	return data, nil
}

// ensureConfidence sets confidence_score to def unless data already holds a
// number in [0, 1]. It returns the resulting score.
func ensureConfidence(data map[string]any, def float64) float64 {
	if v, ok := data[confidenceKey].(float64); ok && v >= 0 && v <= 1 {
		return v
	}
	data[confidenceKey] = def
	return def
}
