// Package search runs web searches that ground product resolution and
// analysis prompts.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/internal/config"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/resilience"
	"github.com/sells-group/product-analyzer/pkg/jina"
	"github.com/sells-group/product-analyzer/pkg/ollama"
)

// Searcher runs a web search and returns at most maxResults hits.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// Error wraps a failed search.
type Error struct {
	Provider   string
	Query      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("search: %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("search: %s: %v", e.Provider, e.Err)
}

// Unwrap exposes the provider error and, when the backend answered with a
// status, a *resilience.StatusError for transient classification.
func (e *Error) Unwrap() []error {
	if e.StatusCode > 0 {
		return []error{e.Err, &resilience.StatusError{Service: e.Provider, StatusCode: e.StatusCode}}
	}
	return []error{e.Err}
}

// New builds the searcher selected by cfg.Search.Provider, guarded by a
// circuit breaker and a per-query timeout.
func New(cfg *config.Config) (Searcher, error) {
	var s Searcher
	switch cfg.Search.Provider {
	case "ollama", "":
		s = NewOllamaSearcher(ollama.NewClient(cfg.Ollama.Key, ollama.WithBaseURL(cfg.Ollama.BaseURL)))
	case "jina":
		s = NewJinaSearcher(jina.NewClient(cfg.Jina.Key, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL)))
	default:
		return nil, eris.Errorf("search: unknown provider %q", cfg.Search.Provider)
	}

	return NewGuarded(s, newBreaker(cfg), time.Duration(cfg.Search.TimeoutSecs)*time.Second), nil
}

// newBreaker opens on transient failures only. A rejected key or a bad
// query leaves the circuit closed.
func newBreaker(cfg *config.Config) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "search",
		FailureThreshold: cfg.Search.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Search.ResetTimeoutSecs) * time.Second,
		Trips:            resilience.IsTransient,
	})
}
