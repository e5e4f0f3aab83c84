package search

import (
	"context"
	"time"

	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/resilience"
)

// Guarded bounds each search with a timeout and stops calling the backend
// while its circuit breaker is open.
type Guarded struct {
	next    Searcher
	breaker *resilience.Breaker
	timeout time.Duration
}

// NewGuarded wraps next. A zero timeout leaves the caller's deadline alone.
func NewGuarded(next Searcher, breaker *resilience.Breaker, timeout time.Duration) *Guarded {
	return &Guarded{next: next, breaker: breaker, timeout: timeout}
}

func (g *Guarded) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return resilience.Call(ctx, g.breaker, func(ctx context.Context) ([]model.SearchResult, error) {
		return g.next.Search(ctx, query, maxResults)
	})
}
