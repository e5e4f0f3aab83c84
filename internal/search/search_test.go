package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-analyzer/internal/config"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/resilience"
	"github.com/sells-group/product-analyzer/pkg/jina"
	"github.com/sells-group/product-analyzer/pkg/ollama"
)

func TestOllamaSearcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/web_search", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[
			{"title":" Coca-Cola 330ml ","url":"https://www.eandata.com/a","content":"EAN 5449000000996"},
			{"title":"no url","url":"","content":"x"},
			{"title":"B","url":"https://upcitemdb.com/b","content":"b"},
			{"title":"C","url":"https://c.example.com","content":"c"}
		]}`))
	}))
	defer srv.Close()

	s := NewOllamaSearcher(ollama.NewClient("k", ollama.WithBaseURL(srv.URL)))
	got, err := s.Search(context.Background(), `"5449000000996"`, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.SearchResult{Title: "Coca-Cola 330ml", URL: "https://www.eandata.com/a", Content: "EAN 5449000000996"}, got[0])
	assert.Equal(t, "https://upcitemdb.com/b", got[1].URL)
}

func TestOllamaSearcher_Error(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOllamaSearcher(ollama.NewClient("k", ollama.WithBaseURL(srv.URL))).Search(context.Background(), "q", 3)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ollama", se.Provider)
	assert.Equal(t, "q", se.Query)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestJinaSearcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"code":200,"data":[
			{"title":"Mouse","url":"https://shop.example.com/m","description":"wireless mouse"},
			{"title":"Mouse 2","url":"https://shop.example.com/m2","content":"full content"}
		]}`))
	}))
	defer srv.Close()

	s := NewJinaSearcher(jina.NewClient("k", jina.WithSearchBaseURL(srv.URL)))
	got, err := s.Search(context.Background(), "wireless mouse", 3)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "wireless mouse", got[0].Content)
	assert.Equal(t, "full content", got[1].Content)
}

func TestJinaSearcher_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	got, err := NewJinaSearcher(jina.NewClient("k", jina.WithSearchBaseURL(srv.URL))).Search(context.Background(), "x", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type stubSearcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *stubSearcher) Search(ctx context.Context, query string, _ int) ([]model.SearchResult, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return []model.SearchResult{{Title: query, URL: "https://example.com"}}, nil
}

func TestGuarded_Timeout(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{delay: time.Second}
	g := NewGuarded(stub, resilience.NewBreaker(resilience.BreakerConfig{Name: "test"}), 20*time.Millisecond)

	_, err := g.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuarded_BreakerOpens(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{err: errors.New("backend down")}
	g := NewGuarded(stub, resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}), 0)

	for range 2 {
		_, err := g.Search(context.Background(), "q", 3)
		require.Error(t, err)
	}
	_, err := g.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestGuarded_PassThrough(t *testing.T) {
	t.Parallel()

	g := NewGuarded(&stubSearcher{}, resilience.NewBreaker(resilience.BreakerConfig{Name: "test"}), time.Second)
	got, err := g.Search(context.Background(), "hello", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Title)
}

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	for _, provider := range []string{"ollama", "jina", ""} {
		cfg.Search.Provider = provider
		s, err := New(cfg)
		require.NoError(t, err, provider)
		assert.IsType(t, &Guarded{}, s)
	}

	cfg.Search.Provider = "bing"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestError_ExposesStatus(t *testing.T) {
	t.Parallel()

	err := &Error{Provider: "jina", Query: "q", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, resilience.IsTransient(err))

	noStatus := &Error{Provider: "ollama", Query: "q", Err: errors.New("bad json")}
	assert.False(t, errors.As(noStatus, &se))
	assert.False(t, resilience.IsTransient(noStatus))
}

func TestNewBreaker_TripsOnTransientOnly(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Search.FailureThreshold = 2
	cfg.Search.ResetTimeoutSecs = 3600

	tests := []struct {
		name     string
		err      error
		wantOpen bool
	}{
		{"unauthorized", &Error{Provider: "ollama", StatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}, false},
		{"rate limited", &Error{Provider: "ollama", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}, true},
		{"unavailable", &Error{Provider: "jina", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}, true},
		{"parse failure", &Error{Provider: "jina", Err: errors.New("invalid character")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubSearcher{err: tt.err}
			g := NewGuarded(stub, newBreaker(cfg), 0)
			for range 3 {
				_, _ = g.Search(context.Background(), "q", 3)
			}
			_, err := g.Search(context.Background(), "q", 3)
			assert.Equal(t, tt.wantOpen, errors.Is(err, resilience.ErrCircuitOpen))
		})
	}
}
