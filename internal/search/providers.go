package search

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/pkg/jina"
	"github.com/sells-group/product-analyzer/pkg/ollama"
)

// OllamaSearcher uses the Ollama cloud web search endpoint.
type OllamaSearcher struct {
	client ollama.Client
}

// NewOllamaSearcher wraps an Ollama client.
func NewOllamaSearcher(client ollama.Client) *OllamaSearcher {
	return &OllamaSearcher{client: client}
}

func (s *OllamaSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	resp, err := s.client.WebSearch(ctx, query, maxResults)
	if err != nil {
		e := &Error{Provider: "ollama", Query: query, Err: err}
		var apiErr *ollama.APIError
		if errors.As(err, &apiErr) {
			e.StatusCode = apiErr.StatusCode
		}
		return nil, e
	}

	out := make([]model.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, model.SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Content: strings.TrimSpace(r.Content),
		})
	}
	return truncate(out, maxResults), nil
}

// JinaSearcher uses the Jina search API.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps a Jina client.
func NewJinaSearcher(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

func (s *JinaSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	resp, err := s.client.Search(ctx, query, jina.WithCount(maxResults))
	if err != nil {
		e := &Error{Provider: "jina", Query: query, Err: err}
		var apiErr *jina.APIError
		if errors.As(err, &apiErr) {
			e.StatusCode = apiErr.StatusCode
		}
		return nil, e
	}

	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		out = append(out, model.SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Content: strings.TrimSpace(r.Text()),
		})
	}
	return truncate(out, maxResults), nil
}

func truncate(results []model.SearchResult, n int) []model.SearchResult {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
