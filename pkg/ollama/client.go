// Package ollama provides a client for the Ollama cloud chat and web search API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://ollama.com/api"
	defaultModel   = "gpt-oss:20b-cloud"
)

// Client defines the Ollama operations used by the analyzer.
type Client interface {
	// Chat sends a non-streaming chat request and returns the full reply.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream sends a streaming chat request, invoking onChunk for every
	// content fragment, and returns the concatenated reply.
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(string)) (string, error)
	// WebSearch runs a web search and returns up to maxResults hits.
	WebSearch(ctx context.Context, query string, maxResults int) (*WebSearchResponse, error)
	// ListModels returns the models available to the API key.
	ListModels(ctx context.Context) ([]Model, error)
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carries sampling parameters.
type ChatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	Stream   bool         `json:"stream"`
	Format   string       `json:"format,omitempty"`
	Options  *ChatOptions `json:"options,omitempty"`
}

// ChatResponse is a chat reply. In streaming mode each NDJSON line decodes
// into one ChatResponse carrying a content fragment.
type ChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error,omitempty"`
}

// WebSearchResult is a single search hit.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// WebSearchResponse is the response from POST /web_search.
type WebSearchResponse struct {
	Results []WebSearchResult `json:"results"`
}

// Model describes an available model.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// APIError is returned when Ollama responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates an Ollama API client. Streaming responses can run long,
// so the default http.Client has no overall timeout; callers bound requests
// through their context.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = false

	var out ChatResponse
	if err := c.post(ctx, "/chat", req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, eris.Errorf("ollama: chat: %s", out.Error)
	}
	return &out, nil
}

func (c *httpClient) ChatStream(ctx context.Context, req ChatRequest, onChunk func(string)) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = true

	resp, err := c.send(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return sb.String(), eris.Wrap(err, "ollama: decode stream chunk")
		}
		if chunk.Error != "" {
			return sb.String(), eris.Errorf("ollama: stream: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			sb.WriteString(chunk.Message.Content)
			if onChunk != nil {
				onChunk(chunk.Message.Content)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return sb.String(), eris.Wrap(err, "ollama: read stream")
	}
	return sb.String(), nil
}

func (c *httpClient) WebSearch(ctx context.Context, query string, maxResults int) (*WebSearchResponse, error) {
	body := map[string]any{"query": query, "max_results": maxResults}

	var out WebSearchResponse
	if err := c.post(ctx, "/web_search", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.send(ctx, http.MethodGet, "/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "ollama: unmarshal tags")
	}
	return out.Models, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "ollama: read response")
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "ollama: unmarshal response")
	}
	return nil
}

// send performs the request and returns the response for a 2xx status. The
// caller owns the body.
func (c *httpClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "ollama: marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ollama: send request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return resp, nil
}
