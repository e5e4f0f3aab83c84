package llm

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"
	"google.golang.org/genai"

	"github.com/sells-group/product-analyzer/pkg/anthropic"
	"github.com/sells-group/product-analyzer/pkg/ollama"
	"github.com/sells-group/product-analyzer/pkg/perplexity"
)

// --- Ollama Mock ---

type mockOllamaClient struct {
	mock.Mock
}

func (m *mockOllamaClient) Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ollama.ChatResponse), args.Error(1)
}

func (m *mockOllamaClient) ChatStream(ctx context.Context, req ollama.ChatRequest, onChunk func(string)) (string, error) {
	args := m.Called(ctx, req, onChunk)
	return args.String(0), args.Error(1)
}

func (m *mockOllamaClient) WebSearch(ctx context.Context, query string, maxResults int) (*ollama.WebSearchResponse, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ollama.WebSearchResponse), args.Error(1)
}

func (m *mockOllamaClient) ListModels(ctx context.Context) ([]ollama.Model, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ollama.Model), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest, onText func(string)) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req, onText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Perplexity Mock ---

type mockPerplexityClient struct {
	mock.Mock
}

func (m *mockPerplexityClient) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

func (m *mockPerplexityClient) ChatCompletionStream(ctx context.Context, req perplexity.ChatCompletionRequest, onChunk func(string)) (string, error) {
	args := m.Called(ctx, req, onChunk)
	return args.String(0), args.Error(1)
}

// --- Gemini fake ---

type fakeGeminiModels struct {
	lastModel  string
	lastConfig *genai.GenerateContentConfig
	contents   []*genai.Content
	reply      string
	chunks     []string
	err        error
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(s, genai.RoleModel),
		}},
	}
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel, f.contents, f.lastConfig = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return textResponse(f.reply), nil
}

func (f *fakeGeminiModels) GenerateContentStream(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.lastModel, f.contents, f.lastConfig = model, contents, config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.chunks {
			if !yield(textResponse(c), nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func temperature(v float64) *float64 { return &v }
