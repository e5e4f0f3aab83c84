package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/pkg/ollama"
)

// OllamaChatter talks to Ollama cloud.
type OllamaChatter struct {
	client      ollama.Client
	model       string
	temperature *float64
	maxTokens   int
}

// NewOllamaChatter wraps an Ollama client. A nil temperature and a zero
// maxTokens leave the server defaults.
func NewOllamaChatter(client ollama.Client, model string, temperature *float64, maxTokens int) *OllamaChatter {
	if model == "" {
		model = DefaultModel
	}
	return &OllamaChatter{client: client, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (c *OllamaChatter) Provider() string { return ProviderOllama }
func (c *OllamaChatter) Model() string    { return c.model }

func (c *OllamaChatter) Chat(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	creq := ollama.ChatRequest{
		Model:    req.Model,
		Messages: make([]ollama.Message, 0, len(req.Messages)),
	}
	if creq.Model == "" {
		creq.Model = c.model
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	if c.temperature != nil || c.maxTokens > 0 {
		creq.Options = &ollama.ChatOptions{Temperature: c.temperature}
		if c.maxTokens > 0 {
			n := c.maxTokens
			creq.Options.NumPredict = &n
		}
	}

	if onChunk != nil {
		text, err := c.client.ChatStream(ctx, creq, onChunk)
		if err != nil {
			return text, ollamaError(err)
		}
		return text, nil
	}

	resp, err := c.client.Chat(ctx, creq)
	if err != nil {
		return "", ollamaError(err)
	}
	return resp.Message.Content, nil
}

func ollamaError(err error) error {
	var apiErr *ollama.APIError
	if errors.As(err, &apiErr) {
		return newBackendError(ProviderOllama, apiErr.StatusCode, err)
	}
	return newBackendError(ProviderOllama, 0, eris.Wrap(err, "ollama chat"))
}
