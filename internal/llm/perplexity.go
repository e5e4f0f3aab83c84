package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/pkg/perplexity"
)

// PerplexityChatter talks to the Perplexity chat completions API.
type PerplexityChatter struct {
	client      perplexity.Client
	model       string
	temperature *float64
	maxTokens   *int
}

// NewPerplexityChatter wraps a Perplexity client.
func NewPerplexityChatter(client perplexity.Client, model string, temperature *float64, maxTokens int) *PerplexityChatter {
	c := &PerplexityChatter{client: client, model: model, temperature: temperature}
	if maxTokens > 0 {
		c.maxTokens = &maxTokens
	}
	return c
}

func (c *PerplexityChatter) Provider() string { return ProviderPerplexity }
func (c *PerplexityChatter) Model() string    { return c.model }

func (c *PerplexityChatter) Chat(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	preq := perplexity.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    make([]perplexity.Message, 0, len(req.Messages)),
	}
	if preq.Model == "" {
		preq.Model = c.model
	}
	for _, m := range req.Messages {
		preq.Messages = append(preq.Messages, perplexity.Message{Role: m.Role, Content: m.Content})
	}

	if onChunk != nil {
		text, err := c.client.ChatCompletionStream(ctx, preq, onChunk)
		if err != nil {
			return text, perplexityError(err)
		}
		return text, nil
	}

	resp, err := c.client.ChatCompletion(ctx, preq)
	if err != nil {
		return "", perplexityError(err)
	}
	if len(resp.Choices) == 0 {
		return "", newBackendError(ProviderPerplexity, 0, eris.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func perplexityError(err error) error {
	var apiErr *perplexity.APIError
	if errors.As(err, &apiErr) {
		return newBackendError(ProviderPerplexity, apiErr.StatusCode, err)
	}
	return newBackendError(ProviderPerplexity, 0, err)
}
