package llm

import (
	"context"

	"github.com/sells-group/product-analyzer/pkg/anthropic"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicChatter talks to the Anthropic Messages API.
type AnthropicChatter struct {
	client      anthropic.Client
	model       string
	temperature *float64
	maxTokens   int64
}

// NewAnthropicChatter wraps an Anthropic client.
func NewAnthropicChatter(client anthropic.Client, model string, temperature *float64, maxTokens int) *AnthropicChatter {
	c := &AnthropicChatter{client: client, model: model, temperature: temperature, maxTokens: int64(maxTokens)}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultAnthropicMaxTokens
	}
	return c
}

func (c *AnthropicChatter) Provider() string { return ProviderAnthropic }
func (c *AnthropicChatter) Model() string    { return c.model }

func (c *AnthropicChatter) Chat(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	system, msgs := splitSystem(req.Messages)
	areq := anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    make([]anthropic.Message, 0, len(msgs)),
	}
	if areq.Model == "" {
		areq.Model = c.model
	}
	if system != "" {
		areq.System = []anthropic.SystemBlock{{Text: system}}
	}
	for _, m := range msgs {
		areq.Messages = append(areq.Messages, anthropic.Message{Role: m.Role, Content: m.Content})
	}

	var (
		resp *anthropic.MessageResponse
		err  error
	)
	if onChunk != nil {
		resp, err = c.client.StreamMessage(ctx, areq, onChunk)
	} else {
		resp, err = c.client.CreateMessage(ctx, areq)
	}
	if err != nil {
		return "", newBackendError(ProviderAnthropic, anthropic.StatusCode(err), err)
	}
	resp.Usage.LogCost(areq.Model, "chat")
	return resp.Text(), nil
}
