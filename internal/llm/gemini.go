package llm

import (
	"context"
	"iter"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// geminiModels is the subset of genai.Models used here.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiChatter talks to the Gemini API through the genai SDK.
type GeminiChatter struct {
	models      geminiModels
	model       string
	temperature *float32
	maxTokens   int32
}

// NewGeminiChatter creates a Gemini-backed chatter.
func NewGeminiChatter(ctx context.Context, apiKey, model string, temperature *float64, maxTokens int) (*GeminiChatter, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "llm: create gemini client")
	}
	return newGeminiChatter(cli.Models, model, temperature, maxTokens), nil
}

func newGeminiChatter(models geminiModels, model string, temperature *float64, maxTokens int) *GeminiChatter {
	c := &GeminiChatter{models: models, model: model, maxTokens: int32(maxTokens)}
	if temperature != nil {
		t := float32(*temperature)
		c.temperature = &t
	}
	return c
}

func (c *GeminiChatter) Provider() string { return ProviderGemini }
func (c *GeminiChatter) Model() string    { return c.model }

func (c *GeminiChatter) Chat(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	system, msgs := splitSystem(req.Messages)

	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{Temperature: c.temperature}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = c.maxTokens
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if onChunk == nil {
		resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", geminiError(err)
		}
		return resp.Text(), nil
	}

	var sb strings.Builder
	for resp, err := range c.models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return sb.String(), geminiError(err)
		}
		if text := resp.Text(); text != "" {
			sb.WriteString(text)
			onChunk(text)
		}
	}
	return sb.String(), nil
}

// geminiError classifies genai errors by their message, which carries the
// HTTP status and the RPC status name.
func geminiError(err error) error {
	msg := err.Error()
	status := 0
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "UNAUTHENTICATED"), strings.Contains(msg, "API key not valid"):
		status = 401
	case strings.Contains(msg, "403"), strings.Contains(msg, "PERMISSION_DENIED"):
		status = 403
	case strings.Contains(msg, "429"), strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		status = 429
	case strings.Contains(msg, "503"), strings.Contains(msg, "UNAVAILABLE"):
		status = 503
	}
	return newBackendError(ProviderGemini, status, err)
}
