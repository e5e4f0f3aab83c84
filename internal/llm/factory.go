package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/internal/config"
	"github.com/sells-group/product-analyzer/pkg/anthropic"
	"github.com/sells-group/product-analyzer/pkg/ollama"
	"github.com/sells-group/product-analyzer/pkg/perplexity"
)

// New builds the Chatter selected by cfg.LLM.Provider. A non-empty model
// overrides the configured one. Backend clients never retry on their own;
// the executor owns retries.
func New(ctx context.Context, cfg *config.Config, model string) (Chatter, error) {
	l := cfg.LLM
	switch l.Provider {
	case ProviderOllama, "":
		if model == "" {
			model = l.Model
		}
		client := ollama.NewClient(cfg.Ollama.Key, ollama.WithBaseURL(cfg.Ollama.BaseURL), ollama.WithModel(model))
		return NewOllamaChatter(client, model, l.Temperature, l.MaxTokens), nil
	case ProviderAnthropic:
		if model == "" {
			model = cfg.Anthropic.Model
		}
		client := anthropic.NewClient(cfg.Anthropic.Key, anthropic.WithMaxRetries(0))
		return NewAnthropicChatter(client, model, l.Temperature, l.MaxTokens), nil
	case ProviderGemini:
		if model == "" {
			model = cfg.Gemini.Model
		}
		return NewGeminiChatter(ctx, cfg.Gemini.Key, model, l.Temperature, l.MaxTokens)
	case ProviderPerplexity:
		if model == "" {
			model = cfg.Perplexity.Model
		}
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(model),
		)
		return NewPerplexityChatter(client, model, l.Temperature, l.MaxTokens), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", l.Provider)
	}
}
