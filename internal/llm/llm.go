// Package llm adapts the generative text backends to one chat interface.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider names accepted by New.
const (
	ProviderOllama     = "ollama"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
)

// DefaultModel is the Ollama cloud model used when none is configured.
const DefaultModel = "gpt-oss:20b-cloud"

// KnownModels lists the Ollama cloud models offered for selection.
var KnownModels = []string{
	"gpt-oss:20b-cloud",
	"gpt-oss:120b-cloud",
	"deepseek-v3.1:671b-cloud",
	"qwen3-coder:480b-cloud",
}

// Role values for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a backend-neutral chat request. An empty Model selects the
// backend's configured model.
type Request struct {
	Model    string
	Messages []Message
}

// Chatter sends chat requests to a generative backend. A nil onChunk awaits
// the full reply; otherwise fragments are delivered as they arrive and the
// concatenated text is returned.
type Chatter interface {
	Chat(ctx context.Context, req Request, onChunk func(string)) (string, error)
	Provider() string
	Model() string
}

// BackendError describes a failed backend call.
type BackendError struct {
	Provider     string
	StatusCode   int
	Unauthorized bool
	Err          error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm: %s: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a backend authorization failure.
func IsUnauthorized(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Unauthorized
}

func newBackendError(provider string, status int, err error) *BackendError {
	return &BackendError{
		Provider:     provider,
		StatusCode:   status,
		Unauthorized: status == 401 || status == 403,
		Err:          err,
	}
}

// splitSystem separates system messages from the conversation. Backends with a
// dedicated system field use the joined system text.
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
