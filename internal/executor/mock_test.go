package executor

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/product-analyzer/internal/llm"
)

type mockChatter struct {
	mock.Mock
}

func (m *mockChatter) Chat(ctx context.Context, req llm.Request, onChunk func(string)) (string, error) {
	args := m.Called(ctx, req, onChunk)
	return args.String(0), args.Error(1)
}

func (m *mockChatter) Provider() string { return "mock" }

func (m *mockChatter) Model() string { return "mock-model" }
