package monitoring

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.AnalysisRun, error) {
	args := m.Called(ctx, filter)
	if v := args.Get(0); v != nil {
		return v.([]model.AnalysisRun), args.Error(1)
	}
	return nil, args.Error(1)
}
