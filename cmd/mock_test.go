//go:build !integration

package main

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/product-analyzer/internal/analyzer"
	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/store"
)

// mockRunStore is a testify mock for runStore.
type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) CreateRun(ctx context.Context, run *model.AnalysisRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockRunStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	args := m.Called(ctx, runID)
	if v := args.Get(0); v != nil {
		return v.(*model.AnalysisRun), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRunStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.AnalysisRun, error) {
	args := m.Called(ctx, filter)
	if v := args.Get(0); v != nil {
		return v.([]model.AnalysisRun), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRunStore) ListTaskResults(ctx context.Context, filter store.ResultFilter) ([]model.TaskRecord, error) {
	args := m.Called(ctx, filter)
	if v := args.Get(0); v != nil {
		return v.([]model.TaskRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeAnalyzer records the products it is asked to analyze and returns
// complete runs.
type fakeAnalyzer struct {
	mu         sync.Mutex
	analyzed   []model.Product
	runIDs     []string
	resolution analyzer.Resolution
	resolved   []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, p model.Product, onProgress analyzer.ProgressFunc) *model.AnalysisRun {
	return f.AnalyzeWithID(ctx, "run-"+p.Identifier, p, onProgress)
}

func (f *fakeAnalyzer) AnalyzeWithID(_ context.Context, runID string, p model.Product, onProgress analyzer.ProgressFunc) *model.AnalysisRun {
	f.mu.Lock()
	f.analyzed = append(f.analyzed, p)
	f.runIDs = append(f.runIDs, runID)
	f.mu.Unlock()

	res := model.TaskResult{TaskID: "categorizer", Status: model.TaskCompleted, ConfidenceScore: 0.8}
	if onProgress != nil {
		onProgress(res.TaskID, res.Status, res.Data)
	}
	return &model.AnalysisRun{
		ID:      runID,
		Product: p,
		Status:  model.RunStatusComplete,
		Tools:   map[string]model.TaskResult{res.TaskID: res},
	}
}

func (f *fakeAnalyzer) ResolveCandidates(ctx context.Context, code string, cache *identity.Cache) analyzer.Resolution {
	f.mu.Lock()
	f.resolved = append(f.resolved, code)
	f.mu.Unlock()
	if cache != nil {
		if id, ok := cache.Get(ctx, code); ok {
			return analyzer.Resolution{Confirmed: &id, Candidates: []model.IdentityCandidate{}}
		}
	}
	return f.resolution
}

func (f *fakeAnalyzer) products() []model.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Product(nil), f.analyzed...)
}
