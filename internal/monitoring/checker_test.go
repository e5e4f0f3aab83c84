package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/product-analyzer/internal/config"
	"github.com/sells-group/product-analyzer/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	st := &mockStore{}
	st.On("ListRuns", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	st := &mockStore{}
	checker := NewChecker(NewCollector(st), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	st.AssertNotCalled(t, "ListRuns", mock.Anything, mock.Anything)
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	var runs []model.AnalysisRun
	for i := 0; i < 3; i++ {
		runs = append(runs, run(now.Add(-time.Minute), model.RunStatusComplete,
			model.TaskResult{TaskID: "categorizer", Status: model.TaskError},
			model.TaskResult{TaskID: "trends", Status: model.TaskCompleted, Fallback: true},
		))
	}
	st := &mockStore{}
	st.On("ListRuns", mock.Anything, mock.Anything).Return(runs, nil)

	cfg := config.MonitoringConfig{
		WebhookURL:            srv.URL,
		LookbackWindowHours:   24,
		FallbackRateThreshold: 0.3,
		ErrorRateThreshold:    0.3,
		MinTasks:              6,
	}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	sent := checker.Check(context.Background())
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), hits.Load())
}
