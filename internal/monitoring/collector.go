// Package monitoring watches task outcomes in the result store and raises
// webhook alerts when fallback or error rates drift past thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/store"
)

// scanLimit bounds how many runs one snapshot reads.
const scanLimit = 10000

// TaskMetrics tallies outcomes for one task id.
type TaskMetrics struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	Fallbacks    int     `json:"fallbacks"`
	Errors       int     `json:"errors"`
	FallbackRate float64 `json:"fallback_rate"`
}

// MetricsSnapshot holds a point-in-time view of analysis health.
type MetricsSnapshot struct {
	// Runs within the lookback window.
	RunsTotal    int `json:"runs_total"`
	RunsComplete int `json:"runs_complete"`
	RunsStopped  int `json:"runs_stopped"`
	RunsRunning  int `json:"runs_running"`

	// Settled tasks within those runs.
	TasksSettled  int     `json:"tasks_settled"`
	TaskFallbacks int     `json:"task_fallbacks"`
	TaskErrors    int     `json:"task_errors"`
	FallbackRate  float64 `json:"fallback_rate"`
	ErrorRate     float64 `json:"error_rate"`
	AvgConfidence float64 `json:"avg_confidence"`

	ByTask map[string]*TaskMetrics `json:"by_task"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of the store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.AnalysisRun, error)
}

// Collector gathers metrics from the result store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ByTask:        make(map[string]*TaskMetrics),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	// Runs come back newest first.
	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var confSum float64
	var completed int
	for i := range runs {
		r := &runs[i]
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusStopped:
			snap.RunsStopped++
		default:
			snap.RunsRunning++
		}

		for id, t := range r.Tools {
			if !t.Status.Terminal() {
				continue
			}
			tm := snap.ByTask[id]
			if tm == nil {
				tm = &TaskMetrics{}
				snap.ByTask[id] = tm
			}
			tm.Total++
			snap.TasksSettled++

			if t.Status == model.TaskError {
				tm.Errors++
				snap.TaskErrors++
				continue
			}
			tm.Completed++
			completed++
			confSum += t.ConfidenceScore
			if t.Fallback {
				tm.Fallbacks++
				snap.TaskFallbacks++
			}
		}
	}

	if snap.TasksSettled > 0 {
		snap.FallbackRate = float64(snap.TaskFallbacks) / float64(snap.TasksSettled)
		snap.ErrorRate = float64(snap.TaskErrors) / float64(snap.TasksSettled)
	}
	if completed > 0 {
		snap.AvgConfidence = confSum / float64(completed)
	}
	for _, tm := range snap.ByTask {
		if tm.Total > 0 {
			tm.FallbackRate = float64(tm.Fallbacks) / float64(tm.Total)
		}
	}
	return snap, nil
}
