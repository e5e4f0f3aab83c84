package model

import "time"

// RunStatus is the overall state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusStopped  RunStatus = "stopped"
)

// AnalysisRun is the aggregate of one product's analysis.
type AnalysisRun struct {
	ID          string                `json:"id"`
	Product     Product               `json:"product"`
	Status      RunStatus             `json:"status"`
	Tools       map[string]TaskResult `json:"tools"`
	Context     *EnrichedContext      `json:"context,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// RunSummary tallies task outcomes for a run.
type RunSummary struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Errors    int     `json:"errors"`
	Pending   int     `json:"pending"`
	Fallbacks int     `json:"fallbacks"`
	AvgConf   float64 `json:"avg_confidence"`
}

// Summary counts task outcomes. AvgConf averages completed tasks only.
func (r *AnalysisRun) Summary() RunSummary {
	var s RunSummary
	var confSum float64
	for _, t := range r.Tools {
		s.Total++
		switch t.Status {
		case TaskCompleted:
			s.Completed++
			confSum += t.ConfidenceScore
			if t.Fallback {
				s.Fallbacks++
			}
		case TaskError:
			s.Errors++
		default:
			s.Pending++
		}
	}
	if s.Completed > 0 {
		s.AvgConf = confSum / float64(s.Completed)
	}
	return s
}
