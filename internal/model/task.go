package model

import "time"

// TaskStatus is the lifecycle state of one analysis task within a run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskError
}

// TaskResult is the state of one (product, task) pair.
type TaskResult struct {
	TaskID          string         `json:"task_id"`
	Status          TaskStatus     `json:"status"`
	Data            map[string]any `json:"data,omitempty"`
	ConfidenceScore float64        `json:"confidence_score,omitempty"`
	Fallback        bool           `json:"fallback,omitempty"`
	Attempts        int            `json:"attempts,omitempty"`
	Error           string         `json:"error,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
}

// Duration returns how long the task ran, or zero if it never finished.
func (r TaskResult) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// TaskEvent is published on the analyzer's output channel each time a task
// settles.
type TaskEvent struct {
	RunID    string     `json:"run_id"`
	Product  Product    `json:"product"`
	TaskName string     `json:"task_name"`
	Result   TaskResult `json:"result"`
	Model    string     `json:"model"`
	Provider string     `json:"provider"`
}

// TaskRecord is a persisted task result row.
type TaskRecord struct {
	ID                string         `json:"id"`
	RunID             string         `json:"run_id"`
	ToolID            string         `json:"tool_id"`
	ToolName          string         `json:"tool_name"`
	ProductIdentifier string         `json:"product_identifier"`
	ProductName       string         `json:"product_name"`
	ProductKind       ProductKind    `json:"product_kind"`
	ResultData        map[string]any `json:"result_data"`
	ConfidenceScore   float64        `json:"confidence_score"`
	Status            TaskStatus     `json:"status"`
	Fallback          bool           `json:"fallback"`
	ModelUsed         string         `json:"model_used"`
	ProviderType      string         `json:"provider_type"`
	ProcessingTimeMs  int64          `json:"processing_time_ms"`
	CreatedAt         time.Time      `json:"created_at"`
}

// RecordFromEvent converts a settled task event into a persistable record.
func RecordFromEvent(ev TaskEvent) TaskRecord {
	return TaskRecord{
		RunID:             ev.RunID,
		ToolID:            ev.Result.TaskID,
		ToolName:          ev.TaskName,
		ProductIdentifier: ev.Product.Identifier,
		ProductName:       ev.Product.Name,
		ProductKind:       ev.Product.Kind,
		ResultData:        ev.Result.Data,
		ConfidenceScore:   ev.Result.ConfidenceScore,
		Status:            ev.Result.Status,
		Fallback:          ev.Result.Fallback,
		ModelUsed:         ev.Model,
		ProviderType:      ev.Provider,
		ProcessingTimeMs:  ev.Result.Duration().Milliseconds(),
	}
}
