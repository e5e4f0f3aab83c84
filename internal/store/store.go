// Package store persists analysis runs, task results and confirmed product
// identities in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/internal/model"
)

// ErrNotFound is returned (wrapped) when a run does not exist.
var ErrNotFound = eris.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status            model.RunStatus `json:"status,omitempty"`
	ProductIdentifier string          `json:"product_identifier,omitempty"`
	Limit             int             `json:"limit,omitempty"`
	Offset            int             `json:"offset,omitempty"`
}

// ResultFilter specifies criteria for listing task results.
type ResultFilter struct {
	RunID             string `json:"run_id,omitempty"`
	ToolID            string `json:"tool_id,omitempty"`
	ProductIdentifier string `json:"product_identifier,omitempty"`
	Limit             int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for analysis output.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.AnalysisRun) error
	SaveRun(ctx context.Context, run *model.AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error)

	// Task results
	SaveTaskResults(ctx context.Context, records []model.TaskRecord) error
	ListTaskResults(ctx context.Context, filter ResultFilter) ([]model.TaskRecord, error)

	// Confirmed identities. GetConfirmed returns nil, nil when unknown.
	GetConfirmed(ctx context.Context, code string) (*model.ConfirmedIdentity, error)
	SetConfirmed(ctx context.Context, id model.ConfirmedIdentity) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
