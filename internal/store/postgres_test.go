package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-analyzer/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, product, status, tools, context, created_at, completed_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := sampleRun()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "5449000000996", pgxmock.AnyArg(), "running", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveRun(context.Background(), &model.AnalysisRun{ID: "gone", Status: model.RunStatusComplete})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "product", "status", "tools", "context", "created_at", "completed_at"}).
		AddRow("run-1", []byte(`{"identifier":"5449000000996","name":"Coca-Cola","kind":"code"}`), "complete",
			[]byte(`{"trends":{"task_id":"trends","status":"completed"}}`), []byte(nil), created, (*time.Time)(nil))

	mock.ExpectQuery(`FROM runs WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("complete", 100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Coca-Cola", runs[0].Product.Name)
	assert.Equal(t, model.TaskCompleted, runs[0].Tools["trends"].Status)
	assert.Nil(t, runs[0].Context)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTaskResults_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"task_results"}, taskResultCopyColumns).WillReturnResult(2)

	recs := []model.TaskRecord{
		{RunID: "run-1", ToolID: "categorizer", Status: model.TaskCompleted, ResultData: map[string]any{"tags": []any{"soda"}}},
		{RunID: "run-1", ToolID: "trends", Status: model.TaskError},
	}
	require.NoError(t, s.SaveTaskResults(context.Background(), recs))
	assert.NotEmpty(t, recs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConfirmedIdentities(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT code, name, confirmed_at FROM confirmed_identities`).
		WithArgs("3017620422003").
		WillReturnError(pgx.ErrNoRows)
	got, err := s.GetConfirmed(ctx, "3017620422003")
	require.NoError(t, err)
	assert.Nil(t, got)

	mock.ExpectExec(`INSERT INTO "confirmed_identities" .* ON CONFLICT \("code"\) DO UPDATE`).
		WithArgs("3017620422003", "Nutella 400g", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SetConfirmed(ctx, model.ConfirmedIdentity{Code: "3017620422003", Name: "Nutella 400g"}))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTaskResults_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM task_results WHERE 1=1 AND run_id = \$1 AND tool_id = \$2 ORDER BY created_at DESC, tool_id LIMIT \$3`).
		WithArgs("run-1", "trends", 5).
		WillReturnError(errors.New("connection refused"))

	_, err := s.ListTaskResults(context.Background(), ResultFilter{RunID: "run-1", ToolID: "trends", Limit: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list task results")
	assert.NoError(t, mock.ExpectationsWereMet())
}
