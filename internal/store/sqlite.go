package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/product-analyzer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	product_identifier TEXT NOT NULL,
	product            TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'running',
	tools              TEXT NOT NULL DEFAULT '{}',
	context            TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS task_results (
	id                 TEXT PRIMARY KEY,
	run_id             TEXT NOT NULL,
	tool_id            TEXT NOT NULL,
	tool_name          TEXT NOT NULL,
	product_identifier TEXT NOT NULL,
	product_name       TEXT NOT NULL,
	product_kind       TEXT NOT NULL,
	result_data        TEXT,
	confidence_score   REAL NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	fallback           INTEGER NOT NULL DEFAULT 0,
	model_used         TEXT NOT NULL DEFAULT '',
	provider_type      TEXT NOT NULL DEFAULT '',
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS confirmed_identities (
	code         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	confirmed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_product ON runs(product_identifier);
CREATE INDEX IF NOT EXISTS idx_task_results_run_id ON task_results(run_id);
CREATE INDEX IF NOT EXISTS idx_task_results_product ON task_results(product_identifier);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, product_identifier, product, status, tools, context, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Product.Identifier, cols.product, string(run.Status), cols.tools, cols.context, run.CreatedAt, run.CompletedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode run")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, tools = ?, context = ?, completed_at = ? WHERE id = ?`,
		string(run.Status), cols.tools, cols.context, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product, status, tools, context, created_at, completed_at FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error) {
	query := `SELECT id, product, status, tools, context, created_at, completed_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ProductIdentifier != "" {
		query += ` AND product_identifier = ?`
		args = append(args, filter.ProductIdentifier)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveTaskResults(ctx context.Context, records []model.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO task_results (id, run_id, tool_id, tool_name, product_identifier, product_name, product_kind,
		 result_data, confidence_score, status, fallback, model_used, provider_type, processing_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare task result insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range records {
		row, err := recordRow(&records[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert task result %s/%s", records[i].RunID, records[i].ToolID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit task results")
}

func (s *SQLiteStore) ListTaskResults(ctx context.Context, filter ResultFilter) ([]model.TaskRecord, error) {
	query := `SELECT ` + taskResultColumns + ` FROM task_results WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.ToolID != "" {
		query += ` AND tool_id = ?`
		args = append(args, filter.ToolID)
	}
	if filter.ProductIdentifier != "" {
		query += ` AND product_identifier = ?`
		args = append(args, filter.ProductIdentifier)
	}
	query += ` ORDER BY created_at DESC, tool_id LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list task results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.TaskRecord
	for rows.Next() {
		rec, err := scanTaskRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list task results iterate")
}

func (s *SQLiteStore) GetConfirmed(ctx context.Context, code string) (*model.ConfirmedIdentity, error) {
	var ci model.ConfirmedIdentity
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, confirmed_at FROM confirmed_identities WHERE code = ?`, code,
	).Scan(&ci.Code, &ci.Name, &ci.ConfirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get confirmed %s", code)
	}
	return &ci, nil
}

func (s *SQLiteStore) SetConfirmed(ctx context.Context, id model.ConfirmedIdentity) error {
	if id.ConfirmedAt.IsZero() {
		id.ConfirmedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmed_identities (code, name, confirmed_at) VALUES (?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET name = excluded.name, confirmed_at = excluded.confirmed_at`,
		id.Code, id.Name, id.ConfirmedAt,
	)
	return eris.Wrapf(err, "sqlite: set confirmed %s", id.Code)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

type runColumns struct {
	product string
	tools   string
	context *string
}

func encodeRun(run *model.AnalysisRun) (runColumns, error) {
	var cols runColumns
	b, err := json.Marshal(run.Product)
	if err != nil {
		return cols, err
	}
	cols.product = string(b)

	tools := run.Tools
	if tools == nil {
		tools = map[string]model.TaskResult{}
	}
	if b, err = json.Marshal(tools); err != nil {
		return cols, err
	}
	cols.tools = string(b)

	if run.Context != nil {
		if b, err = json.Marshal(run.Context); err != nil {
			return cols, err
		}
		s := string(b)
		cols.context = &s
	}
	return cols, nil
}

func scanRun(row scannable) (*model.AnalysisRun, error) {
	var r model.AnalysisRun
	var productJSON, toolsJSON string
	var contextJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &productJSON, &r.Status, &toolsJSON, &contextJSON, &r.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}
	if err := decodeRun(&r, []byte(productJSON), []byte(toolsJSON), contextJSON.Valid, []byte(contextJSON.String)); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func decodeRun(r *model.AnalysisRun, product, tools []byte, hasContext bool, ctxJSON []byte) error {
	if err := json.Unmarshal(product, &r.Product); err != nil {
		return eris.Wrap(err, "store: unmarshal product")
	}
	if err := json.Unmarshal(tools, &r.Tools); err != nil {
		return eris.Wrap(err, "store: unmarshal tools")
	}
	if hasContext && len(ctxJSON) > 0 {
		r.Context = &model.EnrichedContext{}
		if err := json.Unmarshal(ctxJSON, r.Context); err != nil {
			return eris.Wrap(err, "store: unmarshal context")
		}
	}
	return nil
}

const taskResultColumns = `id, run_id, tool_id, tool_name, product_identifier, product_name, product_kind,
	result_data, confidence_score, status, fallback, model_used, provider_type, processing_time_ms, created_at`

// recordRow assigns an id and timestamp when missing and returns the column
// values in taskResultColumns order.
func recordRow(rec *model.TaskRecord) ([]any, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var data *string
	if rec.ResultData != nil {
		b, err := json.Marshal(rec.ResultData)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal result data for %s", rec.ToolID)
		}
		s := string(b)
		data = &s
	}
	return []any{
		rec.ID, rec.RunID, rec.ToolID, rec.ToolName, rec.ProductIdentifier, rec.ProductName,
		string(rec.ProductKind), data, rec.ConfidenceScore, string(rec.Status), rec.Fallback,
		rec.ModelUsed, rec.ProviderType, rec.ProcessingTimeMs, rec.CreatedAt,
	}, nil
}

func scanTaskRecord(row scannable) (*model.TaskRecord, error) {
	var rec model.TaskRecord
	var data sql.NullString
	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.ToolID, &rec.ToolName, &rec.ProductIdentifier, &rec.ProductName,
		&rec.ProductKind, &data, &rec.ConfidenceScore, &rec.Status, &rec.Fallback,
		&rec.ModelUsed, &rec.ProviderType, &rec.ProcessingTimeMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan task result")
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &rec.ResultData); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal result data")
		}
	}
	return &rec, nil
}
