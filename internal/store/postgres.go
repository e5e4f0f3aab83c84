package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-analyzer/internal/db"
	"github.com/sells-group/product-analyzer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var confirmedUpsert = db.UpsertConfig{
	Table:        "confirmed_identities",
	Columns:      []string{"code", "name", "confirmed_at"},
	ConflictKeys: []string{"code"},
}

var taskResultCopyColumns = []string{
	"id", "run_id", "tool_id", "tool_name", "product_identifier", "product_name", "product_kind",
	"result_data", "confidence_score", "status", "fallback", "model_used", "provider_type", "processing_time_ms", "created_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_identifier TEXT NOT NULL,
	product            JSONB NOT NULL,
	status             TEXT NOT NULL DEFAULT 'running',
	tools              JSONB NOT NULL DEFAULT '{}',
	context            JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS task_results (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id             TEXT NOT NULL,
	tool_id            TEXT NOT NULL,
	tool_name          TEXT NOT NULL,
	product_identifier TEXT NOT NULL,
	product_name       TEXT NOT NULL,
	product_kind       TEXT NOT NULL,
	result_data        JSONB,
	confidence_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	fallback           BOOLEAN NOT NULL DEFAULT false,
	model_used         TEXT NOT NULL DEFAULT '',
	provider_type      TEXT NOT NULL DEFAULT '',
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS confirmed_identities (
	code         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	confirmed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_product ON runs(product_identifier);
CREATE INDEX IF NOT EXISTS idx_task_results_run_id ON task_results(run_id);
CREATE INDEX IF NOT EXISTS idx_task_results_product ON task_results(product_identifier);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: encode run")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, product_identifier, product, status, tools, context, created_at, completed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Product.Identifier, cols.product, string(run.Status), cols.tools, cols.context, run.CreatedAt, run.CompletedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: encode run")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, tools = $2, context = $3, completed_at = $4 WHERE id = $5`,
		string(run.Status), cols.tools, cols.context, run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, product, status, tools, context, created_at, completed_at FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error) {
	query := `SELECT id, product, status, tools, context, created_at, completed_at FROM runs WHERE 1=1`
	var args []any
	n := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, n)
		args = append(args, string(filter.Status))
		n++
	}
	if filter.ProductIdentifier != "" {
		query += fmt.Sprintf(` AND product_identifier = $%d`, n)
		args = append(args, filter.ProductIdentifier)
		n++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, n)
	args = append(args, defaultLimit(filter.Limit))
	n++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveTaskResults bulk-inserts records with COPY.
func (s *PostgresStore) SaveTaskResults(ctx context.Context, records []model.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(records))
	for i := range records {
		row, err := recordRow(&records[i])
		if err != nil {
			return err
		}
		// JSONB columns take raw JSON text over COPY.
		if data, ok := row[7].(*string); ok && data != nil {
			row[7] = []byte(*data)
		}
		rows = append(rows, row)
	}
	_, err := db.CopyFrom(ctx, s.pool, "task_results", taskResultCopyColumns, rows)
	return eris.Wrap(err, "postgres: save task results")
}

func (s *PostgresStore) ListTaskResults(ctx context.Context, filter ResultFilter) ([]model.TaskRecord, error) {
	query := `SELECT ` + taskResultColumns + ` FROM task_results WHERE 1=1`
	var args []any
	n := 1

	for _, f := range []struct{ col, val string }{
		{"run_id", filter.RunID},
		{"tool_id", filter.ToolID},
		{"product_identifier", filter.ProductIdentifier},
	} {
		if f.val == "" {
			continue
		}
		query += fmt.Sprintf(` AND %s = $%d`, f.col, n)
		args = append(args, f.val)
		n++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, tool_id LIMIT $%d`, n)
	args = append(args, defaultLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list task results")
	}
	defer rows.Close()

	var out []model.TaskRecord
	for rows.Next() {
		rec, err := scanPgTaskRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list task results iterate")
}

func (s *PostgresStore) GetConfirmed(ctx context.Context, code string) (*model.ConfirmedIdentity, error) {
	var ci model.ConfirmedIdentity
	err := s.pool.QueryRow(ctx,
		`SELECT code, name, confirmed_at FROM confirmed_identities WHERE code = $1`, code,
	).Scan(&ci.Code, &ci.Name, &ci.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get confirmed %s", code)
	}
	return &ci, nil
}

func (s *PostgresStore) SetConfirmed(ctx context.Context, id model.ConfirmedIdentity) error {
	if id.ConfirmedAt.IsZero() {
		id.ConfirmedAt = time.Now().UTC()
	}
	return eris.Wrap(
		db.Upsert(ctx, s.pool, confirmedUpsert, []any{id.Code, id.Name, id.ConfirmedAt}),
		"postgres: set confirmed",
	)
}

func scanPgRun(row pgx.Row) (*model.AnalysisRun, error) {
	var r model.AnalysisRun
	var status string
	var product, tools, ctxJSON []byte
	var completedAt *time.Time

	if err := row.Scan(&r.ID, &product, &status, &tools, &ctxJSON, &r.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.CompletedAt = completedAt
	if err := decodeRun(&r, product, tools, ctxJSON != nil, ctxJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanPgTaskRecord(row pgx.Row) (*model.TaskRecord, error) {
	var rec model.TaskRecord
	var kind, status string
	var data []byte
	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.ToolID, &rec.ToolName, &rec.ProductIdentifier, &rec.ProductName,
		&kind, &data, &rec.ConfidenceScore, &status, &rec.Fallback,
		&rec.ModelUsed, &rec.ProviderType, &rec.ProcessingTimeMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan task result")
	}
	rec.ProductKind = model.ProductKind(kind)
	rec.Status = model.TaskStatus(status)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.ResultData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result data")
		}
	}
	return &rec, nil
}
