package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     UpsertConfig
		want    string
		wantErr string
	}{
		{
			name: "update non-key columns",
			cfg: UpsertConfig{
				Table:        "confirmed_identities",
				Columns:      []string{"code", "name", "updated_at"},
				ConflictKeys: []string{"code"},
			},
			want: `INSERT INTO "confirmed_identities" ("code", "name", "updated_at") VALUES ($1, $2, $3) ON CONFLICT ("code") DO UPDATE SET "name" = EXCLUDED."name", "updated_at" = EXCLUDED."updated_at"`,
		},
		{
			name: "keys only",
			cfg: UpsertConfig{
				Table:        "t",
				Columns:      []string{"id"},
				ConflictKeys: []string{"id"},
			},
			want: `INSERT INTO "t" ("id") VALUES ($1) ON CONFLICT ("id") DO NOTHING`,
		},
		{name: "no columns", cfg: UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, wantErr: "no columns"},
		{name: "no keys", cfg: UpsertConfig{Table: "t", Columns: []string{"id"}}, wantErr: "no conflict keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UpsertSQL(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{Table: "confirmed_identities", Columns: []string{"code", "name"}, ConflictKeys: []string{"code"}}
	mock.ExpectExec(`INSERT INTO "confirmed_identities"`).
		WithArgs("5449000000996", "Coca-Cola").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, Upsert(context.Background(), mock, cfg, []any{"5449000000996", "Coca-Cola"}))
	assert.NoError(t, mock.ExpectationsWereMet())

	err = Upsert(context.Background(), mock, cfg, []any{"only-one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 values for 2 columns")
}

func TestCopyFrom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "tool_id"}
	mock.ExpectCopyFrom(pgx.Identifier{"task_results"}, cols).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "task_results", cols, [][]any{{"a", "categorizer"}, {"b", "trends"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = CopyFrom(context.Background(), mock, "task_results", cols, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectCopyFrom(pgx.Identifier{"task_results"}, cols).WillReturnError(errors.New("conn closed"))
	_, err = CopyFrom(context.Background(), mock, "task_results", cols, [][]any{{"c", "seo"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO task_results")
	assert.NoError(t, mock.ExpectationsWereMet())
}
