// Package audit persists a history of completed pipeline runs in
// PostgreSQL. The engines themselves never touch the database; the store is
// optional and the application runs fully without it.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planilimpa/planilimpa/internal/config"
)

// Store records pipeline runs. A nil *Store is valid and records nothing.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the audit database and ensures the schema exists.
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id                      BIGSERIAL PRIMARY KEY,
    job_id                  UUID        NOT NULL,
    file_names              TEXT[]      NOT NULL,
    total_rows              INTEGER     NOT NULL,
    fields_filled           INTEGER     NOT NULL,
    abbreviations_corrected INTEGER     NOT NULL,
    fields_protected        INTEGER     NOT NULL,
    fields_ignored          INTEGER     NOT NULL,
    duplicate_groups        INTEGER     NOT NULL,
    cross_file_groups       INTEGER     NOT NULL,
    partial                 BOOLEAN     NOT NULL DEFAULT FALSE,
    duration_ms             BIGINT      NOT NULL,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pipeline_runs_created_at_idx ON pipeline_runs (created_at DESC);
`

func (s *Store) init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

// RunRecord is one completed pipeline run.
type RunRecord struct {
	JobID                  string        `json:"jobId"`
	FileNames              []string      `json:"arquivos"`
	TotalRows              int           `json:"totalLinhas"`
	FieldsFilled           int           `json:"camposPreenchidos"`
	AbbreviationsCorrected int           `json:"abreviaturasCorrigidas"`
	FieldsProtected        int           `json:"camposProtegidos"`
	FieldsIgnored          int           `json:"camposIgnorados"`
	DuplicateGroups        int           `json:"gruposDuplicados"`
	CrossFileGroups        int           `json:"gruposEntreArquivos"`
	Partial                bool          `json:"parcial"`
	Duration               time.Duration `json:"-"`
	DurationMs             int64         `json:"duracaoMs"`
	CreatedAt              time.Time     `json:"criadoEm"`
}

// RecordRun inserts one run. Recording on a nil store is a no-op so callers
// never need to branch on whether audit is configured.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (
			job_id, file_names, total_rows,
			fields_filled, abbreviations_corrected, fields_protected, fields_ignored,
			duplicate_groups, cross_file_groups, partial, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.JobID, rec.FileNames, rec.TotalRows,
		rec.FieldsFilled, rec.AbbreviationsCorrected, rec.FieldsProtected, rec.FieldsIgnored,
		rec.DuplicateGroups, rec.CrossFileGroups, rec.Partial, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, file_names, total_rows,
		       fields_filled, abbreviations_corrected, fields_protected, fields_ignored,
		       duplicate_groups, cross_file_groups, partial, duration_ms, created_at
		FROM pipeline_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.JobID, &rec.FileNames, &rec.TotalRows,
			&rec.FieldsFilled, &rec.AbbreviationsCorrected, &rec.FieldsProtected, &rec.FieldsIgnored,
			&rec.DuplicateGroups, &rec.CrossFileGroups, &rec.Partial, &rec.DurationMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Duration = time.Duration(rec.DurationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
