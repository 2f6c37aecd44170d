package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"paperforge/internal/domain"
	"paperforge/internal/ports"
)

// PostgresRepository persists run outcomes into Postgres for audit/history.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunRepository = (*PostgresRepository)(nil)

// Open connects to Postgres and wires the repository.
func Open(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresRepository(db), nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveRun upserts the run snapshot keyed by run identifier.
func (r *PostgresRepository) SaveRun(ctx context.Context, rec domain.RunRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("pipeline_runs").
		Columns("run_id", "document_title", "status", "task_count", "valid_count", "output_path", "finished_at").
		Values(rec.ID, rec.DocumentTitle, string(rec.Status), rec.TaskCount, rec.ValidCount, rec.OutputPath, rec.FinishedAt).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
                SET status = EXCLUDED.status,
                    task_count = EXCLUDED.task_count,
                    valid_count = EXCLUDED.valid_count,
                    output_path = EXCLUDED.output_path,
                    finished_at = EXCLUDED.finished_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}
