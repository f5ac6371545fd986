package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"SejmAudit/internal/domain"
	"SejmAudit/internal/ports"
)

// PostgresRepository keeps audit history across runs: processes already
// audited at a given metadata snapshot are skipped, superseding assessments
// are upserted (never edited in place — the previous row is replaced whole).
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.AuditRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// AlreadyAudited returns the subset of keys (process id + metadata hash)
// that already have a stored assessment.
func (r *PostgresRepository) AlreadyAudited(ctx context.Context, keys []string) (map[string]bool, error) {
	if r.db == nil || len(keys) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := r.builder.
		Select("audit_key").
		From("audited_processes").
		Where(sq.Expr("audit_key = ANY(?)", pq.StringArray(keys))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audited: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		result[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// SaveAssessment upserts the assessment snapshot for one process.
func (r *PostgresRepository) SaveAssessment(ctx context.Context, key string, assessment domain.RiskAssessment, status domain.OutcomeStatus) error {
	if r.db == nil {
		return nil
	}

	indicators, err := json.Marshal(assessment.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}

	query, args, err := r.builder.
		Insert("audited_processes").
		Columns("audit_key", "process_id", "score", "indicators", "status", "snapshot_at").
		Values(key, assessment.ProcessID.String(), assessment.Score, indicators, string(status), assessment.SnapshotAt).
		Suffix(`ON CONFLICT (audit_key) DO UPDATE
                SET score = EXCLUDED.score,
                    indicators = EXCLUDED.indicators,
                    status = EXCLUDED.status,
                    snapshot_at = EXCLUDED.snapshot_at,
                    updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert assessment: %w", err)
	}
	return nil
}
