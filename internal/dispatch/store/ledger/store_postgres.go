package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kittrack/internal/dispatch"
)

// PostgresStore persists the dispatch ledger. The primary key over
// (instance_id, event_type, correlation_id) plus ON CONFLICT DO NOTHING
// makes Insert the atomic admission decision across processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, entry dispatch.Entry) (bool, error) {
	query := `
		INSERT INTO dispatch_ledger (id, instance_id, event_type, correlation_id, dispatched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_id, event_type, correlation_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		entry.Key.InstanceID,
		entry.Key.EventType,
		entry.Key.CorrelationID,
		entry.DispatchedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *PostgresStore) Has(ctx context.Context, key dispatch.Key) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM dispatch_ledger
			WHERE instance_id = $1 AND event_type = $2 AND correlation_id = $3
		)
	`
	var exists bool
	err := s.db.QueryRowContext(ctx, query, key.InstanceID, key.EventType, key.CorrelationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}
