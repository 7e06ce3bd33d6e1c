package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kittrack/internal/kit/models"
)

// PostgresStore stores each kit's history as a JSON array column keyed by
// kit label, the same shape the upstream system used for its result column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) History(ctx context.Context, kitLabel string) ([]models.LabResult, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT results FROM kit_result_history WHERE kit_label = $1`,
		kitLabel,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load result history for %s: %w", kitLabel, err)
	}

	var results []models.LabResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode result history for %s: %w", kitLabel, err)
	}
	return results, nil
}

func (s *PostgresStore) Replace(ctx context.Context, kitLabel string, results []models.LabResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode result history for %s: %w", kitLabel, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kit_result_history (kit_label, results)
		VALUES ($1, $2)
		ON CONFLICT (kit_label) DO UPDATE SET results = EXCLUDED.results
	`, kitLabel, raw)
	if err != nil {
		return fmt.Errorf("store result history for %s: %w", kitLabel, err)
	}
	return nil
}
