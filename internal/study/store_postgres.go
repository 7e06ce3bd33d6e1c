package study

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kittrack/pkg/platform/sentinel"
)

// PostgresStore reads study configuration from the studies table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ByInstance(ctx context.Context, instanceID string) (*Study, error) {
	query := `
		SELECT instance_id, name, base_url, is_active,
		       tracking_enabled, reminders_enabled, reminder_threshold_hours
		FROM studies
		WHERE instance_id = $1
	`
	var (
		study          Study
		thresholdHours int
	)
	err := s.db.QueryRowContext(ctx, query, instanceID).Scan(
		&study.InstanceID,
		&study.Name,
		&study.BaseURL,
		&study.Active,
		&study.TrackingEnabled,
		&study.RemindersEnabled,
		&thresholdHours,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load study %s: %w", instanceID, err)
	}
	study.ReminderThreshold = time.Duration(thresholdHours) * time.Hour
	return &study, nil
}

func (s *PostgresStore) ListTrackingEnabled(ctx context.Context) ([]Study, error) {
	query := `
		SELECT instance_id, name, base_url, is_active,
		       tracking_enabled, reminders_enabled, reminder_threshold_hours
		FROM studies
		WHERE is_active AND tracking_enabled
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracking studies: %w", err)
	}
	defer rows.Close()

	var out []Study
	for rows.Next() {
		var (
			study          Study
			thresholdHours int
		)
		if err := rows.Scan(
			&study.InstanceID,
			&study.Name,
			&study.BaseURL,
			&study.Active,
			&study.TrackingEnabled,
			&study.RemindersEnabled,
			&thresholdHours,
		); err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		study.ReminderThreshold = time.Duration(thresholdHours) * time.Hour
		out = append(out, study)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate studies: %w", err)
	}
	return out, nil
}
