package kits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kittrack/internal/kit/models"
	"kittrack/pkg/platform/sentinel"
)

// PostgresStore reads and mutates kit rows. The schema keeps one row per
// sub-kit; request-level fields (tracking numbers, participant, label) are
// denormalized onto each row, as in the upstream kit tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const kitColumns = `
	kit_id, kit_label, instance_id, participant_id,
	outbound_tracking, return_tracking,
	outbound_status, outbound_status_date,
	return_status, return_status_date,
	external_order_number,
	scan_date, receive_date, deactivated_at
`

// Same columns qualified for joined queries.
const kitColumnsQualified = `
	kit.kit_id, kit.kit_label, kit.instance_id, kit.participant_id,
	kit.outbound_tracking, kit.return_tracking,
	kit.outbound_status, kit.outbound_status_date,
	kit.return_status, kit.return_status_date,
	kit.external_order_number,
	kit.scan_date, kit.receive_date, kit.deactivated_at
`

func scanKit(row interface{ Scan(...any) error }) (*models.KitRecord, error) {
	var (
		kit         models.KitRecord
		orderNumber sql.NullString
		scanDate    sql.NullTime
		receiveDate sql.NullTime
		deactivated sql.NullTime
	)
	err := row.Scan(
		&kit.KitID, &kit.KitLabel, &kit.InstanceID, &kit.ParticipantID,
		&kit.OutboundTracking, &kit.ReturnTracking,
		&kit.OutboundStatus, &kit.OutboundStatusDate,
		&kit.ReturnStatus, &kit.ReturnStatusDate,
		&orderNumber,
		&scanDate, &receiveDate, &deactivated,
	)
	if err != nil {
		return nil, err
	}
	kit.ExternalOrderNumber = orderNumber.String
	if scanDate.Valid {
		kit.ScanDate = &scanDate.Time
	}
	if receiveDate.Valid {
		kit.ReceiveDate = &receiveDate.Time
	}
	if deactivated.Valid {
		kit.DeactivatedAt = &deactivated.Time
	}
	return &kit, nil
}

func collectKits(rows *sql.Rows) ([]*models.KitRecord, error) {
	defer rows.Close()
	var out []*models.KitRecord
	for rows.Next() {
		kit, err := scanKit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kit: %w", err)
		}
		out = append(out, kit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kits: %w", err)
	}
	return out, nil
}

// PollCandidates returns one record per kit of the instance that still has a
// non-terminal outbound or return shipment. Terminal-status filtering on the
// stored prefix token happens here in code, matching how statuses are
// written.
func (s *PostgresStore) PollCandidates(ctx context.Context, instanceID string) (outbound, returns []*models.KitRecord, err error) {
	query := `SELECT DISTINCT ON (kit_id) ` + kitColumns + ` FROM kits WHERE instance_id = $1 ORDER BY kit_id`
	rows, err := s.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("select poll candidates: %w", err)
	}
	kits, err := collectKits(rows)
	if err != nil {
		return nil, nil, err
	}

	for _, kit := range kits {
		if kit.OutboundTracking != "" && models.StatusCode(kit.OutboundStatus) != models.CodeDelivered {
			outbound = append(outbound, kit)
		}
		if kit.ReturnTracking != "" && models.StatusCode(kit.ReturnStatus) != models.CodeDelivered {
			returns = append(returns, kit)
		}
	}
	return outbound, returns, nil
}

func (s *PostgresStore) UpdateTrackingStatus(ctx context.Context, trackingNumber string, dir models.Direction, status, date string) error {
	query := `UPDATE kits SET outbound_status = $1, outbound_status_date = $2 WHERE outbound_tracking = $3`
	if dir == models.DirectionReturn {
		query = `UPDATE kits SET return_status = $1, return_status_date = $2 WHERE return_tracking = $3`
	}
	res, err := s.db.ExecContext(ctx, query, status, date, trackingNumber)
	if err != nil {
		return fmt.Errorf("update tracking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tracking update rows affected: %w", err)
	}
	if affected != models.SubKitsPerTrackingNumber {
		return &models.RowCountError{TrackingNumber: trackingNumber, Rows: int(affected)}
	}
	return nil
}

func (s *PostgresStore) ByLabel(ctx context.Context, kitLabel string) (*models.KitRecord, error) {
	query := `SELECT ` + kitColumns + ` FROM kits WHERE kit_label = $1 LIMIT 1`
	kit, err := scanKit(s.db.QueryRowContext(ctx, query, kitLabel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load kit by label %s: %w", kitLabel, err)
	}
	return kit, nil
}

// Outstanding returns kits scanned out but never received back, excluding
// deactivated kits and withdrawn participants.
func (s *PostgresStore) Outstanding(ctx context.Context) ([]*models.KitRecord, error) {
	query := `
		SELECT DISTINCT ON (kit.kit_id) ` + kitColumnsQualified + `
		FROM kits kit
		LEFT JOIN participant_exits ex
		  ON ex.participant_id = kit.participant_id AND ex.instance_id = kit.instance_id
		WHERE ex.participant_id IS NULL
		  AND kit.scan_date IS NOT NULL
		  AND kit.receive_date IS NULL
		  AND kit.deactivated_at IS NULL
		ORDER BY kit.kit_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select outstanding kits: %w", err)
	}
	return collectKits(rows)
}

func (s *PostgresStore) SetExternalOrderNumber(ctx context.Context, kitID, orderNumber string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kits SET external_order_number = $1 WHERE kit_id = $2`,
		orderNumber, kitID,
	)
	if err != nil {
		return fmt.Errorf("set external order number: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order number rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
