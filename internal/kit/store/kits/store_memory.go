// Package kits persists KitRecords. Every kit occupies
// models.SubKitsPerTrackingNumber physical rows sharing the same tracking
// numbers; status updates address rows by tracking number and must cover
// exactly that many.
package kits

import (
	"context"
	"sync"

	"kittrack/internal/kit/models"
	"kittrack/pkg/platform/sentinel"
)

type exitKey struct {
	participantID string
	instanceID    string
}

// InMemoryStore mirrors the row-per-sub-kit schema of the PostgreSQL store
// so the row-count invariant behaves the same in both.
type InMemoryStore struct {
	mu    sync.Mutex
	rows  []*models.KitRecord
	exits map[exitKey]struct{}
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{exits: make(map[exitKey]struct{})}
}

// Seed registers a kit with the standard number of sub-kit rows.
func (s *InMemoryStore) Seed(kit *models.KitRecord) {
	s.SeedRows(kit, models.SubKitsPerTrackingNumber)
}

// SeedRows registers a kit with an explicit row count, letting tests set up
// inconsistent data.
func (s *InMemoryStore) SeedRows(kit *models.KitRecord, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < rows; i++ {
		s.rows = append(s.rows, kit)
	}
}

// MarkWithdrawn records a participant exit for reminder exclusion.
func (s *InMemoryStore) MarkWithdrawn(participantID, instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exits[exitKey{participantID, instanceID}] = struct{}{}
}

// PollCandidates returns the kits of one instance still worth polling:
// non-blank tracking number whose stored status token is not yet terminal.
func (s *InMemoryStore) PollCandidates(_ context.Context, instanceID string) (outbound, returns []*models.KitRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, kit := range s.rows {
		if kit.InstanceID != instanceID {
			continue
		}
		if _, dup := seen[kit.KitID]; dup {
			continue
		}
		seen[kit.KitID] = struct{}{}

		if kit.OutboundTracking != "" && models.StatusCode(kit.OutboundStatus) != models.CodeDelivered {
			outbound = append(outbound, kit)
		}
		if kit.ReturnTracking != "" && models.StatusCode(kit.ReturnStatus) != models.CodeDelivered {
			returns = append(returns, kit)
		}
	}
	return outbound, returns, nil
}

// UpdateTrackingStatus writes the status string and event date onto every
// sub-kit row sharing the tracking number. Any row count other than
// models.SubKitsPerTrackingNumber is a *models.RowCountError.
func (s *InMemoryStore) UpdateTrackingStatus(_ context.Context, trackingNumber string, dir models.Direction, status, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := 0
	for _, kit := range s.rows {
		if kit.TrackingNumber(dir) == trackingNumber {
			matched++
		}
	}
	if matched != models.SubKitsPerTrackingNumber {
		return &models.RowCountError{TrackingNumber: trackingNumber, Rows: matched}
	}

	for _, kit := range s.rows {
		if kit.TrackingNumber(dir) != trackingNumber {
			continue
		}
		if dir == models.DirectionReturn {
			kit.ReturnStatus = status
			kit.ReturnStatusDate = date
		} else {
			kit.OutboundStatus = status
			kit.OutboundStatusDate = date
		}
	}
	return nil
}

// ByLabel finds a kit by its label (the lab-facing sample identifier).
func (s *InMemoryStore) ByLabel(_ context.Context, kitLabel string) (*models.KitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kit := range s.rows {
		if kit.KitLabel == kitLabel {
			return kit, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Outstanding returns kits scanned out but never received back, excluding
// deactivated kits and withdrawn participants. Study-level filters (active,
// capability, threshold) are applied by the reminder service.
func (s *InMemoryStore) Outstanding(_ context.Context) ([]*models.KitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.KitRecord
	seen := make(map[string]struct{})
	for _, kit := range s.rows {
		if _, dup := seen[kit.KitID]; dup {
			continue
		}
		seen[kit.KitID] = struct{}{}

		if kit.ScanDate == nil || kit.ReceiveDate != nil || kit.DeactivatedAt != nil {
			continue
		}
		if _, withdrawn := s.exits[exitKey{kit.ParticipantID, kit.InstanceID}]; withdrawn {
			continue
		}
		out = append(out, kit)
	}
	return out, nil
}

// SetExternalOrderNumber correlates a placed lab order back onto the kit.
func (s *InMemoryStore) SetExternalOrderNumber(_ context.Context, kitID, orderNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, kit := range s.rows {
		if kit.KitID == kitID {
			kit.ExternalOrderNumber = orderNumber
			found = true
		}
	}
	if !found {
		return sentinel.ErrNotFound
	}
	return nil
}
