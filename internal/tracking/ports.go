package tracking

import (
	"context"

	"kittrack/internal/dispatch"
	"kittrack/internal/kit/models"
	"kittrack/internal/study"
)

// CarrierClient looks up the latest tracking activity for a shipment.
type CarrierClient interface {
	Lookup(ctx context.Context, trackingNumber string) (*models.TrackingStatusUpdate, error)
}

// KitStore is the kit persistence the poller reads and mutates.
type KitStore interface {
	// PollCandidates returns the instance's kits whose outbound/return
	// shipments are not yet terminal.
	PollCandidates(ctx context.Context, instanceID string) (outbound, returns []*models.KitRecord, err error)

	// UpdateTrackingStatus writes status and event date onto all sub-kit
	// rows for the tracking number. Returns *models.RowCountError when the
	// affected row count is inconsistent.
	UpdateTrackingStatus(ctx context.Context, trackingNumber string, dir models.Direction, status, date string) error

	// SetExternalOrderNumber correlates a placed lab order onto the kit.
	SetExternalOrderNumber(ctx context.Context, kitID, orderNumber string) error
}

// StudyDirectory lists the studies whose kits are polled.
type StudyDirectory interface {
	ListTrackingEnabled(ctx context.Context) ([]study.Study, error)
}

// Dispatcher is the idempotency gate shared by all event producers.
type Dispatcher interface {
	TryDispatch(ctx context.Context, key dispatch.Key, action dispatch.Action) (bool, error)
}

// Notifier sends a participant-facing notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// OrderPlacer registers a follow-on lab order and returns the lab's order
// number.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, participantID, kitLabel, externalOrderNumber string) (string, error)
}
