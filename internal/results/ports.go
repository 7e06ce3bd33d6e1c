package results

import (
	"context"

	"kittrack/internal/dispatch"
	"kittrack/internal/kit/models"
)

// HistoryStore persists the ordered result history of a kit.
type HistoryStore interface {
	History(ctx context.Context, kitLabel string) ([]models.LabResult, error)

	// Replace persists the whole updated ordered sequence.
	Replace(ctx context.Context, kitLabel string, results []models.LabResult) error
}

// KitLookup resolves a sample identifier to its kit record.
type KitLookup interface {
	ByLabel(ctx context.Context, kitLabel string) (*models.KitRecord, error)
}

// Dispatcher is the idempotency gate shared by all event producers.
type Dispatcher interface {
	TryDispatch(ctx context.Context, key dispatch.Key, action dispatch.Action) (bool, error)
}

// Notifier sends a participant-facing notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
