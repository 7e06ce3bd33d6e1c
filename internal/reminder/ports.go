package reminder

import (
	"context"

	"kittrack/internal/dispatch"
	"kittrack/internal/kit/models"
	"kittrack/internal/study"
)

// KitSource lists kits shipped out but not yet received back, already
// filtered for deactivation and participant withdrawal.
type KitSource interface {
	Outstanding(ctx context.Context) ([]*models.KitRecord, error)
}

// StudyDirectory resolves an instance to its study configuration.
type StudyDirectory interface {
	ByInstance(ctx context.Context, instanceID string) (*study.Study, error)
}

// Ledger exposes the read side of the dispatch ledger so the sweep can skip
// kits that were already reminded.
type Ledger interface {
	Dispatched(ctx context.Context, key dispatch.Key) (bool, error)
}

// Dispatcher is the idempotency gate shared by all event producers.
type Dispatcher interface {
	TryDispatch(ctx context.Context, key dispatch.Key, action dispatch.Action) (bool, error)
}

// DirectEventStore records events raised directly at the participant level
// by other paths.
type DirectEventStore interface {
	Seen(ctx context.Context, participantID, eventType string) (bool, error)
}

// Notifier sends a participant-facing notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
