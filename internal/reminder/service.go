// Package reminder sweeps for kits outstanding past their study's threshold
// and routes reminder events through the dispatch guard.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kittrack/internal/dispatch"
	"kittrack/internal/kit/models"
	"kittrack/pkg/platform/sentinel"
)

type Service struct {
	kits     KitSource
	studies  StudyDirectory
	ledger   Ledger
	guard    Dispatcher
	events   DirectEventStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the sweep's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(kits KitSource, studies StudyDirectory, ledger Ledger, guard Dispatcher, events DirectEventStore, notifier Notifier, opts ...Option) (*Service, error) {
	if kits == nil {
		return nil, fmt.Errorf("kit source is required")
	}
	if studies == nil {
		return nil, fmt.Errorf("study directory is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if events == nil {
		return nil, fmt.Errorf("direct event store is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	s := &Service{
		kits:     kits,
		studies:  studies,
		ledger:   ledger,
		guard:    guard,
		events:   events,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sweep finds kits overdue for a reminder and dispatches for each at most
// once, ever. Failures on one kit never abort the rest of the sweep.
func (s *Service) Sweep(ctx context.Context) error {
	kits, err := s.kits.Outstanding(ctx)
	if err != nil {
		return fmt.Errorf("list outstanding kits: %w", err)
	}

	reminded := 0
	for _, kit := range kits {
		sent, err := s.remind(ctx, kit)
		if err != nil {
			s.logger.Error("reminder failed", "kit", kit.KitID, "error", err)
			continue
		}
		if sent {
			reminded++
		}
	}
	s.logger.Info("reminder sweep finished", "outstanding", len(kits), "reminded", reminded)
	return nil
}

func (s *Service) remind(ctx context.Context, kit *models.KitRecord) (bool, error) {
	st, err := s.studies.ByInstance(ctx, kit.InstanceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// No configuration is a silent skip, not an error.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !st.Active || !st.RemindersEnabled {
		return false, nil
	}
	if kit.ScanDate == nil || s.now().Sub(*kit.ScanDate) < st.ReminderThreshold {
		return false, nil
	}

	key := dispatch.Key{
		InstanceID:    kit.InstanceID,
		EventType:     models.EventReminder,
		CorrelationID: kit.KitID,
	}
	already, err := s.ledger.Dispatched(ctx, key)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	return s.guard.TryDispatch(ctx, key, func(ctx context.Context) error {
		// Secondary dedup, deliberately independent of the ledger: an event
		// recorded directly at the participant level by another path means
		// the participant was already told.
		seen, err := s.events.Seen(ctx, kit.ParticipantID, models.EventReminder)
		if err != nil {
			return fmt.Errorf("check participant events: %w", err)
		}
		if seen {
			s.logger.Info("participant already has a direct reminder event, not sending",
				"kit", kit.KitID,
				"participant", kit.ParticipantID,
			)
			return nil
		}
		return s.notifier.Notify(ctx, models.Notification{
			InstanceID:    kit.InstanceID,
			ParticipantID: kit.ParticipantID,
			EventType:     models.EventReminder,
			KitID:         kit.KitID,
		})
	})
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("reminder sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
