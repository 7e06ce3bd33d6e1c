// Package results decides whether an incoming lab result is new information.
// The feed is at-least-once and unordered; history plus the dispatch ledger
// make replays harmless.
package results

import (
	"context"
	"fmt"
	"log/slog"

	"kittrack/internal/dispatch"
	"kittrack/internal/kit/models"
	"kittrack/internal/platform/metrics"
	"kittrack/pkg/platform/keymutex"
)

type Service struct {
	histories HistoryStore
	kits      KitLookup
	guard     Dispatcher
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	locks     *keymutex.KeyMutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(histories HistoryStore, kits KitLookup, guard Dispatcher, notifier Notifier, opts ...Option) (*Service, error) {
	if histories == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if kits == nil {
		return nil, fmt.Errorf("kit lookup is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	s := &Service{
		histories: histories,
		kits:      kits,
		guard:     guard,
		notifier:  notifier,
		logger:    slog.Default(),
		locks:     keymutex.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reconcile evaluates one incoming result against the kit's history and, if
// it is new information, records it and proposes a RESULT notification.
// Returns whether the result was accepted. Replaying an accepted result is a
// no-op: it rejects as a duplicate before the guard is ever consulted.
func (s *Service) Reconcile(ctx context.Context, incoming models.LabResult) (bool, error) {
	if incoming.SampleID == "" || incoming.Value == "" || incoming.CompletedAt == "" {
		return false, ErrIncomplete
	}

	unlock := s.locks.Lock(incoming.SampleID)
	defer unlock()

	hist, err := s.histories.History(ctx, incoming.SampleID)
	if err != nil {
		return false, fmt.Errorf("load history for %s: %w", incoming.SampleID, err)
	}

	if len(hist) > 0 {
		latest := hist[len(hist)-1]

		// A correction can never be rolled back by a plain result.
		if latest.Corrected && !incoming.Corrected {
			s.logger.Info("plain result after correction ignored",
				"sample", incoming.SampleID,
				"completed", incoming.CompletedAt,
			)
			return false, nil
		}

		if incoming.Corrected == latest.Corrected &&
			incoming.Value == latest.Value &&
			incoming.CompletedAt == latest.CompletedAt {
			s.logger.Info("duplicate result ignored", "sample", incoming.SampleID)
			return false, nil
		}

		if !incoming.Corrected && latest.Value != "" && incoming.Value != latest.Value {
			if s.metrics != nil {
				s.metrics.ResultConflicts.Inc()
			}
			return false, &ConflictError{
				SampleID:    incoming.SampleID,
				Previous:    latest.Value,
				Incoming:    incoming.Value,
				CompletedAt: incoming.CompletedAt,
			}
		}
	}

	kit, err := s.kits.ByLabel(ctx, incoming.SampleID)
	if err != nil {
		return false, fmt.Errorf("resolve kit for sample %s: %w", incoming.SampleID, err)
	}

	if err := s.histories.Replace(ctx, incoming.SampleID, append(hist, incoming)); err != nil {
		return false, fmt.Errorf("append result for %s: %w", incoming.SampleID, err)
	}
	if s.metrics != nil {
		s.metrics.ResultsAccepted.Inc()
	}
	s.logger.Info("result accepted",
		"sample", incoming.SampleID,
		"corrected", incoming.Corrected,
		"completed", incoming.CompletedAt,
	)

	key := dispatch.Key{
		InstanceID:    kit.InstanceID,
		EventType:     models.EventResult,
		CorrelationID: incoming.SampleID,
	}
	accepted := incoming
	_, err = s.guard.TryDispatch(ctx, key, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, models.Notification{
			InstanceID:    kit.InstanceID,
			ParticipantID: kit.ParticipantID,
			EventType:     models.EventResult,
			KitID:         kit.KitID,
			Result:        &accepted,
		})
	})
	if err != nil {
		// The result itself is recorded; a failed notification must not
		// trigger redelivery of the message.
		s.logger.Error("result notification failed", "sample", incoming.SampleID, "error", err)
	}
	return true, nil
}
