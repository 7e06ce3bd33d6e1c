// Package tracking polls the carrier for every kit with an unresolved
// shipment, persists status transitions, and proposes the side effects they
// imply. The carrier is at-least-once by nature: the same status can be
// observed across many cycles, so every side effect is guarded by the
// previously persisted status token or by the dispatch ledger.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kittrack/internal/dispatch"
	"kittrack/internal/kit/models"
	"kittrack/internal/platform/metrics"
	"kittrack/internal/study"
	"kittrack/pkg/platform/keymutex"
)

const defaultWorkers = 4

type Service struct {
	carrier  CarrierClient
	kits     KitStore
	studies  StudyDirectory
	guard    Dispatcher
	notifier Notifier
	orders   OrderPlacer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	locks    *keymutex.KeyMutex
	workers  int
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

// WithWorkers bounds how many kits are polled concurrently per cycle.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(carrier CarrierClient, kits KitStore, studies StudyDirectory, guard Dispatcher, notifier Notifier, orders OrderPlacer, opts ...Option) (*Service, error) {
	if carrier == nil {
		return nil, fmt.Errorf("carrier client is required")
	}
	if kits == nil {
		return nil, fmt.Errorf("kit store is required")
	}
	if studies == nil {
		return nil, fmt.Errorf("study directory is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order placer is required")
	}
	s := &Service{
		carrier:  carrier,
		kits:     kits,
		studies:  studies,
		guard:    guard,
		notifier: notifier,
		orders:   orders,
		logger:   slog.Default(),
		locks:    keymutex.New(),
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Poll runs one cycle over every tracking-enabled study. Failures on one kit
// are logged and do not abort the batch, with one exception: a status update
// touching an unexpected number of sub-kit rows stops the cycle, because it
// means the data around that tracking number cannot be trusted.
func (s *Service) Poll(ctx context.Context) error {
	studies, err := s.studies.ListTrackingEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list tracking studies: %w", err)
	}

	for _, st := range studies {
		if err := s.pollStudy(ctx, st); err != nil {
			return err
		}
	}
	if s.metrics != nil {
		s.metrics.PollCycles.Inc()
	}
	return nil
}

func (s *Service) pollStudy(ctx context.Context, st study.Study) error {
	outbound, returns, err := s.kits.PollCandidates(ctx, st.InstanceID)
	if err != nil {
		return fmt.Errorf("poll candidates for %s: %w", st.InstanceID, err)
	}
	s.logger.Info("polling carrier",
		"study", st.Name,
		"outbound", len(outbound),
		"return", len(returns),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, kit := range outbound {
		kit := kit
		g.Go(func() error {
			return s.pollKit(gctx, st, kit, models.DirectionOutbound)
		})
	}
	for _, kit := range returns {
		kit := kit
		g.Go(func() error {
			return s.pollKit(gctx, st, kit, models.DirectionReturn)
		})
	}
	return g.Wait()
}

// pollKit checks one shipment of one kit. Returns nil for soft failures
// (carrier errors, remote timeouts); only data inconsistencies propagate.
func (s *Service) pollKit(ctx context.Context, st study.Study, kit *models.KitRecord, dir models.Direction) error {
	trackingNumber := kit.TrackingNumber(dir)
	if trackingNumber == "" {
		return nil
	}

	unlock := s.locks.Lock(kit.KitID)
	defer unlock()

	update, err := s.carrier.Lookup(ctx, trackingNumber)
	if err != nil {
		s.logger.Error("carrier lookup failed, kit skipped until next cycle",
			"kit", kit.KitID,
			"tracking", trackingNumber,
			"error", err,
		)
		return nil
	}

	oldStatus := kit.Status(dir)
	oldDate := kit.StatusDate(dir)
	oldCode := models.StatusCode(oldStatus)
	newStatus := update.StatusString()

	// Persist even an unchanged code: the description may carry new detail.
	// The update runs before any side effect so its row-count check can veto
	// them when the sub-kit rows are inconsistent.
	if err := s.kits.UpdateTrackingStatus(ctx, trackingNumber, dir, newStatus, update.Timestamp); err != nil {
		var rowErr *models.RowCountError
		if errors.As(err, &rowErr) {
			return rowErr
		}
		s.logger.Error("status update failed, kit skipped until next cycle",
			"kit", kit.KitID,
			"tracking", trackingNumber,
			"error", err,
		)
		return nil
	}
	if s.metrics != nil {
		s.metrics.StatusUpdates.WithLabelValues(string(dir)).Inc()
	}
	s.logger.Info("tracking status updated",
		"kit", kit.KitID,
		"tracking", trackingNumber,
		"status", newStatus,
	)

	switch dir {
	case models.DirectionOutbound:
		// DELIVERED fires when the outbound kit goes out for delivery, not
		// on final confirmed delivery. Legacy participant-facing semantics.
		if update.Code == models.CodeOutForDelivery && oldCode != models.CodeOutForDelivery {
			s.propose(ctx, st, kit, models.EventDelivered, kit.OutboundTracking)
		}
	case models.DirectionReturn:
		if update.Code == models.CodePickup && oldCode != models.CodePickup {
			s.placeOrder(ctx, kit, dir, trackingNumber, oldStatus, oldDate)
		} else if update.Code == models.CodeDelivered && oldCode != models.CodeDelivered {
			s.propose(ctx, st, kit, models.EventReceived, kit.ReturnTracking)
		}
	}
	return nil
}

// placeOrder registers the lab order behind a freshly persisted pickup edge.
// The path is not ledger-gated; the persisted status token is its only
// idempotency guard, so a failed placement rolls the status back to its
// pre-pickup value and the next cycle retries the edge.
func (s *Service) placeOrder(ctx context.Context, kit *models.KitRecord, dir models.Direction, trackingNumber, oldStatus, oldDate string) {
	orderNumber, err := s.orders.PlaceOrder(ctx, kit.ParticipantID, kit.KitLabel, kit.ExternalOrderNumber)
	if err != nil {
		s.logger.Error("lab order placement failed, restoring status for retry",
			"kit", kit.KitID,
			"tracking", trackingNumber,
			"error", err,
		)
		if err := s.kits.UpdateTrackingStatus(ctx, trackingNumber, dir, oldStatus, oldDate); err != nil {
			s.logger.Error("could not restore pre-pickup status, order may be skipped",
				"kit", kit.KitID,
				"tracking", trackingNumber,
				"error", err,
			)
		}
		return
	}
	if s.metrics != nil {
		s.metrics.OrdersPlaced.Inc()
	}
	if err := s.kits.SetExternalOrderNumber(ctx, kit.KitID, orderNumber); err != nil {
		s.logger.Error("could not record external order number",
			"kit", kit.KitID,
			"order_number", orderNumber,
			"error", err,
		)
	}
}

func (s *Service) propose(ctx context.Context, st study.Study, kit *models.KitRecord, eventType, correlationID string) {
	key := dispatch.Key{
		InstanceID:    st.InstanceID,
		EventType:     eventType,
		CorrelationID: correlationID,
	}
	_, err := s.guard.TryDispatch(ctx, key, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, models.Notification{
			InstanceID:    st.InstanceID,
			ParticipantID: kit.ParticipantID,
			EventType:     eventType,
			KitID:         kit.KitID,
		})
	})
	if err != nil {
		s.logger.Error("event dispatch failed",
			"kit", kit.KitID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// Run polls once immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Poll(ctx); err != nil {
			s.logger.Error("poll cycle aborted", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
