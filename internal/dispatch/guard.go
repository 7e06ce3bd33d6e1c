// Package dispatch is the single choke point between event producers and the
// participant-facing platform. Every producer proposes events through the
// Guard; the ledger decides admission.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kittrack/internal/platform/metrics"
)

// Action performs the external side effect for an admitted dispatch.
type Action func(ctx context.Context) error

// Guard guarantees at-most-one downstream action per Key. The ledger entry is
// committed before the action runs: a failed action leaves the entry in
// place, trading a possible missed notification for the certainty of never
// sending a duplicate. Implementers preferring at-least-once delivery would
// commit after the call instead and accept duplicate sends on a crash
// between call and commit.
type Guard struct {
	ledger  LedgerStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// WithClock overrides the dispatch timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func New(ledger LedgerStore, opts ...Option) (*Guard, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	g := &Guard{
		ledger: ledger,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TryDispatch inserts a ledger entry for key and, if this call won the
// insert, runs action. Returns whether the action ran. A duplicate key is
// not an error. An action error is returned to the caller but never removes
// the ledger entry.
func (g *Guard) TryDispatch(ctx context.Context, key Key, action Action) (bool, error) {
	inserted, err := g.ledger.Insert(ctx, Entry{Key: key, DispatchedAt: g.now()})
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	if !inserted {
		g.logger.Debug("dispatch suppressed, already in ledger",
			"instance", key.InstanceID,
			"event_type", key.EventType,
			"correlation", key.CorrelationID,
		)
		if g.metrics != nil {
			g.metrics.DuplicatesSuppressed.WithLabelValues(key.EventType).Inc()
		}
		return false, nil
	}

	if err := action(ctx); err != nil {
		g.logger.Error("dispatched action failed, ledger entry kept",
			"instance", key.InstanceID,
			"event_type", key.EventType,
			"correlation", key.CorrelationID,
			"error", err,
		)
		if g.metrics != nil {
			g.metrics.DispatchFailures.WithLabelValues(key.EventType).Inc()
		}
		return true, fmt.Errorf("dispatch %s/%s: %w", key.EventType, key.CorrelationID, err)
	}

	g.logger.Info("dispatched",
		"instance", key.InstanceID,
		"event_type", key.EventType,
		"correlation", key.CorrelationID,
	)
	if g.metrics != nil {
		g.metrics.Dispatches.WithLabelValues(key.EventType).Inc()
	}
	return true, nil
}

// Dispatched reports whether a dispatch was already admitted for key.
func (g *Guard) Dispatched(ctx context.Context, key Key) (bool, error) {
	has, err := g.ledger.Has(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}
	return has, nil
}
