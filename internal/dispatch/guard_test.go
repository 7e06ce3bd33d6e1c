package dispatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"kittrack/internal/dispatch"
	"kittrack/internal/dispatch/store/ledger"
)

type GuardSuite struct {
	suite.Suite
	store *ledger.InMemoryStore
	guard *dispatch.Guard
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.store = ledger.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.guard, err = dispatch.New(s.store, dispatch.WithLogger(logger))
	s.Require().NoError(err)
}

func (s *GuardSuite) TestNewRequiresLedger() {
	_, err := dispatch.New(nil)
	s.Error(err)
	s.Contains(err.Error(), "ledger store is required")
}

func (s *GuardSuite) TestActionRunsExactlyOnce() {
	ctx := context.Background()
	key := dispatch.Key{InstanceID: "study-1", EventType: "DELIVERED", CorrelationID: "1Z111"}

	calls := 0
	action := func(context.Context) error {
		calls++
		return nil
	}

	dispatched, err := s.guard.TryDispatch(ctx, key, action)
	s.Require().NoError(err)
	s.True(dispatched)

	dispatched, err = s.guard.TryDispatch(ctx, key, action)
	s.Require().NoError(err)
	s.False(dispatched, "second attempt must be suppressed without error")

	s.Equal(1, calls)
}

func (s *GuardSuite) TestFailedActionKeepsLedgerEntry() {
	ctx := context.Background()
	key := dispatch.Key{InstanceID: "study-1", EventType: "RESULT", CorrelationID: "kit-7"}

	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("remote unavailable")
	}

	dispatched, err := s.guard.TryDispatch(ctx, key, failing)
	s.True(dispatched)
	s.Error(err)

	// The entry committed before the call, so a retry never re-sends.
	dispatched, err = s.guard.TryDispatch(ctx, key, failing)
	s.Require().NoError(err)
	s.False(dispatched)
	s.Equal(1, calls)

	has, err := s.guard.Dispatched(ctx, key)
	s.Require().NoError(err)
	s.True(has)
}

func (s *GuardSuite) TestConcurrentCallersSingleDispatch() {
	ctx := context.Background()
	key := dispatch.Key{InstanceID: "study-1", EventType: "REMINDER", CorrelationID: "kit-42"}

	var calls atomic.Int64
	action := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := s.guard.TryDispatch(ctx, key, action)
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(int64(1), calls.Load(), "exactly one caller may run the action")
}

func (s *GuardSuite) TestDistinctKeysDispatchIndependently() {
	ctx := context.Background()
	action := func(context.Context) error { return nil }

	for _, key := range []dispatch.Key{
		{InstanceID: "study-1", EventType: "DELIVERED", CorrelationID: "1Z111"},
		{InstanceID: "study-1", EventType: "RECEIVED", CorrelationID: "1Z111"},
	} {
		dispatched, err := s.guard.TryDispatch(ctx, key, action)
		s.Require().NoError(err)
		s.True(dispatched, "key %+v", key)
	}
}
