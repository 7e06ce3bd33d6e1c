package results_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"kittrack/internal/dispatch"
	"kittrack/internal/dispatch/store/ledger"
	"kittrack/internal/kit/models"
	"kittrack/internal/kit/store/kits"
	"kittrack/internal/results"
	"kittrack/internal/results/store/history"
)

type fakeNotifier struct {
	sent    []models.Notification
	failErr error
}

func (f *fakeNotifier) Notify(_ context.Context, n models.Notification) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.sent = append(f.sent, n)
	return nil
}

type ReconcilerSuite struct {
	suite.Suite
	histories *history.InMemoryStore
	kits      *kits.InMemoryStore
	notifier  *fakeNotifier
	service   *results.Service
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.histories = history.New()
	s.kits = kits.NewMemory()
	s.kits.Seed(&models.KitRecord{
		KitID:         "kit-1",
		KitLabel:      "SAMPLE-1",
		InstanceID:    "study-1",
		ParticipantID: "participant-1",
	})
	s.notifier = &fakeNotifier{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard, err := dispatch.New(ledger.New(), dispatch.WithLogger(logger))
	s.Require().NoError(err)

	s.service, err = results.New(s.histories, s.kits, guard, s.notifier, results.WithLogger(logger))
	s.Require().NoError(err)
}

func (s *ReconcilerSuite) result(value, completed string, corrected bool) models.LabResult {
	return models.LabResult{
		SampleID:    "SAMPLE-1",
		Value:       value,
		CompletedAt: completed,
		Corrected:   corrected,
	}
}

func (s *ReconcilerSuite) TestFirstResultAccepted() {
	accepted, err := s.service.Reconcile(context.Background(), s.result("NEGATIVE", "2026-08-01T10:00:00Z", false))
	s.Require().NoError(err)
	s.True(accepted)

	hist, err := s.histories.History(context.Background(), "SAMPLE-1")
	s.Require().NoError(err)
	s.Len(hist, 1)

	s.Require().Len(s.notifier.sent, 1)
	s.Equal(models.EventResult, s.notifier.sent[0].EventType)
	s.Equal("participant-1", s.notifier.sent[0].ParticipantID)
	s.Require().NotNil(s.notifier.sent[0].Result)
	s.Equal("NEGATIVE", s.notifier.sent[0].Result.Value)
}

func (s *ReconcilerSuite) TestReplayIsNoOp() {
	ctx := context.Background()
	incoming := s.result("NEGATIVE", "2026-08-01T10:00:00Z", false)

	accepted, err := s.service.Reconcile(ctx, incoming)
	s.Require().NoError(err)
	s.True(accepted)

	// At-least-once delivery replays the identical message.
	accepted, err = s.service.Reconcile(ctx, incoming)
	s.Require().NoError(err)
	s.False(accepted)

	hist, err := s.histories.History(ctx, "SAMPLE-1")
	s.Require().NoError(err)
	s.Len(hist, 1, "no second append")
	s.Len(s.notifier.sent, 1, "no second notification")
}

func (s *ReconcilerSuite) TestCorrectionAccepted() {
	ctx := context.Background()
	_, err := s.service.Reconcile(ctx, s.result("NEGATIVE", "2026-08-01T10:00:00Z", false))
	s.Require().NoError(err)

	accepted, err := s.service.Reconcile(ctx, s.result("POSITIVE", "2026-08-02T09:00:00Z", true))
	s.Require().NoError(err)
	s.True(accepted)

	hist, err := s.histories.History(ctx, "SAMPLE-1")
	s.Require().NoError(err)
	s.Require().Len(hist, 2)
	s.True(hist[1].Corrected)
	s.Equal("POSITIVE", hist[1].Value)
}

func (s *ReconcilerSuite) TestPlainNeverRollsBackCorrection() {
	ctx := context.Background()
	_, err := s.service.Reconcile(ctx, s.result("NEGATIVE", "2026-08-01T10:00:00Z", false))
	s.Require().NoError(err)
	_, err = s.service.Reconcile(ctx, s.result("POSITIVE", "2026-08-02T09:00:00Z", true))
	s.Require().NoError(err)

	// Out-of-order redelivery of an old plain result.
	accepted, err := s.service.Reconcile(ctx, s.result("NEGATIVE", "2026-08-03T08:00:00Z", false))
	s.Require().NoError(err)
	s.False(accepted, "a correction is never superseded by a plain result")

	hist, err := s.histories.History(ctx, "SAMPLE-1")
	s.Require().NoError(err)
	s.Len(hist, 2)
	s.True(hist[len(hist)-1].Corrected, "latest entry stays the correction")
}

func (s *ReconcilerSuite) TestConflictingPlainResultFailsFast() {
	ctx := context.Background()
	_, err := s.service.Reconcile(ctx, s.result("POSITIVE", "2026-08-01T10:00:00Z", false))
	s.Require().NoError(err)

	accepted, err := s.service.Reconcile(ctx, s.result("NEGATIVE", "2026-08-02T10:00:00Z", false))
	s.False(accepted)

	var conflict *results.ConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal("SAMPLE-1", conflict.SampleID)
	s.Equal("POSITIVE", conflict.Previous)
	s.Equal("NEGATIVE", conflict.Incoming)

	hist, err := s.histories.History(ctx, "SAMPLE-1")
	s.Require().NoError(err)
	s.Len(hist, 1, "conflicts must not mutate history")
	s.Len(s.notifier.sent, 1, "conflicts must not notify")
}

func (s *ReconcilerSuite) TestIncompletePayloadRejected() {
	for _, incoming := range []models.LabResult{
		{Value: "POSITIVE", CompletedAt: "2026-08-01T10:00:00Z"},
		{SampleID: "SAMPLE-1", CompletedAt: "2026-08-01T10:00:00Z"},
		{SampleID: "SAMPLE-1", Value: "POSITIVE"},
	} {
		accepted, err := s.service.Reconcile(context.Background(), incoming)
		s.False(accepted)
		s.ErrorIs(err, results.ErrIncomplete)
	}
}

func (s *ReconcilerSuite) TestUnknownSampleSurfacesError() {
	incoming := models.LabResult{
		SampleID:    "NO-SUCH-SAMPLE",
		Value:       "NEGATIVE",
		CompletedAt: "2026-08-01T10:00:00Z",
	}
	accepted, err := s.service.Reconcile(context.Background(), incoming)
	s.False(accepted)
	s.Error(err)
}

func (s *ReconcilerSuite) TestNotificationFailureStillRecordsResult() {
	s.notifier.failErr = errors.New("platform down")

	accepted, err := s.service.Reconcile(context.Background(), s.result("NEGATIVE", "2026-08-01T10:00:00Z", false))
	s.Require().NoError(err, "a failed notification is not fatal to the message")
	s.True(accepted)

	hist, err := s.histories.History(context.Background(), "SAMPLE-1")
	s.Require().NoError(err)
	s.Len(hist, 1)
}
