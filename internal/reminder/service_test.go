package reminder_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kittrack/internal/dispatch"
	"kittrack/internal/dispatch/store/ledger"
	"kittrack/internal/kit/models"
	"kittrack/internal/kit/store/kits"
	"kittrack/internal/participantevent"
	"kittrack/internal/reminder"
	"kittrack/internal/study"
)

type fakeNotifier struct {
	sent []models.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n models.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type ReminderSuite struct {
	suite.Suite
	kits     *kits.InMemoryStore
	studies  *study.InMemoryStore
	guard    *dispatch.Guard
	events   *participantevent.InMemoryStore
	notifier *fakeNotifier
	service  *reminder.Service
	now      time.Time
}

func TestReminderSuite(t *testing.T) {
	suite.Run(t, new(ReminderSuite))
}

func (s *ReminderSuite) SetupTest() {
	s.now = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s.kits = kits.NewMemory()
	s.studies = study.NewMemory()
	s.studies.Seed(study.Study{
		InstanceID:        "study-1",
		Name:              "testboston",
		Active:            true,
		RemindersEnabled:  true,
		ReminderThreshold: 48 * time.Hour,
	})
	s.events = participantevent.NewMemory()
	s.notifier = &fakeNotifier{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.guard, err = dispatch.New(ledger.New(), dispatch.WithLogger(logger))
	s.Require().NoError(err)

	s.service, err = reminder.New(s.kits, s.studies, s.guard, s.guard, s.events, s.notifier,
		reminder.WithLogger(logger),
		reminder.WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *ReminderSuite) seedOverdueKit(kitID, participantID string) *models.KitRecord {
	scanned := s.now.Add(-72 * time.Hour)
	kit := &models.KitRecord{
		KitID:         kitID,
		KitLabel:      "SAMPLE-" + kitID,
		InstanceID:    "study-1",
		ParticipantID: participantID,
		ScanDate:      &scanned,
	}
	s.kits.Seed(kit)
	return kit
}

func (s *ReminderSuite) TestOverdueKitReminded() {
	s.seedOverdueKit("kit-1", "p1")

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Require().Len(s.notifier.sent, 1)
	s.Equal(models.EventReminder, s.notifier.sent[0].EventType)
	s.Equal("p1", s.notifier.sent[0].ParticipantID)
}

func (s *ReminderSuite) TestSweepNeverRemindsTwice() {
	s.seedOverdueKit("kit-1", "p1")

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Len(s.notifier.sent, 1, "a ledger entry excludes the kit from later sweeps")
}

func (s *ReminderSuite) TestKitUnderThresholdSkipped() {
	kit := s.seedOverdueKit("kit-1", "p1")
	recent := s.now.Add(-12 * time.Hour)
	kit.ScanDate = &recent

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Empty(s.notifier.sent)
}

func (s *ReminderSuite) TestCapabilityDisabledSkipped() {
	s.studies.Seed(study.Study{
		InstanceID: "study-1", Active: true, RemindersEnabled: false,
		ReminderThreshold: 48 * time.Hour,
	})
	s.seedOverdueKit("kit-1", "p1")

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Empty(s.notifier.sent)
}

func (s *ReminderSuite) TestUnknownStudySilentlySkipped() {
	kit := s.seedOverdueKit("kit-1", "p1")
	kit.InstanceID = "study-unknown"

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Empty(s.notifier.sent)
}

func (s *ReminderSuite) TestDirectParticipantEventSuppressesSend() {
	s.seedOverdueKit("kit-1", "p1")
	s.Require().NoError(s.events.Record(context.Background(), "p1", models.EventReminder))

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Empty(s.notifier.sent, "direct participant event wins over the sweep")

	// The ledger entry still commits, so the kit is not re-examined.
	already, err := s.guard.Dispatched(context.Background(), dispatch.Key{
		InstanceID: "study-1", EventType: models.EventReminder, CorrelationID: "kit-1",
	})
	s.Require().NoError(err)
	s.True(already)
}

func (s *ReminderSuite) TestReceivedKitNotReminded() {
	kit := s.seedOverdueKit("kit-1", "p1")
	received := s.now.Add(-time.Hour)
	kit.ReceiveDate = &received

	s.Require().NoError(s.service.Sweep(context.Background()))
	s.Empty(s.notifier.sent)
}
