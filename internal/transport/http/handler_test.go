package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kittrack/internal/dispatch"
	"kittrack/internal/dispatch/store/ledger"
	"kittrack/internal/kit/models"
	"kittrack/internal/kit/store/kits"
	"kittrack/internal/results"
	"kittrack/internal/results/store/history"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.Notification) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kitStore := kits.NewMemory()
	kitStore.Seed(&models.KitRecord{
		KitID: "kit-1", KitLabel: "SAMPLE-1", InstanceID: "study-1", ParticipantID: "p1",
	})

	guard, err := dispatch.New(ledger.New(), dispatch.WithLogger(logger))
	require.NoError(t, err)

	svc, err := results.New(history.New(), kitStore, guard, noopNotifier{}, results.WithLogger(logger))
	require.NoError(t, err)

	return NewRouter(NewHandler(svc, logger))
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/results", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostResultLifecycle(t *testing.T) {
	router := newTestRouter(t)
	body := `{"sampleId":"SAMPLE-1","result":"NEGATIVE","timeCompleted":"2026-08-01T10:00:00Z"}`

	rec := post(t, router, body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Replay is acknowledged without becoming new information.
	rec = post(t, router, body)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A contradicting plain result is an operator problem.
	rec = post(t, router, `{"sampleId":"SAMPLE-1","result":"POSITIVE","timeCompleted":"2026-08-02T10:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostResultBadPayloads(t *testing.T) {
	router := newTestRouter(t)

	rec := post(t, router, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, router, `{"sampleId":"SAMPLE-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
