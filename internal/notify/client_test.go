package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kittrack/internal/kit/models"
	"kittrack/internal/study"
)

func TestNotifyPostsEvent(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	studies := study.NewMemory()
	studies.Seed(study.Study{InstanceID: "study-1", Name: "testboston", BaseURL: srv.URL, Active: true})

	client := NewClient(srv.Client(), studies, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := client.Notify(context.Background(), models.Notification{
		InstanceID:    "study-1",
		ParticipantID: "p1",
		EventType:     models.EventResult,
		KitID:         "kit-1",
		Result:        &models.LabResult{Value: "NEGATIVE", CompletedAt: "2026-08-01T10:00:00Z"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/participantevent/p1", gotPath)
	assert.Equal(t, "RESULT", gotBody["eventType"])
	result, ok := gotBody["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NEGATIVE", result["value"])
}

func TestNotifyRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	studies := study.NewMemory()
	studies.Seed(study.Study{InstanceID: "study-1", BaseURL: srv.URL, Active: true})

	client := NewClient(srv.Client(), studies, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := client.Notify(context.Background(), models.Notification{
		InstanceID:    "study-1",
		ParticipantID: "p1",
		EventType:     models.EventDelivered,
	})
	assert.Error(t, err)
}

func TestNotifyUnknownStudy(t *testing.T) {
	client := NewClient(http.DefaultClient, study.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := client.Notify(context.Background(), models.Notification{InstanceID: "missing"})
	assert.Error(t, err)
}
