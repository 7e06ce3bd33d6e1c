// Package notify delivers participant-facing event notifications to each
// study's downstream platform.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kittrack/internal/kit/models"
	"kittrack/internal/study"
)

// StudyDirectory resolves an instance to its study configuration, which
// carries the platform base URL.
type StudyDirectory interface {
	ByInstance(ctx context.Context, instanceID string) (*study.Study, error)
}

// event is the wire payload the participant platform expects.
type event struct {
	ParticipantID string          `json:"participantId"`
	EventType     string          `json:"eventType"`
	EventDate     int64           `json:"eventDate"`
	Result        *resultsPayload `json:"result,omitempty"`
}

type resultsPayload struct {
	Value       string `json:"value"`
	CompletedAt string `json:"timeCompleted"`
	Corrected   bool   `json:"isCorrected"`
}

type Client struct {
	http    *http.Client
	studies StudyDirectory
	logger  *slog.Logger
	now     func() time.Time
}

func NewClient(httpClient *http.Client, studies StudyDirectory, logger *slog.Logger) *Client {
	return &Client{http: httpClient, studies: studies, logger: logger, now: time.Now}
}

// Notify posts the event to the study's platform. Any non-2xx response is an
// error; the caller decides whether that is fatal.
func (c *Client) Notify(ctx context.Context, n models.Notification) error {
	cfg, err := c.studies.ByInstance(ctx, n.InstanceID)
	if err != nil {
		return fmt.Errorf("resolve study %s: %w", n.InstanceID, err)
	}

	payload := event{
		ParticipantID: n.ParticipantID,
		EventType:     n.EventType,
		EventDate:     c.now().Unix(),
	}
	if n.Result != nil {
		payload.Result = &resultsPayload{
			Value:       n.Result.Value,
			CompletedAt: n.Result.CompletedAt,
			Corrected:   n.Result.Corrected,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	url := strings.TrimSuffix(cfg.BaseURL, "/") + "/participantevent/" + n.ParticipantID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s for %s: %w", n.EventType, n.ParticipantID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify %s for %s: platform returned %d", n.EventType, n.ParticipantID, resp.StatusCode)
	}

	c.logger.Info("notification delivered",
		"study", cfg.Name,
		"event_type", n.EventType,
		"participant", n.ParticipantID,
	)
	return nil
}
