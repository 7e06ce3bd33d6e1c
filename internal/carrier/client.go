// Package carrier looks up shipment tracking status. The HTTP client is
// injected so each component instance owns its lifecycle and timeout.
package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"kittrack/internal/kit/models"
)

const transactionSource = "kittrack"

// Config carries the carrier endpoint and credentials.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	LicenseKey string
}

type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	return &Client{http: httpClient, cfg: cfg, logger: logger}
}

// Lookup fetches the latest tracking activity for a tracking number. A
// carrier-reported error list is returned as *ErrorList; transport failures
// and unexpected shapes as plain errors.
func (c *Client) Lookup(ctx context.Context, trackingNumber string) (*models.TrackingStatusUpdate, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + trackingNumber

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracking request: %w", err)
	}
	req.Header.Set("transId", uuid.NewString())
	req.Header.Set("transSrc", transactionSource)
	req.Header.Set("Username", c.cfg.Username)
	req.Header.Set("Password", c.cfg.Password)
	req.Header.Set("AccessLicenseNumber", c.cfg.LicenseKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier lookup %s: %w", trackingNumber, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read carrier response for %s: %w", trackingNumber, err)
	}

	var decoded trackingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode carrier response for %s: %w", trackingNumber, err)
	}
	if len(decoded.Errors) > 0 {
		return nil, &ErrorList{TrackingNumber: trackingNumber, Errors: decoded.Errors}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier lookup %s: status %d", trackingNumber, resp.StatusCode)
	}

	act, err := firstActivity(decoded)
	if err != nil {
		return nil, fmt.Errorf("carrier response for %s: %w", trackingNumber, err)
	}

	return &models.TrackingStatusUpdate{
		TrackingNumber: trackingNumber,
		Code:           act.Status.Type,
		Description:    act.Status.Description,
		Timestamp:      act.Date + " " + act.Time,
	}, nil
}

func firstActivity(decoded trackingResponse) (*activity, error) {
	if decoded.TrackResponse == nil || len(decoded.TrackResponse.Shipments) == 0 {
		return nil, fmt.Errorf("no shipment data")
	}
	packages := decoded.TrackResponse.Shipments[0].Packages
	if len(packages) == 0 {
		return nil, fmt.Errorf("no package data")
	}
	activities := packages[0].Activities
	if len(activities) == 0 {
		return nil, fmt.Errorf("no activity data")
	}
	return &activities[0], nil
}
