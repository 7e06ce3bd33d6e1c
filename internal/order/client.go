// Package order places follow-on lab orders once a return shipment is
// picked up. This path is deliberately not gated by the dispatch ledger:
// the poller's persisted old-status check is the only idempotency guard,
// matching the behavior this system inherited.
package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kittrack/internal/participant"
)

// Wire shapes for the lab ordering endpoint. ID carries the shipper's
// external order number so the lab can correlate the order with the kit.
type orderMessage struct {
	Name  string       `json:"name"`
	ID    string       `json:"id"`
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	Account   string              `json:"account"`
	Patient   patient             `json:"patient"`
	KitLabel  string              `json:"specimenId"`
	Provider  provider            `json:"provider"`
	OrderedAt string              `json:"orderedAt"`
	Address   participant.Address `json:"address"`
}

type patient struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type provider struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	NPI       string `json:"npi"`
}

// Response is the lab's acknowledgement of a placed order.
type Response struct {
	OrderNumber string `json:"orderNumber"`
	Error       string `json:"error"`
}

// Config carries the ordering endpoint, account, and the ordering provider.
type Config struct {
	Endpoint          string
	Account           string
	ProviderFirstName string
	ProviderLastName  string
	ProviderNPI       string
}

type Client struct {
	http         *http.Client
	cfg          Config
	participants participant.Directory
	logger       *slog.Logger
	now          func() time.Time
}

func NewClient(httpClient *http.Client, cfg Config, participants participant.Directory, logger *slog.Logger) *Client {
	return &Client{
		http:         httpClient,
		cfg:          cfg,
		participants: participants,
		logger:       logger,
		now:          time.Now,
	}
}

// PlaceOrder registers a lab order for the participant's kit and returns the
// lab's order number for correlation.
func (c *Client) PlaceOrder(ctx context.Context, participantID, kitLabel, externalOrderNumber string) (string, error) {
	p, err := c.participants.Lookup(ctx, participantID)
	if err != nil {
		return "", fmt.Errorf("lookup participant %s: %w", participantID, err)
	}
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("participant %s cannot be ordered for: %w", participantID, err)
	}

	msg := orderMessage{
		Name: "order-" + uuid.NewString(),
		ID:   externalOrderNumber,
		Order: orderPayload{
			Account: c.cfg.Account,
			Patient: patient{
				ID:        p.GUID,
				FirstName: p.FirstName,
				LastName:  p.LastName,
			},
			KitLabel: kitLabel,
			Provider: provider{
				FirstName: c.cfg.ProviderFirstName,
				LastName:  c.cfg.ProviderLastName,
				NPI:       c.cfg.ProviderNPI,
			},
			OrderedAt: c.now().UTC().Format(time.RFC3339),
			Address:   *p.Address,
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("place order for %s: %w", kitLabel, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read order response for %s: %w", kitLabel, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("place order for %s: lab returned %d with %s", kitLabel, resp.StatusCode, raw)
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode order response for %s: %w", kitLabel, err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("place order for %s: %s", kitLabel, decoded.Error)
	}

	c.logger.Info("lab order placed", "kit_label", kitLabel, "order_number", decoded.OrderNumber)
	return decoded.OrderNumber, nil
}
