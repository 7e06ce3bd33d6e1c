// Package transport adapts the lab result message feed onto the reconciler.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"kittrack/internal/kit/models"
	"kittrack/internal/platform/kafka/consumer"
	"kittrack/internal/results"
)

// Handler decodes lab-result messages and hands them to the reconciler.
type Handler struct {
	service *results.Service
	logger  *slog.Logger
}

func NewHandler(service *results.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Handle implements consumer.Handler. Malformed and incomplete payloads are
// logged and committed (redelivery cannot fix them); conflicting results are
// returned as errors so the operator sees them and the messaging layer
// applies its redelivery policy.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var result models.LabResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		h.logger.Error("undecodable lab result message, skipping",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	accepted, err := h.service.Reconcile(ctx, result)
	if errors.Is(err, results.ErrIncomplete) {
		h.logger.Error("incomplete lab result message, skipping",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"sample", result.SampleID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile sample %s: %w", result.SampleID, err)
	}
	if accepted {
		h.logger.Info("lab result processed", "sample", result.SampleID)
	}
	return nil
}
