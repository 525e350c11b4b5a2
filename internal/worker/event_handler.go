package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/shared"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/messaging/producers"
)

// SettlementEventHandler handles incoming settlement event messages from Kafka.
type SettlementEventHandler struct {
	processingService SettlementService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

func NewSettlementEventHandler(
	logger *slog.Logger,
	processingService SettlementService,
	producer producers.DeadLetterPublisher,
) *SettlementEventHandler {
	return &SettlementEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message. Messages that can never be
// processed (unparseable, structurally invalid) are dead-lettered and their
// offset committed; transient processing failures are returned so the message
// is redelivered.
func (h *SettlementEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.SettlementEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, fmt.Errorf("failed to unmarshal settlement event: %w", err))
	}

	if err := event.Validate(); err != nil {
		return h.deadLetter(ctx, key, value, fmt.Errorf("invalid settlement event: %w", err))
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received settlement event",
		"event_id", event.EventID.String(),
		"type", event.Type,
		"message_key", string(key),
	)

	if err := h.processingService.ProcessEvent(ctx, &event); err != nil {
		logger.Error("Failed to process settlement event",
			"event_id", event.EventID.String(),
			"type", event.Type,
			"error", err,
		)
		return fmt.Errorf("processing settlement event %s failed: %w", event.EventID.String(), err)
	}

	logger.Info("Successfully processed settlement event", "event_id", event.EventID.String())
	return nil
}

// deadLetter publishes an unprocessable message to the DLQ. When publishing
// succeeds nil is returned so the offset commits; when it fails, or no DLQ is
// configured, the original error is returned and Kafka redelivers.
func (h *SettlementEventHandler) deadLetter(ctx context.Context, key []byte, value []byte, cause error) error {
	h.logger.Error("Unprocessable settlement event",
		"error", cause,
		"message_key", string(key),
	)

	if h.producer == nil {
		return cause
	}

	if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, cause.Error()); dlqErr != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key),
		)
		return cause
	}

	h.logger.Info("Published unprocessable message to DLQ",
		"message_key", string(key),
		"reason", cause.Error(),
	)
	return nil
}
