package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/api/middleware"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/shared"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/messaging/producers"
)

// PayoutReader reads payout records.
type PayoutReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error)
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*payout.Payout, error)
}

// PayoutHandler handles HTTP requests for payout operations. Retry requests
// are not executed inline; they are published to the settlement topic and the
// worker drives the retry loop.
type PayoutHandler struct {
	payouts  PayoutReader
	producer producers.MessagePublisher
	logger   *slog.Logger
}

func NewPayoutHandler(logger *slog.Logger, payouts PayoutReader, producer producers.MessagePublisher) *PayoutHandler {
	return &PayoutHandler{
		payouts:  payouts,
		producer: producer,
		logger:   logger,
	}
}

// GetByID retrieves payout details by ID, returns 404 if not found
func (h *PayoutHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payout ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payout ID")
		return
	}

	p, err := h.payouts.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, payout.ErrPayoutNotFound{}) {
			RespondNotFound(c, "Payout not found")
			return
		}
		h.logger.Error("Failed to get payout", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toPayoutResponse(p))
}

// GetByPaymentID retrieves the payout issued for a payment, if any
func (h *PayoutHandler) GetByPaymentID(c *gin.Context) {
	idParam := c.Param("id")
	paymentID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payment ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payment ID")
		return
	}

	p, err := h.payouts.GetByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		h.logger.Error("Failed to get payout by payment", "payment_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}
	if p == nil {
		RespondNotFound(c, "No payout exists for this payment")
		return
	}

	RespondOK(c, toPayoutResponse(p))
}

// Retry requests an asynchronous retry of a failed payout. The retry itself
// runs on the settlement worker; a 202 only means the request was queued.
func (h *PayoutHandler) Retry(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payout ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payout ID")
		return
	}

	p, err := h.payouts.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, payout.ErrPayoutNotFound{}) {
			RespondNotFound(c, "Payout not found")
			return
		}
		h.logger.Error("Failed to get payout", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	if p.Status != payout.StatusFailed {
		RespondConflict(c, "Only failed payouts can be retried")
		return
	}

	event := &shared.SettlementEvent{
		EventID:       uuid.New(),
		Type:          shared.EventPayoutRetryRequested,
		PayoutID:      p.ID,
		PaymentID:     p.PaymentID,
		CorrelationID: middleware.GetCorrelationID(c),
		Timestamp:     time.Now(),
	}

	if err := h.producer.Publish(c.Request.Context(), p.ID.String(), event); err != nil {
		h.logger.Error("Failed to publish payout retry request",
			"payout_id", p.ID.String(),
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, RetryPayoutResponse{
		PayoutID: p.ID.String(),
		Status:   "RETRY_REQUESTED",
	})
}
