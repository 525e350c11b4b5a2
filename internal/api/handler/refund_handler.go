package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/refunds"
)

// RefundProcessor drives a refund end to end.
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, params refunds.ProcessRefundParams) (*refund.Refund, error)
}

// RefundReader reads refund records.
type RefundReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*refund.Refund, error)
}

// RefundHandler handles HTTP requests for refund operations
type RefundHandler struct {
	processor RefundProcessor
	refunds   RefundReader
	logger    *slog.Logger
}

func NewRefundHandler(logger *slog.Logger, processor RefundProcessor, refunds RefundReader) *RefundHandler {
	return &RefundHandler{
		processor: processor,
		refunds:   refunds,
		logger:    logger,
	}
}

// Create initiates a full or partial refund against a payment
func (h *RefundHandler) Create(c *gin.Context) {
	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		h.logger.Error("Invalid payment ID", "payment_id", req.PaymentID, "error", err)
		RespondBadRequest(c, "Invalid payment ID")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.logger.Error("Invalid refund amount", "amount", req.Amount, "error", err)
		RespondBadRequest(c, "Invalid refund amount")
		return
	}

	rec, err := h.processor.ProcessRefund(c.Request.Context(), refunds.ProcessRefundParams{
		PaymentID:   paymentID,
		Amount:      amount,
		Reason:      req.Reason,
		InitiatedBy: req.InitiatedBy,
	})
	if err != nil {
		h.respondRefundError(c, paymentID, err)
		return
	}

	RespondCreated(c, toRefundResponse(rec))
}

// GetByID retrieves refund details by ID, returns 404 if not found
func (h *RefundHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid refund ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid refund ID")
		return
	}

	rec, err := h.refunds.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, refund.ErrRefundNotFound{}) {
			RespondNotFound(c, "Refund not found")
			return
		}
		h.logger.Error("Failed to get refund", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toRefundResponse(rec))
}

// ListByPayment retrieves all refunds issued against one payment
func (h *RefundHandler) ListByPayment(c *gin.Context) {
	idParam := c.Param("id")
	paymentID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payment ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payment ID")
		return
	}

	recs, err := h.refunds.ListByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		h.logger.Error("Failed to list refunds", "payment_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]RefundResponse, 0, len(recs))
	for _, rec := range recs {
		responses = append(responses, toRefundResponse(rec))
	}
	RespondOK(c, gin.H{"refunds": responses})
}

func (h *RefundHandler) respondRefundError(c *gin.Context, paymentID uuid.UUID, err error) {
	switch {
	case errors.Is(err, payment.ErrPaymentNotFound{}):
		RespondNotFound(c, "Payment not found")
	case errors.Is(err, payment.ErrAlreadyRefunded):
		RespondConflict(c, "Payment is already refunded")
	case errors.Is(err, payment.ErrNotRefundable):
		RespondUnprocessable(c, "NOT_REFUNDABLE", "Payment is not in a refundable state")
	case errors.Is(err, refund.ErrInvalidAmount):
		RespondBadRequest(c, "Refund amount must be positive")
	case errors.Is(err, refund.ErrExceedsPayment):
		RespondUnprocessable(c, "EXCEEDS_PAYMENT", "Refund amount exceeds the refundable payment amount")
	default:
		h.logger.Error("Failed to process refund", "payment_id", paymentID.String(), "error", err)
		RespondInternalError(c)
	}
}
