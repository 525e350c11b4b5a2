package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/booking"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/coordinator"
)

// BookingStatusUpdater transitions a booking and fans out notifications.
type BookingStatusUpdater interface {
	UpdateBookingStatusWithNotification(ctx context.Context, params coordinator.UpdateBookingStatusParams) (*coordinator.Result, error)
}

// BookingHandler handles HTTP requests for booking status transitions
type BookingHandler struct {
	coordinator BookingStatusUpdater
	logger      *slog.Logger
}

func NewBookingHandler(logger *slog.Logger, c BookingStatusUpdater) *BookingHandler {
	return &BookingHandler{
		coordinator: c,
		logger:      logger,
	}
}

// UpdateStatus transitions a booking and dispatches notifications. Side
// channel failures do not fail the request; they are reported in the body.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	idParam := c.Param("id")
	bookingID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid booking ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid booking ID")
		return
	}

	var req UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	status := booking.Status(req.Status)
	if !status.Valid() {
		RespondBadRequest(c, "Invalid booking status")
		return
	}

	result, err := h.coordinator.UpdateBookingStatusWithNotification(c.Request.Context(), coordinator.UpdateBookingStatusParams{
		BookingID:        bookingID,
		NewStatus:        status,
		NotificationType: req.NotificationType,
		TargetUserIDs:    req.TargetUserIDs,
	})
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound{}) {
			RespondNotFound(c, "Booking not found")
			return
		}
		h.logger.Error("Failed to update booking status",
			"booking_id", idParam,
			"status", req.Status,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	RespondOK(c, result)
}
