// Package worker executes settlement events consumed from Kafka: routing to
// the coordinator and the payout transfer machine, ants pool execution, and
// dead-lettering of unprocessable messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/shared"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/coordinator"
)

// SettlementService executes one settlement event to completion.
type SettlementService interface {
	ProcessEvent(ctx context.Context, event *shared.SettlementEvent) error
}

// BookingSettler is the coordinator surface the worker drives.
type BookingSettler interface {
	SettlePaymentReceived(ctx context.Context, paymentID uuid.UUID) (*coordinator.Result, error)
	SettleJobCompleted(ctx context.Context, paymentID uuid.UUID) (*coordinator.Result, error)
}

// TransferController is the payout machine surface the worker drives.
type TransferController interface {
	ScheduleTransferRetry(ctx context.Context, payoutID uuid.UUID) error
	ConfirmTransfer(ctx context.Context, payoutID uuid.UUID) error
	FailTransfer(ctx context.Context, payoutID uuid.UUID) error
}

// SettlementProcessingService routes events by type. It is the base service
// behind the worker pool.
type SettlementProcessingService struct {
	settler  BookingSettler
	transfer TransferController
	logger   *slog.Logger
}

func NewSettlementProcessingService(
	logger *slog.Logger,
	settler BookingSettler,
	transfer TransferController,
) *SettlementProcessingService {
	return &SettlementProcessingService{
		settler:  settler,
		transfer: transfer,
		logger:   logger,
	}
}

// ProcessEvent executes the event. Returning nil commits the Kafka offset, so
// conditions that redelivery cannot fix (retry already running, payout not in
// a retryable state) are logged and swallowed.
func (s *SettlementProcessingService) ProcessEvent(ctx context.Context, event *shared.SettlementEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid settlement event %s: %w", event.EventID, err)
	}

	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}
	logger.Info("Processing settlement event",
		"event_id", event.EventID.String(),
		"type", event.Type,
	)

	switch event.Type {
	case shared.EventPaymentReceived:
		result, err := s.settler.SettlePaymentReceived(ctx, event.PaymentID)
		if err != nil {
			return fmt.Errorf("settling received payment %s: %w", event.PaymentID, err)
		}
		s.logSideChannelErrors(logger, event, result)
		return nil

	case shared.EventJobCompleted:
		result, err := s.settler.SettleJobCompleted(ctx, event.PaymentID)
		if err != nil {
			return fmt.Errorf("settling completed job for payment %s: %w", event.PaymentID, err)
		}
		s.logSideChannelErrors(logger, event, result)
		return nil

	case shared.EventPayoutRetryRequested:
		// In-flight, non-retryable, and exhausted-budget outcomes are
		// final for this request; redelivering the event cannot change
		// them, so the offset commits.
		err := s.transfer.ScheduleTransferRetry(ctx, event.PayoutID)
		if errors.Is(err, payout.ErrRetryInFlight) ||
			errors.Is(err, payout.ErrNotRetryable) ||
			errors.Is(err, payout.ErrBudgetExhausted) {
			logger.Warn("Skipping payout retry request",
				"payout_id", event.PayoutID.String(),
				"reason", err,
			)
			return nil
		}
		return err

	case shared.EventTransferConfirmed:
		return s.transfer.ConfirmTransfer(ctx, event.PayoutID)

	case shared.EventTransferFailed:
		return s.transfer.FailTransfer(ctx, event.PayoutID)

	default:
		// Validate already rejected unknown types.
		return shared.ErrInvalidEventType
	}
}

// logSideChannelErrors surfaces notification and broadcast failures without
// failing the event; the money movement already happened.
func (s *SettlementProcessingService) logSideChannelErrors(logger *slog.Logger, event *shared.SettlementEvent, result *coordinator.Result) {
	for _, msg := range result.Errors {
		logger.Warn("Settlement side channel failed",
			"event_id", event.EventID.String(),
			"type", event.Type,
			"error", msg,
		)
	}
}
