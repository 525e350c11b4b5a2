// Package coordinator glues booking status transitions to their settlement
// side effects and forwards outcomes to the notification and broadcast
// layers. Side-channel failures never roll back settlement state.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/booking"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/payouts"
)

// NotificationEvent is one user-facing notification request.
type NotificationEvent struct {
	Type      string `json:"type"`
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// BroadcastEvent is one realtime broadcast payload.
type BroadcastEvent struct {
	Type          string   `json:"type"`
	BookingID     string   `json:"booking_id"`
	Status        string   `json:"status"`
	TargetUserIDs []string `json:"target_user_ids,omitempty"`
}

// Notifier dispatches per-user notifications. Failures are collected, never
// fatal.
type Notifier interface {
	SendNotification(ctx context.Context, userID string, event NotificationEvent) error
}

// Broadcaster pushes realtime events. Failures are collected, never fatal.
type Broadcaster interface {
	Broadcast(ctx context.Context, event BroadcastEvent) error
}

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// UpdateBookingStatusParams drives one coordinated status transition.
type UpdateBookingStatusParams struct {
	BookingID        uuid.UUID
	NewStatus        booking.Status
	NotificationType string
	TargetUserIDs    []string
	// SkipStatusUpdate is set when the caller already persisted the
	// transition and only the side channels remain.
	SkipStatusUpdate bool
}

// Result reports what the coordinator managed to do. Success tracks only the
// status mutation; side-channel failures land in Errors.
type Result struct {
	Success           bool             `json:"success"`
	Booking           *booking.Booking `json:"booking"`
	NotificationsSent int              `json:"notifications_sent"`
	BroadcastSent     bool             `json:"broadcast_sent"`
	Errors            []string         `json:"errors,omitempty"`
}

// Coordinator performs booking transitions and their settlement side effects.
type Coordinator struct {
	db          TxRunner
	bookings    booking.Repository
	payments    payment.Repository
	writer      *ledgersvc.EntryWriter
	machine     *payouts.TransferMachine
	notifier    Notifier
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewCoordinator(
	logger *slog.Logger,
	db TxRunner,
	bookings booking.Repository,
	payments payment.Repository,
	writer *ledgersvc.EntryWriter,
	machine *payouts.TransferMachine,
	notifier Notifier,
	broadcaster Broadcaster,
) *Coordinator {
	return &Coordinator{
		db:          db,
		bookings:    bookings,
		payments:    payments,
		writer:      writer,
		machine:     machine,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// UpdateBookingStatusWithNotification performs the status transition, then
// best-effort notification and broadcast. A missing booking or a failed
// mutation is fatal; everything after the mutation only ever adds to Errors.
func (c *Coordinator) UpdateBookingStatusWithNotification(ctx context.Context, params UpdateBookingStatusParams) (*Result, error) {
	b, err := c.bookings.GetByID(ctx, params.BookingID)
	if err != nil {
		return nil, err
	}

	if !params.SkipStatusUpdate {
		if !params.NewStatus.Valid() {
			return nil, fmt.Errorf("invalid booking status %q", params.NewStatus)
		}
		if err := c.bookings.UpdateStatus(ctx, b.ID, params.NewStatus); err != nil {
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}
		b.Status = params.NewStatus
	}

	result := &Result{
		Success: true,
		Booking: b,
	}

	event := NotificationEvent{
		Type:      params.NotificationType,
		BookingID: b.ID.String(),
		Status:    string(b.Status),
	}
	for _, userID := range params.TargetUserIDs {
		if err := c.notifier.SendNotification(ctx, userID, event); err != nil {
			c.logger.Warn("Notification dispatch failed",
				"booking_id", b.ID.String(),
				"user_id", userID,
				"error", err,
			)
			result.Errors = append(result.Errors, fmt.Sprintf("notification to %s: %v", userID, err))
			continue
		}
		result.NotificationsSent++
	}

	if err := c.broadcaster.Broadcast(ctx, BroadcastEvent{
		Type:          params.NotificationType,
		BookingID:     b.ID.String(),
		Status:        string(b.Status),
		TargetUserIDs: params.TargetUserIDs,
	}); err != nil {
		c.logger.Warn("Broadcast failed",
			"booking_id", b.ID.String(),
			"error", err,
		)
		result.Errors = append(result.Errors, fmt.Sprintf("broadcast: %v", err))
	} else {
		result.BroadcastSent = true
	}

	return result, nil
}

// SettlePaymentReceived settles a collected payment: escrow credit to the
// provider, fee credit to platform revenue, payment to ESCROW, booking to
// PAYMENT_RECEIVED. Redelivery of the same payment event re-runs this safely;
// the entry writer skips the postings and the status writes are absorbing.
func (c *Coordinator) SettlePaymentReceived(ctx context.Context, paymentID uuid.UUID) (*Result, error) {
	pay, err := c.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	err = c.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txWriter := c.writer.WithTx(tx)

		// A payment may be pure fee (zero escrow) or pure escrow (zero
		// fee); the ledger rejects zero amounts, so each leg posts only
		// when it carries money.
		if pay.EscrowAmount.Sign() > 0 {
			if _, _, err := txWriter.CreateEntry(ctx, ledger.NewEntryParams{
				AccountType:   ledger.AccountTypeProviderBalance,
				AccountID:     pay.ProviderID,
				EntryType:     ledger.EntryTypeCredit,
				Amount:        pay.EscrowAmount,
				ReferenceType: ledger.ReferenceTypePayment,
				ReferenceID:   pay.ID.String(),
				Description:   "escrow hold",
				Metadata:      map[string]string{"booking_id": pay.BookingID.String()},
			}); err != nil {
				return err
			}
		}

		if pay.PlatformFee.Sign() > 0 {
			if _, _, err := txWriter.CreateEntry(ctx, ledger.NewEntryParams{
				AccountType:   ledger.AccountTypePlatformRevenue,
				AccountID:     ledger.PlatformAccountID,
				EntryType:     ledger.EntryTypeCredit,
				Amount:        pay.PlatformFee,
				ReferenceType: ledger.ReferenceTypePayment,
				ReferenceID:   pay.ID.String(),
				Description:   "platform fee",
				Metadata:      map[string]string{"booking_id": pay.BookingID.String()},
			}); err != nil {
				return err
			}
		}

		if pay.Status == payment.StatusPending {
			return c.payments.WithTx(tx).UpdateStatus(ctx, pay.ID, payment.StatusEscrow)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle received payment: %w", err)
	}

	return c.UpdateBookingStatusWithNotification(ctx, UpdateBookingStatusParams{
		BookingID:        pay.BookingID,
		NewStatus:        booking.StatusPaymentReceived,
		NotificationType: "payment_received",
		TargetUserIDs:    []string{pay.ProviderID},
	})
}

// SettleJobCompleted releases a completed booking's escrow through the payout
// machine, then notifies. The machine already moves payment and booking on
// transfer success, so the coordinator only handles side channels here.
func (c *Coordinator) SettleJobCompleted(ctx context.Context, paymentID uuid.UUID) (*Result, error) {
	pay, err := c.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	p, err := c.machine.InitiatePayout(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	notificationType := "payout_initiated"
	if p.Status == payout.StatusFailed {
		notificationType = "payout_failed"
	}

	return c.UpdateBookingStatusWithNotification(ctx, UpdateBookingStatusParams{
		BookingID:        pay.BookingID,
		NotificationType: notificationType,
		TargetUserIDs:    []string{pay.ProviderID},
		SkipStatusUpdate: true,
	})
}
