package handler

import (
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
)

// CreateRefundRequest represents a request to refund part or all of a payment.
// Amount is a decimal string to avoid float rounding on the wire.
type CreateRefundRequest struct {
	PaymentID   string `json:"payment_id" binding:"required,uuid"`
	Amount      string `json:"amount" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	InitiatedBy string `json:"initiated_by" binding:"required"`
}

// RefundResponse represents a refund in API responses
type RefundResponse struct {
	ID              string `json:"id"`
	PaymentID       string `json:"payment_id"`
	Amount          string `json:"amount"`
	Reason          string `json:"reason"`
	Status          string `json:"status"`
	GatewayRefundID string `json:"gateway_refund_id,omitempty"`
	InitiatedBy     string `json:"initiated_by"`
	CreatedAt       string `json:"created_at"`
}

func toRefundResponse(r *refund.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID.String(),
		PaymentID:       r.PaymentID.String(),
		Amount:          r.Amount.StringFixed(2),
		Reason:          r.Reason,
		Status:          string(r.Status),
		GatewayRefundID: r.GatewayRefundID,
		InitiatedBy:     r.InitiatedBy,
		CreatedAt:       r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// PayoutResponse represents a payout in API responses
type PayoutResponse struct {
	ID           string `json:"id"`
	PaymentID    string `json:"payment_id"`
	ProviderID   string `json:"provider_id"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code,omitempty"`
	GatewayRef   string `json:"gateway_ref,omitempty"`
	Attempts     int    `json:"attempts"`
	CreatedAt    string `json:"created_at"`
}

func toPayoutResponse(p *payout.Payout) PayoutResponse {
	return PayoutResponse{
		ID:           p.ID.String(),
		PaymentID:    p.PaymentID.String(),
		ProviderID:   p.ProviderID,
		Amount:       p.Amount.StringFixed(2),
		Status:       string(p.Status),
		TransferCode: p.TransferCode,
		GatewayRef:   p.GatewayRef,
		Attempts:     p.Attempts,
		CreatedAt:    p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// RetryPayoutResponse acknowledges an accepted retry request.
type RetryPayoutResponse struct {
	PayoutID string `json:"payout_id"`
	Status   string `json:"status"`
}

// BalanceResponse represents a derived account balance in API responses
type BalanceResponse struct {
	AccountType  string `json:"account_type"`
	AccountID    string `json:"account_id"`
	Amount       string `json:"amount"`
	Credits      string `json:"credits"`
	Debits       string `json:"debits"`
	Degraded     bool   `json:"degraded"`
	CalculatedAt string `json:"calculated_at"`
}

func toBalanceResponse(b *ledgersvc.Balance) BalanceResponse {
	return BalanceResponse{
		AccountType:  string(b.AccountType),
		AccountID:    b.AccountID,
		Amount:       b.Amount.StringFixed(2),
		Credits:      b.Credits.StringFixed(2),
		Debits:       b.Debits.StringFixed(2),
		Degraded:     b.Degraded,
		CalculatedAt: b.CalculatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// UpdateBookingStatusRequest represents a request to transition a booking and
// fan out notifications.
type UpdateBookingStatusRequest struct {
	Status           string   `json:"status" binding:"required"`
	NotificationType string   `json:"notification_type"`
	TargetUserIDs    []string `json:"target_user_ids"`
}

// DuplicatesResponse reports duplicate ledger postings for one reference.
type DuplicatesResponse struct {
	ReferenceType string                  `json:"reference_type"`
	ReferenceID   string                  `json:"reference_id"`
	Clean         bool                    `json:"clean"`
	Groups        []ledger.DuplicateGroup `json:"groups,omitempty"`
}

func parseAccountType(s string) (ledger.AccountType, bool) {
	switch t := ledger.AccountType(s); t {
	case ledger.AccountTypeProviderBalance, ledger.AccountTypePlatformRevenue, ledger.AccountTypeBankAccount:
		return t, true
	default:
		return "", false
	}
}

func parseReferenceType(s string) (ledger.ReferenceType, bool) {
	switch t := ledger.ReferenceType(s); t {
	case ledger.ReferenceTypePayment, ledger.ReferenceTypePayout, ledger.ReferenceTypeRefund:
		return t, true
	default:
		return "", false
	}
}
