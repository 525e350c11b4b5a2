// Package gateway abstracts the external payment gateway used for money
// movement: transfer recipients, payout transfers, and refunds. The engine
// treats the gateway as at-least-once and drives all retries itself.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// TransferStatus is the gateway's view of a transfer.
type TransferStatus string

const (
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusPending TransferStatus = "pending"
	TransferStatusFailed  TransferStatus = "failed"
)

// RecipientParams identifies a provider's bank account on the gateway side.
type RecipientParams struct {
	Name          string
	AccountNumber string
	BankCode      string
}

// TransferParams requests one payout transfer. Reference is the payout ID;
// the gateway deduplicates by it, so repeating a transfer with the same
// reference returns the earlier transfer instead of moving money twice.
type TransferParams struct {
	RecipientCode string
	Amount        decimal.Decimal
	Reference     string
	Reason        string
}

// TransferResult is the gateway's answer to a transfer request.
type TransferResult struct {
	TransferCode string
	GatewayRef   string
	Status       TransferStatus
}

// RefundParams requests a (partial) refund of a collected charge.
type RefundParams struct {
	GatewayRef string
	Amount     decimal.Decimal
	Reason     string
}

// RefundResult is the gateway's answer to a refund request.
type RefundResult struct {
	RefundID string
	Status   string
}

// Client is the payment gateway capability surface the settlement engine
// needs. Implementations must be safe for concurrent use.
type Client interface {
	CreateRecipient(ctx context.Context, params RecipientParams) (string, error)
	CreateTransfer(ctx context.Context, params TransferParams) (*TransferResult, error)
	FetchTransfer(ctx context.Context, transferCode string) (*TransferResult, error)
	ProcessRefund(ctx context.Context, params RefundParams) (*RefundResult, error)
}

// Error carries the raw gateway failure payload so operators can see exactly
// what the gateway said, not a paraphrase of it.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	RawBody    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s failed: status=%d message=%q", e.Op, e.StatusCode, e.Message)
}
