// Package audit defines the operational reports the engine archives for
// manual reconciliation: accounting invariant checks and detected duplicate
// postings. Reports are detective artifacts; nothing auto-corrects from them.
package audit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvariantReport is the outcome of one accounting invariant check.
// The invariant cross-checks ledger totals against the payment/refund system
// of record:
//
//	providerBalances + platformRevenue + bankBalance == totalPayments - totalRefunds
type InvariantReport struct {
	Valid                 bool            `json:"valid"`
	Discrepancy           decimal.Decimal `json:"discrepancy"`
	TotalProviderBalances decimal.Decimal `json:"total_provider_balances"`
	PlatformRevenue       decimal.Decimal `json:"platform_revenue"`
	BankBalance           decimal.Decimal `json:"bank_balance"`
	TotalPayments         decimal.Decimal `json:"total_payments"`
	TotalRefunds          decimal.Decimal `json:"total_refunds"`
	CheckedAt             time.Time       `json:"checked_at"`
}

// DuplicateReport records detected duplicate ledger postings for one
// business reference.
type DuplicateReport struct {
	ReferenceType string           `json:"reference_type" bson:"reference_type"`
	ReferenceID   string           `json:"reference_id" bson:"reference_id"`
	Groups        []DuplicateGroup `json:"groups" bson:"groups"`
	DetectedAt    time.Time        `json:"detected_at" bson:"detected_at"`
}

// DuplicateGroup is one offending (account, entry type) group.
type DuplicateGroup struct {
	AccountType string `json:"account_type" bson:"account_type"`
	AccountID   string `json:"account_id" bson:"account_id"`
	EntryType   string `json:"entry_type" bson:"entry_type"`
	Count       int64  `json:"count" bson:"count"`
}

// Recorder archives reports for operational alerting. Archival failures are
// never fatal to the operation that produced the report.
type Recorder interface {
	RecordInvariantReport(ctx context.Context, report *InvariantReport) error
	RecordDuplicateReport(ctx context.Context, report *DuplicateReport) error
}
