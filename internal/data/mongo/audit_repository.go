// Package mongo provides the MongoDB-backed audit archive. Invariant and
// duplicate reports land here for operational alerting and manual
// reconciliation.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/audit"
)

const (
	// InvariantCollectionName is the collection holding invariant check reports
	InvariantCollectionName = "invariant_reports"
	// DuplicateCollectionName is the collection holding duplicate posting reports
	DuplicateCollectionName = "duplicate_violations"
)

// AuditRepository implements the audit.Recorder interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Recorder {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// invariantDocument is the stored shape of an invariant report. Amounts are
// stored as fixed-point strings so the archived values survive BSON round trips
// without precision loss.
type invariantDocument struct {
	Valid                 bool      `bson:"valid"`
	Discrepancy           string    `bson:"discrepancy"`
	TotalProviderBalances string    `bson:"total_provider_balances"`
	PlatformRevenue       string    `bson:"platform_revenue"`
	BankBalance           string    `bson:"bank_balance"`
	TotalPayments         string    `bson:"total_payments"`
	TotalRefunds          string    `bson:"total_refunds"`
	CheckedAt             time.Time `bson:"checked_at"`
}

// RecordInvariantReport archives the outcome of one invariant check.
func (r *AuditRepository) RecordInvariantReport(ctx context.Context, report *audit.InvariantReport) error {
	collection := r.db.Collection(InvariantCollectionName)

	doc := invariantDocument{
		Valid:                 report.Valid,
		Discrepancy:           report.Discrepancy.StringFixed(2),
		TotalProviderBalances: report.TotalProviderBalances.StringFixed(2),
		PlatformRevenue:       report.PlatformRevenue.StringFixed(2),
		BankBalance:           report.BankBalance.StringFixed(2),
		TotalPayments:         report.TotalPayments.StringFixed(2),
		TotalRefunds:          report.TotalRefunds.StringFixed(2),
		CheckedAt:             report.CheckedAt,
	}

	_, err := collection.InsertOne(ctx, doc)
	if err != nil {
		r.logger.Error("Failed to record invariant report",
			"valid", report.Valid,
			"error", err)
		return fmt.Errorf("failed to record invariant report: %w", err)
	}

	if !report.Valid {
		r.logger.Warn("Archived failing invariant report",
			"discrepancy", report.Discrepancy.String())
	}

	return nil
}

// RecordDuplicateReport archives detected duplicate postings for a reference.
func (r *AuditRepository) RecordDuplicateReport(ctx context.Context, report *audit.DuplicateReport) error {
	collection := r.db.Collection(DuplicateCollectionName)

	_, err := collection.InsertOne(ctx, report)
	if err != nil {
		r.logger.Error("Failed to record duplicate report",
			"reference_type", report.ReferenceType,
			"reference_id", report.ReferenceID,
			"error", err)
		return fmt.Errorf("failed to record duplicate report: %w", err)
	}

	r.logger.Warn("Archived duplicate posting report",
		"reference_type", report.ReferenceType,
		"reference_id", report.ReferenceID,
		"groups", len(report.Groups))

	return nil
}
