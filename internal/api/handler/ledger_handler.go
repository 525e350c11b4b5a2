package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/audit"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
)

// BalanceReader derives account balances from the ledger.
type BalanceReader interface {
	AccountBalance(ctx context.Context, accountType ledger.AccountType, accountID string) (*ledgersvc.Balance, error)
}

// InvariantRunner runs the accounting invariant check on demand.
type InvariantRunner interface {
	Check(ctx context.Context) (*audit.InvariantReport, error)
}

// DuplicateVerifier detects duplicate postings for a business reference.
type DuplicateVerifier interface {
	VerifyNoDuplicates(ctx context.Context, refType ledger.ReferenceType, refID string) ([]ledger.DuplicateGroup, error)
}

// LedgerHandler handles HTTP requests for balance reads and the admin
// consistency endpoints
type LedgerHandler struct {
	balances  BalanceReader
	invariant InvariantRunner
	verifier  DuplicateVerifier
	logger    *slog.Logger
}

func NewLedgerHandler(logger *slog.Logger, balances BalanceReader, invariant InvariantRunner, verifier DuplicateVerifier) *LedgerHandler {
	return &LedgerHandler{
		balances:  balances,
		invariant: invariant,
		verifier:  verifier,
		logger:    logger,
	}
}

// GetBalance derives an account balance from ledger entries. A degraded
// response means the aggregation path failed and the balance was derived by
// scanning entries.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	accountType, ok := parseAccountType(c.Param("type"))
	if !ok {
		RespondBadRequest(c, "Invalid account type")
		return
	}
	accountID := c.Param("id")
	if accountID == "" {
		RespondBadRequest(c, "Account ID is required")
		return
	}

	balance, err := h.balances.AccountBalance(c.Request.Context(), accountType, accountID)
	if err != nil {
		h.logger.Error("Failed to calculate balance",
			"account_type", accountType,
			"account_id", accountID,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toBalanceResponse(balance))
}

// CheckInvariant runs the accounting invariant check and returns the report.
// A violated invariant is still a 200; the report carries the verdict.
func (h *LedgerHandler) CheckInvariant(c *gin.Context) {
	report, err := h.invariant.Check(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to run invariant check", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, report)
}

// CheckDuplicates reports duplicate ledger postings for one business reference
func (h *LedgerHandler) CheckDuplicates(c *gin.Context) {
	refType, ok := parseReferenceType(c.Param("type"))
	if !ok {
		RespondBadRequest(c, "Invalid reference type")
		return
	}
	refID := c.Param("id")
	if refID == "" {
		RespondBadRequest(c, "Reference ID is required")
		return
	}

	groups, err := h.verifier.VerifyNoDuplicates(c.Request.Context(), refType, refID)
	if err != nil {
		h.logger.Error("Failed to check for duplicate postings",
			"reference_type", refType,
			"reference_id", refID,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	RespondOK(c, DuplicatesResponse{
		ReferenceType: string(refType),
		ReferenceID:   refID,
		Clean:         len(groups) == 0,
		Groups:        groups,
	})
}
