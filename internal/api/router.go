package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/api/handler"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	refundHandler *handler.RefundHandler,
	payoutHandler *handler.PayoutHandler,
	bookingHandler *handler.BookingHandler,
	ledgerHandler *handler.LedgerHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Refund operations
		refundsGroup := v1.Group("/refunds")
		{
			refundsGroup.POST("", refundHandler.Create)
			refundsGroup.GET("/:id", refundHandler.GetByID)
		}

		// Payout operations
		payoutsGroup := v1.Group("/payouts")
		{
			payoutsGroup.GET("/:id", payoutHandler.GetByID)
			payoutsGroup.POST("/:id/retry", payoutHandler.Retry)
		}

		// Payment-scoped reads
		paymentsGroup := v1.Group("/payments")
		{
			paymentsGroup.GET("/:id/refunds", refundHandler.ListByPayment)
			paymentsGroup.GET("/:id/payout", payoutHandler.GetByPaymentID)
		}

		// Booking operations
		bookingsGroup := v1.Group("/bookings")
		{
			bookingsGroup.POST("/:id/status", bookingHandler.UpdateStatus)
		}

		// Ledger-derived balances
		v1.GET("/accounts/:type/:id/balance", ledgerHandler.GetBalance)

		// Admin consistency checks
		admin := v1.Group("/admin")
		{
			admin.GET("/invariant", ledgerHandler.CheckInvariant)
			admin.GET("/references/:type/:id/duplicates", ledgerHandler.CheckDuplicates)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
