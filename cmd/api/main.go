package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/api"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/api/handler"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/data/mongo"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/data/postgres"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/logger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/messaging/producers"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/coordinator"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/refunds"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	settlementProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement event producer", "error", err)
		os.Exit(1)
	}

	notificationProducer, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification producer", "error", err)
		os.Exit(1)
	}

	broadcastProducer, err := producers.NewBroadcastProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize broadcast producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	refundRepo := postgres.NewRefundRepository(log, postgresDB)
	payoutRepo := postgres.NewPayoutRepository(log, postgresDB)
	bookingRepo := postgres.NewBookingRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize gateway client and ledger services
	paystack := gateway.NewPaystackClient(log, &cfg.Gateway)
	writer := ledgersvc.NewEntryWriter(log, ledgerRepo, auditRepo)
	balances := ledgersvc.NewBalanceCalculator(log, ledgerRepo)
	checker := ledgersvc.NewInvariantChecker(log, ledgerRepo, paymentRepo, refundRepo, auditRepo)

	refundProcessor := refunds.NewProcessor(log, postgresDB, paymentRepo, refundRepo, writer, balances, paystack)

	// The API never runs transfers inline, so the coordinator here is wired
	// without a transfer machine; escrow release happens on the worker.
	settlementCoordinator := coordinator.NewCoordinator(
		log,
		postgresDB,
		bookingRepo,
		paymentRepo,
		writer,
		nil,
		coordinator.NewKafkaNotifier(notificationProducer),
		coordinator.NewKafkaBroadcaster(broadcastProducer),
	)

	// Initialize REST server
	server := api.NewServer(log, cfg, api.Handlers{
		Refunds:  handler.NewRefundHandler(log, refundProcessor, refundRepo),
		Payouts:  handler.NewPayoutHandler(log, payoutRepo, settlementProducer),
		Bookings: handler.NewBookingHandler(log, settlementCoordinator),
		Ledger:   handler.NewLedgerHandler(log, balances, checker, writer),
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = settlementProducer.Close(); err != nil {
		log.Error("Error closing settlement event producer", "error", err)
	}
	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing notification producer", "error", err)
	}
	if err = broadcastProducer.Close(); err != nil {
		log.Error("Error closing broadcast producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
