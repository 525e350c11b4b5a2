package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/data/mongo"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/data/postgres"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/logger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/messaging/consumers"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/messaging/producers"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/coordinator"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/payouts"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/reconciler"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/worker"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting settlement worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	refundRepo := postgres.NewRefundRepository(log, postgresDB)
	payoutRepo := postgres.NewPayoutRepository(log, postgresDB)
	bookingRepo := postgres.NewBookingRepository(log, postgresDB)
	providerRepo := postgres.NewProviderRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler is nil-safe.

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

	// Initialize gateway client and ledger services
	paystack := gateway.NewPaystackClient(log, &cfg.Gateway)
	writer := ledgersvc.NewEntryWriter(log, ledgerRepo, auditRepo)
	balances := ledgersvc.NewBalanceCalculator(log, ledgerRepo)
	guard := ledgersvc.NewLiquidityGuard(log, balances)
	checker := ledgersvc.NewInvariantChecker(log, ledgerRepo, paymentRepo, refundRepo, auditRepo)

	// Initialize the payout machine and the coordinator
	machine := payouts.NewTransferMachine(
		log,
		postgresDB,
		payoutRepo,
		paymentRepo,
		bookingRepo,
		providerRepo,
		writer,
		guard,
		paystack,
		cfg.PayoutRetry,
	)

	settlementCoordinator := coordinator.NewCoordinator(
		log,
		postgresDB,
		bookingRepo,
		paymentRepo,
		writer,
		machine,
		coordinator.NewKafkaNotifier(notificationProducer),
		coordinator.NewKafkaBroadcaster(broadcastProducer),
	)

	// Initialize processing service on a bounded worker pool
	baseService := worker.NewSettlementProcessingService(log, settlementCoordinator, machine)
	processingService, err := worker.NewWorkerPoolSettlementService(
		baseService,
		worker.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize settlement event handler
	eventHandler := worker.NewSettlementEventHandler(log, processingService, dlqProducer)

	// Initialize the reconciliation sweeper
	sweeper := reconciler.NewSweeper(
		log,
		cfg.Reconciler,
		postgresDB,
		ledgerRepo,
		paymentRepo,
		refundRepo,
		payoutRepo,
		machine,
		paystack,
		checker,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.SettlementTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.SettlementTopic, cfg.Kafka.ConsumerGroup, eventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start the reconciliation sweeper in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting reconciliation sweeper",
			"sweep_interval", cfg.Reconciler.SweepInterval.String(),
			"batch_size", cfg.Reconciler.BatchSize,
		)
		sweeper.Run(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool
	log.Info("Shutting down worker pool", "running_workers", processingService.Running())
	processingService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers and consumer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}
	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing notification producer", "error", err)
	}
	if err = broadcastProducer.Close(); err != nil {
		log.Error("Error closing broadcast producer", "error", err)
	}
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Settlement worker shutdown with errors", "error", serviceErr)
	} else {
		log.Info("Settlement worker shutdown completed successfully")
	}
}
