package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/data/mongo"
	"github.com/invoice-ledger/internal/data/postgres"
	"github.com/invoice-ledger/internal/invoice_gateway"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
	"github.com/invoice-ledger/internal/ledgerclient"
	"github.com/invoice-ledger/internal/logger"
	"github.com/invoice-ledger/internal/platform/messaging/producers"
	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/invoice-ledger/internal/reconciliation"
	"github.com/invoice-ledger/internal/submitter"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("invoice_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

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

	// Operations are published to the topic the ledger node consumes
	kafkaProducer, err := producers.NewOperationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize operation Kafka producer", "error", err)
		os.Exit(1)
	}

	invoiceRepo := postgres.NewInvoiceRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	receiptRepo := mongo.NewReceiptRepository(log, mongoDB.Database())

	client := ledgerclient.New(invoiceRepo, historyRepo,
		ledgerclient.WithTimeout(cfg.Ledger.ReadTimeout),
		ledgerclient.WithLogger(log.With("component", "ledger_client")),
	)

	engine, err := reconciliation.NewEngine(client, cfg.WorkerPool.Size, log.With("component", "reconciliation"))
	if err != nil {
		log.Error("Failed to initialize reconciliation engine", "error", err)
		os.Exit(1)
	}

	operations := submitter.New(kafkaProducer, receiptRepo, client, submitter.Config{
		StoreAddress: cfg.StoreAddress(),
		MaxDueWindow: cfg.Ledger.MaxDueWindow,
		PollInterval: cfg.Ledger.TrackPollInterval,
	}, log.With("component", "submitter"))
	invoices := service.NewInvoiceService(log, engine, nil)

	server := invoice_gateway.NewServer(log, cfg, operations, invoices)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	var closeErr error
	// Drain in-flight requests before releasing what they read from
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		closeErr = err
	}

	engine.Close()

	if err := kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
		closeErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		closeErr = err
	}

	if serverErr != nil || closeErr != nil {
		log.Error("Server shutdown completed with errors", "server_error", serverErr, "close_error", closeErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
