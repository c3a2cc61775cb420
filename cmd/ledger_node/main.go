package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/data/mongo"
	"github.com/invoice-ledger/internal/data/postgres"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/invoice-ledger/internal/ledger_node/components"
	"github.com/invoice-ledger/internal/ledger_node/consumer"
	"github.com/invoice-ledger/internal/ledger_node/outbox_poller"
	"github.com/invoice-ledger/internal/ledger_node/service"
	"github.com/invoice-ledger/internal/logger"
	"github.com/invoice-ledger/internal/platform/messaging/consumers"
	"github.com/invoice-ledger/internal/platform/messaging/producers"
	"github.com/invoice-ledger/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_node")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Node",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"store_address", cfg.StoreAddress().String(),
	)

	// The node is the only writer, so it owns the schema
	if err := persistence.RunMigrations(log, cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}

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

	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	receiptRepo := mongo.NewReceiptRepository(log, mongoDB.Database())
	if err := mongoDB.EnsureIndexes(appCtx, historyRepo, receiptRepo); err != nil {
		log.Error("Failed to create MongoDB indexes", "error", err)
		os.Exit(1)
	}

	repos := components.Repositories{
		Invoices:  postgres.NewInvoiceRepository(log, postgresDB),
		Tokens:    postgres.NewTokenRepository(log, postgresDB),
		Positions: postgres.NewPositionRepository(log, postgresDB),
		Outbox:    postgres.NewOutboxRepository(log, postgresDB),
		Receipts:  receiptRepo,
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// a nil *DLQProducer must not reach the handler as a non-nil interface
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	processingService := components.CreateProcessingService(
		postgresDB,
		repos,
		ledger.NewStore(cfg.StoreAddress()),
		log,
		cfg,
	)

	operationEventHandler := consumer.NewOperationEventHandler(
		log,
		processingService,
		deadLetters,
	)

	historyPublisher := outbox_poller.NewHistoryPublisher(
		repos.Outbox,
		historyRepo,
		receiptRepo,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		repos.Outbox,
		historyPublisher,
		log,
	)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.OperationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.OperationTopic, cfg.Kafka.ConsumerGroup, operationEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	if wpService, ok := processingService.(*service.WorkerPoolProcessingService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var closeErr error
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			closeErr = err
		}
	}
	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		closeErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		closeErr = err
	}

	if serviceErr != nil || closeErr != nil {
		log.Error("Ledger Node shutdown completed with errors", "service_error", serviceErr, "close_error", closeErr)
		os.Exit(1)
	}
	log.Info("Ledger Node shutdown completed successfully")
}
