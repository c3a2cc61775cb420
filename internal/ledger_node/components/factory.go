package components

import (
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/data/postgres"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/invoice-ledger/internal/ledger_node/service"
	"github.com/jackc/pgx/v5"
)

// Repositories groups the stores the ledger node writes to
type Repositories struct {
	Invoices  invoice.Repository
	Tokens    *postgres.TokenRepository
	Positions *postgres.PositionRepository
	Outbox    outbox.Repository
	Receipts  operation.ReceiptRepository
}

// CreateProcessingService creates a new ProcessingService with all its dependencies.
func CreateProcessingService(
	db service.TxRunner,
	repos Repositories,
	store *ledger.Store,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	validator := NewOperationValidator(repos.Receipts, repos.Outbox, logger)
	executor := NewLedgerExecutor(
		store,
		repos.Invoices,
		func(tx pgx.Tx) token.Store { return repos.Tokens.WithTx(tx) },
		func(tx pgx.Tx) PositionAllocator { return repos.Positions.WithTx(tx) },
		time.Now,
		logger,
	)
	outboxManager := NewOutboxManager(repos.Outbox, logger)
	failureRecorder := NewFailureRecorder(repos.Receipts, logger)

	baseService := service.NewProcessingService(
		db,
		validator,
		executor,
		outboxManager,
		failureRecorder,
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
