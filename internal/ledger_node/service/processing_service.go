package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/jackc/pgx/v5"
)

type ProcessingServiceImpl struct {
	db              TxRunner
	validator       OperationValidator
	executor        LedgerExecutor
	outboxManager   OutboxManager
	failureRecorder FailureRecorder
	logger          *slog.Logger
}

func NewProcessingService(
	db TxRunner,
	validator OperationValidator,
	executor LedgerExecutor,
	outboxManager OutboxManager,
	failureRecorder FailureRecorder,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		db:              db,
		validator:       validator,
		executor:        executor,
		outboxManager:   outboxManager,
		failureRecorder: failureRecorder,
		logger:          logger,
	}
}

// ProcessOperation applies one operation atomically. Rejections by the ledger
// end in a FAILED receipt and a nil error so the message is acknowledged.
// Any other error leaves the operation unapplied for redelivery.
func (s *ProcessingServiceImpl) ProcessOperation(ctx context.Context, op *operation.Operation) error {
	logger := s.logger
	if op.CorrelationID != "" {
		logger = s.logger.With("correlation_id", op.CorrelationID)
	}
	logger = logger.With("operation_id", op.ID.String(), "kind", op.Kind)

	logger.Info("Processing operation")

	// 1. Validate the operation
	if err := s.validator.Validate(ctx, op); err != nil {
		reason, ok := ledger.Classify(err)
		if !ok {
			reason = shared.FailureReasonInvalidOperation
		}
		logger.Warn("Operation validation failed", "reason", reason, "error", err)
		return s.recordFailure(ctx, logger, op, reason, err)
	}

	// 2. Check idempotency
	skip, err := s.validator.CheckIdempotency(ctx, op)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	// 3. Run the transition and stage its history in one transaction
	var batch *outbox.Batch
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		applied, err := s.executor.Execute(ctx, tx, op)
		if err != nil {
			return err
		}
		if err := s.outboxManager.CreateOutboxEntry(ctx, tx, applied); err != nil {
			return err
		}
		batch = applied
		return nil
	})
	if err == nil {
		logger.Info("Operation confirmed",
			"position", batch.Receipt.Position,
			"creations", len(batch.Creations),
			"payments", len(batch.Payments),
		)
		return nil
	}

	var dup outbox.ErrDuplicateMessage
	if errors.As(err, &dup) {
		logger.Info("Operation already applied by a concurrent delivery")
		return nil
	}

	if reason, ok := ledger.Classify(err); ok {
		logger.Info("Operation rejected by ledger", "reason", reason, "error", err)
		return s.recordFailure(ctx, logger, op, reason, err)
	}

	logger.Error("Failed to apply operation", "error", err)
	return fmt.Errorf("failed to apply operation %s: %w", op.ID.String(), err)
}

// recordFailure returns an error when the receipt could not be stored so the
// operation is delivered again instead of being left without an outcome
func (s *ProcessingServiceImpl) recordFailure(ctx context.Context, logger *slog.Logger, op *operation.Operation, reason shared.FailureReason, cause error) error {
	if err := s.failureRecorder.RecordFailure(ctx, op, reason, cause.Error()); err != nil {
		logger.Error("Failed to record operation failure", "reason", reason, "error", err)
		return fmt.Errorf("failed to record failure of operation %s: %w", op.ID.String(), err)
	}
	return nil
}
