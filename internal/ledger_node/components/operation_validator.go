package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/invoice-ledger/internal/ledger_node/service"
)

type OperationValidatorImpl struct {
	receiptRepo operation.ReceiptRepository
	outboxRepo  outbox.Repository
	logger      *slog.Logger
}

func NewOperationValidator(receiptRepo operation.ReceiptRepository, outboxRepo outbox.Repository, logger *slog.Logger) service.OperationValidator {
	return &OperationValidatorImpl{
		receiptRepo: receiptRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
	}
}

// Validate checks the envelope only. Amounts and invoice rules are the
// store's to judge so that they surface with the store's failure reasons.
func (v *OperationValidatorImpl) Validate(_ context.Context, op *operation.Operation) error {
	if op.ID == uuid.Nil {
		return fmt.Errorf("%w: missing operation id", ledger.ErrInvalidOperation)
	}
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: %q", operation.ErrUnknownKind, op.Kind)
	}
	if op.Caller.IsZero() {
		return fmt.Errorf("%w: missing caller", ledger.ErrInvalidOperation)
	}
	return nil
}

// CheckIdempotency reports true when the operation already has an outcome:
// a terminal receipt, or an outbox message not yet indexed
func (v *OperationValidatorImpl) CheckIdempotency(ctx context.Context, op *operation.Operation) (bool, error) {
	logger := v.logger
	if op.CorrelationID != "" {
		logger = v.logger.With("correlation_id", op.CorrelationID)
	}

	receipt, err := v.receiptRepo.GetByOperationID(ctx, op.ID)
	switch {
	case err == nil:
		logger.Info("Operation already processed (idempotency)", "operation_id", op.ID.String(), "status", receipt.Status)
		return true, nil
	case !errors.Is(err, operation.ErrReceiptNotFound{}):
		logger.Error("Failed to check receipts for idempotency", "operation_id", op.ID.String(), "error", err)
		return false, fmt.Errorf("idempotency check failed for operation %s: %w", op.ID.String(), err)
	}

	message, err := v.outboxRepo.GetByOperationID(ctx, op.ID)
	switch {
	case err == nil:
		logger.Info("Operation already applied, awaiting indexing", "operation_id", op.ID.String(), "position", message.Position)
		return true, nil
	case !errors.Is(err, outbox.ErrMessageNotFound{}):
		logger.Error("Failed to check outbox for idempotency", "operation_id", op.ID.String(), "error", err)
		return false, fmt.Errorf("idempotency check failed for operation %s: %w", op.ID.String(), err)
	}

	return false, nil
}
