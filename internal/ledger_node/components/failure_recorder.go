package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/invoice-ledger/internal/ledger_node/service"
)

type FailureRecorderImpl struct {
	receiptRepo operation.ReceiptRepository
	logger      *slog.Logger
}

func NewFailureRecorder(receiptRepo operation.ReceiptRepository, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		receiptRepo: receiptRepo,
		logger:      logger,
	}
}

// RecordFailure stores a FAILED receipt. The receipt store keeps the first
// terminal receipt, so a redelivered failure is a no-op.
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, op *operation.Operation, reason shared.FailureReason, detail string) error {
	logger := r.logger
	if op.CorrelationID != "" {
		logger = r.logger.With("correlation_id", op.CorrelationID)
	}

	receipt := operation.NewFailedReceipt(op, reason, detail, time.Now().UTC())
	if err := r.receiptRepo.Save(ctx, receipt); err != nil {
		logger.Error("Failed to save FAILED receipt", "operation_id", op.ID.String(), "error", err)
		return err
	}

	logger.Info("Recorded failed operation", "operation_id", op.ID.String(), "reason", reason)
	return nil
}
