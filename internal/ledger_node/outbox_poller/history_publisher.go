package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
)

// HistoryPublisher indexes a committed outbox batch into the history log
type HistoryPublisher interface {
	PublishToHistory(ctx context.Context, message *outbox.Message) error
}

// HistoryPublisherImpl writes records first and the receipt last, so a
// CONFIRMED receipt implies the operation's history is queryable
type HistoryPublisherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo history.Repository
	receiptRepo operation.ReceiptRepository
	logger      *slog.Logger
}

func NewHistoryPublisher(
	outboxRepo outbox.Repository,
	historyRepo history.Repository,
	receiptRepo operation.ReceiptRepository,
	logger *slog.Logger,
) HistoryPublisher {
	return &HistoryPublisherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		receiptRepo: receiptRepo,
		logger:      logger,
	}
}

// PublishToHistory is safe to repeat: record appends and receipt saves are idempotent
func (p *HistoryPublisherImpl) PublishToHistory(ctx context.Context, message *outbox.Message) error {
	batch, err := message.GetBatch()
	if err != nil || batch.Receipt == nil {
		if err == nil {
			err = fmt.Errorf("outbox payload has no receipt")
		}
		p.logger.Error("Failed to decode history batch from outbox payload",
			"outbox_id", message.ID, "operation_id", message.OperationID.String(), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if batch.Receipt.CorrelationID != "" {
		logger = p.logger.With("correlation_id", batch.Receipt.CorrelationID)
	}
	logger = logger.With("outbox_id", message.ID, "operation_id", message.OperationID.String())

	if len(batch.Creations) > 0 {
		if err := p.historyRepo.AppendCreations(ctx, batch.Creations); err != nil {
			logger.Error("Failed to append creation records", "error", err)
			return fmt.Errorf("failed to append creation records for operation %s: %w", message.OperationID, err)
		}
	}
	if len(batch.Payments) > 0 {
		if err := p.historyRepo.AppendPayments(ctx, batch.Payments); err != nil {
			logger.Error("Failed to append payment records", "error", err)
			return fmt.Errorf("failed to append payment records for operation %s: %w", message.OperationID, err)
		}
	}

	if err := p.receiptRepo.Save(ctx, batch.Receipt); err != nil {
		logger.Error("Failed to save CONFIRMED receipt", "error", err)
		return fmt.Errorf("failed to save receipt for operation %s: %w", message.OperationID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("history write for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.OperationID, message.ID, err)
	}

	logger.Info("Indexed operation history",
		"position", message.Position,
		"creations", len(batch.Creations),
		"payments", len(batch.Payments),
	)
	return nil
}
