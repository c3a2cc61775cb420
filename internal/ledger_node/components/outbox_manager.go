package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/ledger_node/service"
	"github.com/jackc/pgx/v5"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) service.OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateOutboxEntry stages the batch in the same transaction as the ledger writes
func (m *OutboxManagerImpl) CreateOutboxEntry(ctx context.Context, tx pgx.Tx, batch *outbox.Batch) error {
	logger := m.logger
	if batch.Receipt.CorrelationID != "" {
		logger = m.logger.With("correlation_id", batch.Receipt.CorrelationID)
	}
	opID := batch.Receipt.OperationID.String()

	message, err := outbox.NewMessage(batch)
	if err != nil {
		logger.Error("Failed to create outbox message (marshal payload)", "operation_id", opID, "error", err)
		return fmt.Errorf("failed to create outbox message payload for operation %s: %w", opID, err)
	}

	if err := m.outboxRepo.WithTx(tx).Create(ctx, message); err != nil {
		logger.Error("Failed to create outbox message", "operation_id", opID, "error", err)
		return fmt.Errorf("failed to create outbox message for operation %s: %w", opID, err)
	}

	logger.Info("Outbox message created",
		"operation_id", opID,
		"outbox_id", message.ID,
		"position", message.Position,
	)
	return nil
}
