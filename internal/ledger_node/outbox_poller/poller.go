package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
)

// Poller drains pending outbox messages into the history log
type Poller struct {
	outboxRepo       outbox.Repository
	historyPublisher HistoryPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	historyPublisher HistoryPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		historyPublisher: historyPublisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start indexes any backlog straight away, then polls until ctx is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		p.drain(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// drain keeps fetching while batches come back full, so a backlog is not
// limited to one batch per tick
func (p *Poller) drain(ctx context.Context) {
	for ctx.Err() == nil {
		indexed, err := p.processPendingMessages(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("Outbox batch stopped early", "indexed", indexed, "error", err)
			}
			return
		}
		if indexed < p.batchSize {
			return
		}
	}
}

// processPendingMessages indexes one batch in position order and returns how
// many messages were indexed. It stops at the first failure: later operations
// stay pending until the failed one is indexed or given up on, so indexed
// history is always a prefix of the ledger.
func (p *Poller) processPendingMessages(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages), "first_position", messages[0].Position)

	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := p.historyPublisher.PublishToHistory(ctx, msg); err != nil {
			p.recordFailure(ctx, msg, err)
			return i, fmt.Errorf("indexing operation %s at position %d: %w", msg.OperationID, msg.Position, err)
		}
	}
	return len(messages), nil
}

// recordFailure counts the attempt and parks the message once it is spent
func (p *Poller) recordFailure(ctx context.Context, msg *outbox.Message, cause error) {
	attempts := msg.Attempts + 1
	p.logger.Warn("Failed to index outbox message",
		"outbox_id", msg.ID, "operation_id", msg.OperationID.String(), "attempt", attempts, "error", cause,
	)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		p.logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", err)
		return
	}
	if attempts < p.maxRetryAttempts {
		return
	}

	p.logger.Error("Giving up on outbox message, later operations will be indexed past it",
		"outbox_id", msg.ID, "operation_id", msg.OperationID.String(), "position", msg.Position, "attempts", attempts,
	)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		p.logger.Error("Failed to mark outbox message FAILED_TO_PUBLISH", "outbox_id", msg.ID, "error", err)
	}
}
