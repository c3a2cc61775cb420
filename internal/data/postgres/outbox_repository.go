package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/invoice-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to the operation's transaction
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a pending message inside the operation's transaction. The
// poller picks it up only after the ledger commit.
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	query := `
		INSERT INTO ledger_outbox (operation_id, position, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		message.OperationID,
		int64(message.Position),
		message.Payload,
		message.Status,
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return outbox.ErrDuplicateMessage{OperationID: message.OperationID}
		}
		r.logger.Error("Failed to create outbox message",
			"operation_id", message.OperationID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves a batch of pending messages in ledger position order so
// history is indexed in the order it was written
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	query := `
		SELECT id, operation_id, position, payload, status, attempts, created_at, last_attempt_at
		FROM ledger_outbox
		WHERE status = $1
		ORDER BY position ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, shared.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus updates the message status and last attempt timestamp.
// Returns ErrMessageNotFound if the message doesn't exist.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	query := `
		UPDATE ledger_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status",
			"id", id,
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts records a failed publishing attempt
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE ledger_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to increment outbox message attempts",
			"id", id,
			"error", err,
		)
		return fmt.Errorf("failed to increment outbox message attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// GetByOperationID retrieves the message an operation produced, used to
// detect redelivered operations that were already applied
func (r *OutboxRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*outbox.Message, error) {
	query := `
		SELECT id, operation_id, position, payload, status, attempts, created_at, last_attempt_at
		FROM ledger_outbox
		WHERE operation_id = $1
	`

	message, err := scanMessage(r.querier.QueryRow(ctx, query, operationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, outbox.ErrMessageNotFound{ID: 0}
		}
		r.logger.Error("Failed to get outbox message by operation ID",
			"operation_id", operationID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get outbox message by operation ID: %w", err)
	}

	return message, nil
}

func scanMessage(row pgx.Row) (*outbox.Message, error) {
	var (
		message  outbox.Message
		position int64
	)
	err := row.Scan(
		&message.ID,
		&message.OperationID,
		&position,
		&message.Payload,
		&message.Status,
		&message.Attempts,
		&message.CreatedAt,
		&message.LastAttemptAt,
	)
	if err != nil {
		return nil, err
	}
	message.Position = uint64(position)
	return &message, nil
}
