package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository manages transactional outbox message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error

	// GetPending returns unpublished messages in ledger position order
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	GetByOperationID(ctx context.Context, operationID uuid.UUID) (*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrDuplicateMessage indicates the operation already has an outbox message
type ErrDuplicateMessage struct {
	OperationID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.OperationID.String()
}
