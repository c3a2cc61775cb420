package service

import (
	"context"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// ProcessingService applies submitted operations to the ledger
type ProcessingService interface {
	ProcessOperation(ctx context.Context, op *operation.Operation) error
}

// TxRunner runs fn inside one database transaction, committing when fn returns nil
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// OperationValidator rejects malformed operations and detects redeliveries
type OperationValidator interface {
	Validate(ctx context.Context, op *operation.Operation) error
	CheckIdempotency(ctx context.Context, op *operation.Operation) (bool, error)
}

// LedgerExecutor runs the store transition for an operation inside tx and
// returns what the operation contributes to the history stream
type LedgerExecutor interface {
	Execute(ctx context.Context, tx pgx.Tx, op *operation.Operation) (*outbox.Batch, error)
}

// OutboxManager stages an applied operation's batch for indexing
type OutboxManager interface {
	CreateOutboxEntry(ctx context.Context, tx pgx.Tx, batch *outbox.Batch) error
}

// FailureRecorder stores the receipt of a rejected operation
type FailureRecorder interface {
	RecordFailure(ctx context.Context, op *operation.Operation, reason shared.FailureReason, detail string) error
}
