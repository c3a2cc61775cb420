package invoice

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Reader serves point reads of current invoice state
type Reader interface {
	// GetByID returns ErrNotFound when no record exists
	GetByID(ctx context.Context, id ID) (*Invoice, error)
	Exists(ctx context.Context, id ID) (bool, error)
}

// Repository is the durable invoice table of the ledger node
type Repository interface {
	Reader
	Create(ctx context.Context, inv *Invoice) error

	// LockForUpdate reads the record and holds its row lock until the transaction ends
	LockForUpdate(ctx context.Context, id ID) (*Invoice, error)

	// MarkPaid returns ErrAlreadyPaid if the row is already paid
	MarkPaid(ctx context.Context, id ID, payer Address, paidAt uint64) error
	WithTx(tx pgx.Tx) Repository
}
