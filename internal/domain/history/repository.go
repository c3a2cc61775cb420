package history

import (
	"context"

	"github.com/invoice-ledger/internal/domain/invoice"
)

// Reader scans the history stream. Results are ordered by (position, log_index).
type Reader interface {
	CreationRecords(ctx context.Context, merchant invoice.Address, r Range) ([]CreationRecord, error)
	PaymentRecords(ctx context.Context, id invoice.ID, r Range) ([]PaymentRecord, error)
}

// Repository indexes records. Appending a record that is already present is a no-op.
type Repository interface {
	Reader
	AppendCreations(ctx context.Context, records []CreationRecord) error
	AppendPayments(ctx context.Context, records []PaymentRecord) error
}
