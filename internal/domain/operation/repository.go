package operation

import (
	"context"

	"github.com/google/uuid"
)

// ReceiptRepository stores one receipt per operation
type ReceiptRepository interface {
	// Save is idempotent: saving a receipt for an operation that already has a
	// terminal receipt leaves the stored one untouched
	Save(ctx context.Context, receipt *Receipt) error
	GetByOperationID(ctx context.Context, id uuid.UUID) (*Receipt, error)
}

// ErrReceiptNotFound indicates the operation has not been processed yet
type ErrReceiptNotFound struct {
	OperationID uuid.UUID
}

func (e ErrReceiptNotFound) Error() string {
	return "receipt not found: " + e.OperationID.String()
}

// Is matches any ErrReceiptNotFound when the target carries a nil id
func (e ErrReceiptNotFound) Is(target error) bool {
	t, ok := target.(ErrReceiptNotFound)
	if !ok {
		return false
	}
	if t.OperationID == uuid.Nil {
		return true
	}
	return e.OperationID == t.OperationID
}
