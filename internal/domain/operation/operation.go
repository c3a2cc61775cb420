// Package operation defines the messages submitters send to the ledger node and
// the receipts the node produces for them.
package operation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var ErrUnknownKind = errors.New("unknown operation kind")

// Operation is a signed-off request to change ledger state. Caller is the
// identity the ledger attributes the operation to.
type Operation struct {
	ID            uuid.UUID            `json:"id"`
	Kind          shared.OperationKind `json:"kind"`
	Caller        invoice.Address      `json:"caller"`
	InvoiceID     invoice.ID           `json:"invoice_id,omitempty"`
	Asset         invoice.Address      `json:"asset,omitempty"`
	Spender       invoice.Address      `json:"spender,omitempty"`
	Recipient     invoice.Address      `json:"recipient,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	DueAt         uint64               `json:"due_at,omitempty"`
	CorrelationID string               `json:"correlation_id"`
	SubmittedAt   time.Time            `json:"submitted_at"`
}

// PartitionKey routes all operations touching one invoice to the same partition
func (o *Operation) PartitionKey() string {
	switch o.Kind {
	case shared.OperationKindCreate, shared.OperationKindPay:
		return o.InvoiceID.Hex()
	default:
		return string(o.Caller)
	}
}

// Receipt records what happened to a submitted operation
type Receipt struct {
	OperationID   uuid.UUID            `json:"operation_id" bson:"operation_id"`
	Kind          shared.OperationKind `json:"kind" bson:"kind"`
	InvoiceID     string               `json:"invoice_id,omitempty" bson:"invoice_id,omitempty"`
	Status        shared.ReceiptStatus `json:"status" bson:"status"`
	FailureReason shared.FailureReason `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	Detail        string               `json:"detail,omitempty" bson:"detail,omitempty"`
	Position      uint64               `json:"position,omitempty" bson:"position,omitempty"`
	CorrelationID string               `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	ProcessedAt   time.Time            `json:"processed_at" bson:"processed_at"`
}

// NewConfirmedReceipt builds the receipt of an operation the ledger applied at position
func NewConfirmedReceipt(op *Operation, position uint64, at time.Time) *Receipt {
	return &Receipt{
		OperationID:   op.ID,
		Kind:          op.Kind,
		InvoiceID:     invoiceRef(op),
		Status:        shared.ReceiptStatusConfirmed,
		Position:      position,
		CorrelationID: op.CorrelationID,
		ProcessedAt:   at,
	}
}

// NewFailedReceipt builds the receipt of an operation the ledger rejected
func NewFailedReceipt(op *Operation, reason shared.FailureReason, detail string, at time.Time) *Receipt {
	return &Receipt{
		OperationID:   op.ID,
		Kind:          op.Kind,
		InvoiceID:     invoiceRef(op),
		Status:        shared.ReceiptStatusFailed,
		FailureReason: reason,
		Detail:        detail,
		CorrelationID: op.CorrelationID,
		ProcessedAt:   at,
	}
}

func invoiceRef(op *Operation) string {
	if op.InvoiceID.IsZero() {
		return ""
	}
	return op.InvoiceID.Hex()
}
