// Package mongo indexes the ledger's history stream and operation receipts in
// MongoDB. Amounts are stored as decimal strings since uint256 values do not
// fit Decimal128.
package mongo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	HistoryCollectionName = "history_records"
	ReceiptCollectionName = "operation_receipts"
)

// recordDocument is one history record as indexed in MongoDB
type recordDocument struct {
	Kind      history.Kind `bson:"kind"`
	InvoiceID string       `bson:"invoice_id"`
	Merchant  string       `bson:"merchant"`
	Payer     string       `bson:"payer,omitempty"`
	Asset     string       `bson:"asset"`
	Amount    string       `bson:"amount"`
	DueAt     int64        `bson:"due_at"`
	PaidAt    int64        `bson:"paid_at,omitempty"`
	Position  int64        `bson:"position"`
	LogIndex  int32        `bson:"log_index"`
	TxRef     string       `bson:"tx_ref"`
}

func creationDocument(rec history.CreationRecord) recordDocument {
	return recordDocument{
		Kind:      history.KindCreated,
		InvoiceID: rec.InvoiceID.Hex(),
		Merchant:  string(rec.Merchant),
		Asset:     string(rec.Asset),
		Amount:    rec.Amount.String(),
		DueAt:     int64(rec.DueAt),
		Position:  int64(rec.Position),
		LogIndex:  int32(rec.LogIndex),
		TxRef:     rec.TxRef,
	}
}

func paymentDocument(rec history.PaymentRecord) recordDocument {
	return recordDocument{
		Kind:      history.KindPaid,
		InvoiceID: rec.InvoiceID.Hex(),
		Merchant:  string(rec.Merchant),
		Payer:     string(rec.Payer),
		Asset:     string(rec.Asset),
		Amount:    rec.Amount.String(),
		PaidAt:    int64(rec.PaidAt),
		Position:  int64(rec.Position),
		LogIndex:  int32(rec.LogIndex),
		TxRef:     rec.TxRef,
	}
}

func (d recordDocument) locator() history.Locator {
	return history.Locator{
		Position: uint64(d.Position),
		LogIndex: uint32(d.LogIndex),
		TxRef:    d.TxRef,
	}
}

func (d recordDocument) decodeCommon() (invoice.ID, decimal.Decimal, error) {
	id, err := invoice.ParseID(d.InvoiceID)
	if err != nil {
		return id, decimal.Zero, fmt.Errorf("record %s/%d: %w", d.TxRef, d.LogIndex, err)
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return id, decimal.Zero, fmt.Errorf("record %s/%d: invalid amount %q: %w", d.TxRef, d.LogIndex, d.Amount, err)
	}
	return id, amount, nil
}

func (d recordDocument) toCreation() (history.CreationRecord, error) {
	id, amount, err := d.decodeCommon()
	if err != nil {
		return history.CreationRecord{}, err
	}
	return history.CreationRecord{
		InvoiceID: id,
		Merchant:  invoice.Address(d.Merchant),
		Asset:     invoice.Address(d.Asset),
		Amount:    amount,
		DueAt:     uint64(d.DueAt),
		Locator:   d.locator(),
	}, nil
}

func (d recordDocument) toPayment() (history.PaymentRecord, error) {
	id, amount, err := d.decodeCommon()
	if err != nil {
		return history.PaymentRecord{}, err
	}
	return history.PaymentRecord{
		InvoiceID: id,
		Merchant:  invoice.Address(d.Merchant),
		Payer:     invoice.Address(d.Payer),
		Asset:     invoice.Address(d.Asset),
		Amount:    amount,
		PaidAt:    uint64(d.PaidAt),
		Locator:   d.locator(),
	}, nil
}

// receiptDocument is the stored form of an operation receipt
type receiptDocument struct {
	OperationID   string    `bson:"operation_id"`
	Kind          string    `bson:"kind"`
	InvoiceID     string    `bson:"invoice_id,omitempty"`
	Status        string    `bson:"status"`
	FailureReason string    `bson:"failure_reason,omitempty"`
	Detail        string    `bson:"detail,omitempty"`
	Position      int64     `bson:"position,omitempty"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	ProcessedAt   time.Time `bson:"processed_at"`
}

func newReceiptDocument(r *operation.Receipt) receiptDocument {
	return receiptDocument{
		OperationID:   r.OperationID.String(),
		Kind:          string(r.Kind),
		InvoiceID:     r.InvoiceID,
		Status:        string(r.Status),
		FailureReason: string(r.FailureReason),
		Detail:        r.Detail,
		Position:      int64(r.Position),
		CorrelationID: r.CorrelationID,
		ProcessedAt:   r.ProcessedAt,
	}
}

func (d receiptDocument) toReceipt() (*operation.Receipt, error) {
	id, err := uuid.Parse(d.OperationID)
	if err != nil {
		return nil, fmt.Errorf("invalid operation id %q: %w", d.OperationID, err)
	}
	return &operation.Receipt{
		OperationID:   id,
		Kind:          shared.OperationKind(d.Kind),
		InvoiceID:     d.InvoiceID,
		Status:        shared.ReceiptStatus(d.Status),
		FailureReason: shared.FailureReason(d.FailureReason),
		Detail:        d.Detail,
		Position:      uint64(d.Position),
		CorrelationID: d.CorrelationID,
		ProcessedAt:   d.ProcessedAt,
	}, nil
}
