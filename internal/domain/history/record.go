// Package history describes the append-only record stream emitted by the
// invoice store.
package history

import (
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two record types in the history stream
type Kind string

const (
	KindCreated Kind = "created"
	KindPaid    Kind = "paid"
)

// Locator places a record in the global history order
type Locator struct {
	Position uint64 `json:"position"`  // ledger position of the operation that emitted the record
	LogIndex uint32 `json:"log_index"` // order within that position
	TxRef    string `json:"tx_ref"`    // reference to the operation that emitted the record
}

// Before orders records by (position, log_index)
func (l Locator) Before(other Locator) bool {
	if l.Position != other.Position {
		return l.Position < other.Position
	}
	return l.LogIndex < other.LogIndex
}

// CreationRecord is appended when an invoice is created
type CreationRecord struct {
	InvoiceID invoice.ID      `json:"id"`
	Merchant  invoice.Address `json:"merchant"`
	Asset     invoice.Address `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	DueAt     uint64          `json:"due_at"`
	Locator
}

// PaymentRecord is appended when an invoice is paid
type PaymentRecord struct {
	InvoiceID invoice.ID      `json:"id"`
	Merchant  invoice.Address `json:"merchant"`
	Payer     invoice.Address `json:"payer"`
	Asset     invoice.Address `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    uint64          `json:"paid_at"`
	Locator
}

// NewCreationRecord captures the immutable fields of a freshly created invoice
func NewCreationRecord(inv *invoice.Invoice, loc Locator) CreationRecord {
	return CreationRecord{
		InvoiceID: inv.ID,
		Merchant:  inv.Merchant,
		Asset:     inv.Asset,
		Amount:    inv.Amount,
		DueAt:     inv.DueAt,
		Locator:   loc,
	}
}

// NewPaymentRecord captures a settled invoice
func NewPaymentRecord(inv *invoice.Invoice, loc Locator) PaymentRecord {
	return PaymentRecord{
		InvoiceID: inv.ID,
		Merchant:  inv.Merchant,
		Payer:     inv.Payer,
		Asset:     inv.Asset,
		Amount:    inv.Amount,
		PaidAt:    inv.PaidAt,
		Locator:   loc,
	}
}

// Range selects an inclusive position window. To == 0 means up to the head.
type Range struct {
	From uint64
	To   uint64
}

// FullRange scans from genesis to the head
var FullRange = Range{}

// Contains reports whether a position falls inside the range
func (r Range) Contains(position uint64) bool {
	if position < r.From {
		return false
	}
	return r.To == 0 || position <= r.To
}
