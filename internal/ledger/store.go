// Package ledger implements the invoice store state machine. Every operation
// runs against a State, the unit of work of whatever substrate hosts the
// store. A failed operation leaves partial writes in the State; the caller is
// responsible for rolling the unit of work back.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/shopspring/decimal"
)

// ErrTransferFailed wraps the asset's reason for refusing a payment transfer
var ErrTransferFailed = errors.New("payment transfer failed")

// Tokens is the asset transfer mechanism the store settles through
type Tokens interface {
	BalanceOf(ctx context.Context, asset, owner invoice.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, asset, owner, spender invoice.Address) (decimal.Decimal, error)
	Approve(ctx context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error
	TransferFrom(ctx context.Context, asset, spender, from, to invoice.Address, amount decimal.Decimal) error
	Mint(ctx context.Context, asset, minter, to invoice.Address, amount decimal.Decimal) error
}

// State is one unit of work against the keyed invoice map, the token book and
// the append-only history log
type State interface {
	Tokens

	// Invoice returns invoice.ErrNotFound when no record exists
	Invoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error)
	InsertInvoice(ctx context.Context, inv *invoice.Invoice) error
	MarkPaid(ctx context.Context, id invoice.ID, payer invoice.Address, paidAt uint64) error

	// Emit appends to the history log. The state assigns the log index.
	EmitCreation(ctx context.Context, rec history.CreationRecord) error
	EmitPayment(ctx context.Context, rec history.PaymentRecord) error
}

// Call carries the execution context the ledger attaches to an operation
type Call struct {
	Caller   invoice.Address
	Now      uint64 // unix seconds
	Position uint64
	TxRef    string
}

func (c Call) locator() history.Locator {
	return history.Locator{Position: c.Position, TxRef: c.TxRef}
}

// Store is the invoice state machine. Its address is the spender payers
// authorize before paying.
type Store struct {
	address invoice.Address
}

func NewStore(address invoice.Address) *Store {
	return &Store{address: address}
}

// Address is the identity the store spends allowances as
func (s *Store) Address() invoice.Address {
	return s.address
}

// Create registers a new unpaid invoice owned by the caller. No funds move.
func (s *Store) Create(ctx context.Context, st State, call Call, id invoice.ID, asset invoice.Address, amount decimal.Decimal, dueAt uint64) (*history.CreationRecord, error) {
	_, err := st.Invoice(ctx, id)
	switch {
	case err == nil:
		return nil, invoice.ErrDuplicateID{ID: id}
	case !errors.Is(err, invoice.ErrNotFound{}):
		return nil, fmt.Errorf("read invoice: %w", err)
	}

	inv, err := invoice.New(id, call.Caller, asset, amount, dueAt)
	if err != nil {
		return nil, err
	}
	if err := st.InsertInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	rec := history.NewCreationRecord(inv, call.locator())
	if err := st.EmitCreation(ctx, rec); err != nil {
		return nil, fmt.Errorf("emit creation record: %w", err)
	}
	return &rec, nil
}

// Pay settles an invoice with a transfer from the caller to the merchant. The
// paid flag is written before the transfer so that anything the transfer
// triggers already sees the invoice as paid.
func (s *Store) Pay(ctx context.Context, st State, call Call, id invoice.ID) (*history.PaymentRecord, error) {
	inv, err := st.Invoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Paid {
		return nil, invoice.ErrAlreadyPaid{ID: id}
	}
	if inv.ExpiredAt(call.Now) {
		return nil, invoice.ErrExpired{ID: id, DueAt: inv.DueAt, Now: call.Now}
	}

	if err := st.MarkPaid(ctx, id, call.Caller, call.Now); err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if err := inv.MarkPaid(call.Caller, call.Now); err != nil {
		return nil, err
	}

	if err := st.TransferFrom(ctx, inv.Asset, s.address, call.Caller, inv.Merchant, inv.Amount); err != nil {
		if token.IsRejection(err) {
			return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		return nil, fmt.Errorf("transfer: %w", err)
	}

	rec := history.NewPaymentRecord(inv, call.locator())
	if err := st.EmitPayment(ctx, rec); err != nil {
		return nil, fmt.Errorf("emit payment record: %w", err)
	}
	return &rec, nil
}

// Get is a read-only point lookup
func (s *Store) Get(ctx context.Context, st State, id invoice.ID) (*invoice.Invoice, error) {
	return st.Invoice(ctx, id)
}

// Exists reports whether a record is stored for id
func (s *Store) Exists(ctx context.Context, st State, id invoice.ID) (bool, error) {
	_, err := st.Invoice(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, invoice.ErrNotFound{}) {
		return false, nil
	}
	return false, err
}

// Approve lets spender move up to amount of the caller's asset
func (s *Store) Approve(ctx context.Context, st State, call Call, asset, spender invoice.Address, amount decimal.Decimal) error {
	if spender.IsZero() {
		spender = s.address
	}
	return st.Approve(ctx, asset, call.Caller, spender, amount)
}

// Mint issues asset units; the caller must be the asset itself
func (s *Store) Mint(ctx context.Context, st State, call Call, asset, to invoice.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		to = call.Caller
	}
	return st.Mint(ctx, asset, call.Caller, to, amount)
}
