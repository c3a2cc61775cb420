// Package memory hosts the invoice store on an in-process keyed map with an
// append-only log. Operations are serialized under one mutex and run in a
// journaled unit of work that is undone when the operation fails.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/token"
	"github.com/invoice-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// TransferHook observes a completed token movement from inside the paying
// operation, the way a receiving contract would. Returning an error makes the
// asset reject the transfer.
type TransferHook func(ctx context.Context, re *Reentry, asset, from, to invoice.Address, amount decimal.Decimal) error

type Option func(*Ledger)

// WithClock overrides the wall clock used to stamp operations
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithTransferHook installs a hook invoked after every successful transfer
func WithTransferHook(hook TransferHook) Option {
	return func(l *Ledger) {
		l.hook = hook
	}
}

type balanceKey struct {
	asset invoice.Address
	owner invoice.Address
}

type allowanceKey struct {
	asset   invoice.Address
	owner   invoice.Address
	spender invoice.Address
}

// Ledger is a complete in-memory invoice ledger: store, token book, history
// log and operation receipts
type Ledger struct {
	mu    sync.Mutex
	store *ledger.Store
	clock func() time.Time
	hook  TransferHook

	invoices   map[invoice.ID]invoice.Invoice
	balances   map[balanceKey]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
	creations  []history.CreationRecord
	payments   []history.PaymentRecord
	receipts   map[uuid.UUID]operation.Receipt
	head       uint64
}

func New(address invoice.Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:      ledger.NewStore(address),
		clock:      time.Now,
		invoices:   make(map[invoice.ID]invoice.Invoice),
		balances:   make(map[balanceKey]decimal.Decimal),
		allowances: make(map[allowanceKey]decimal.Decimal),
		receipts:   make(map[uuid.UUID]operation.Receipt),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Address is the store's spender identity
func (l *Ledger) Address() invoice.Address {
	return l.store.Address()
}

// Head is the position of the last applied operation
func (l *Ledger) Head() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Execute runs fn as one operation at the next position. Any error undoes
// every write fn made.
func (l *Ledger) Execute(ctx context.Context, caller invoice.Address, txRef string, fn func(ctx context.Context, st ledger.State, call ledger.Call) error) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	call := ledger.Call{
		Caller:   caller,
		Now:      invoice.UnixSeconds(l.clock()),
		Position: l.head + 1,
		TxRef:    txRef,
	}
	if call.TxRef == "" {
		call.TxRef = uuid.NewString()
	}

	tx := &unitOfWork{l: l, call: call}
	tx.book = token.NewBook(tx)
	if err := fn(ctx, tx, call); err != nil {
		tx.rollback()
		return 0, err
	}
	l.head = call.Position
	return call.Position, nil
}

func (l *Ledger) Create(ctx context.Context, caller invoice.Address, id invoice.ID, asset invoice.Address, amount decimal.Decimal, dueAt uint64) error {
	_, err := l.Execute(ctx, caller, "", func(ctx context.Context, st ledger.State, call ledger.Call) error {
		_, err := l.store.Create(ctx, st, call, id, asset, amount, dueAt)
		return err
	})
	return err
}

func (l *Ledger) Pay(ctx context.Context, caller invoice.Address, id invoice.ID) error {
	_, err := l.Execute(ctx, caller, "", func(ctx context.Context, st ledger.State, call ledger.Call) error {
		_, err := l.store.Pay(ctx, st, call, id)
		return err
	})
	return err
}

func (l *Ledger) Approve(ctx context.Context, caller, asset, spender invoice.Address, amount decimal.Decimal) error {
	_, err := l.Execute(ctx, caller, "", func(ctx context.Context, st ledger.State, call ledger.Call) error {
		return l.store.Approve(ctx, st, call, asset, spender, amount)
	})
	return err
}

func (l *Ledger) Mint(ctx context.Context, asset, to invoice.Address, amount decimal.Decimal) error {
	_, err := l.Execute(ctx, asset, "", func(ctx context.Context, st ledger.State, call ledger.Call) error {
		return l.store.Mint(ctx, st, call, asset, to, amount)
	})
	return err
}

// PublishOperation applies a submitted operation synchronously and records its receipt
func (l *Ledger) PublishOperation(ctx context.Context, op *operation.Operation) error {
	position, err := l.Execute(ctx, op.Caller, op.ID.String(), func(ctx context.Context, st ledger.State, call ledger.Call) error {
		return l.store.Apply(ctx, st, call, op)
	})

	var receipt *operation.Receipt
	if err != nil {
		reason, ok := ledger.Classify(err)
		if !ok {
			return err
		}
		receipt = operation.NewFailedReceipt(op, reason, err.Error(), l.clock())
	} else {
		receipt = operation.NewConfirmedReceipt(op, position, l.clock())
	}

	l.mu.Lock()
	l.receipts[op.ID] = *receipt
	l.mu.Unlock()
	return nil
}

// GetByOperationID returns the receipt of an applied operation
func (l *Ledger) GetByOperationID(_ context.Context, id uuid.UUID) (*operation.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipt, ok := l.receipts[id]
	if !ok {
		return nil, operation.ErrReceiptNotFound{OperationID: id}
	}
	return &receipt, nil
}

// GetByID is the point read of current invoice state
func (l *Ledger) GetByID(_ context.Context, id invoice.ID) (*invoice.Invoice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.invoices[id]
	if !ok {
		return nil, invoice.ErrNotFound{ID: id}
	}
	return &inv, nil
}

func (l *Ledger) Exists(ctx context.Context, id invoice.ID) (bool, error) {
	_, err := l.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (l *Ledger) BalanceOf(_ context.Context, asset, owner invoice.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{asset, owner}]
}

func (l *Ledger) Allowance(_ context.Context, asset, owner, spender invoice.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{asset, owner, spender}]
}

// CreationRecords scans the log for invoices created by merchant
func (l *Ledger) CreationRecords(ctx context.Context, merchant invoice.Address, r history.Range) ([]history.CreationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []history.CreationRecord
	for _, rec := range l.creations {
		if rec.Merchant == merchant && r.Contains(rec.Position) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PaymentRecords scans the log for payments of id
func (l *Ledger) PaymentRecords(ctx context.Context, id invoice.ID, r history.Range) ([]history.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []history.PaymentRecord
	for _, rec := range l.payments {
		if rec.InvoiceID == id && r.Contains(rec.Position) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendPaymentRecord injects a record into the log without a state change.
// It reproduces history replayed by a reorganization.
func (l *Ledger) AppendPaymentRecord(rec history.PaymentRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments = append(l.payments, rec)
}

// Reentry lets a transfer hook call back into the store from inside the
// operation that triggered it
type Reentry struct {
	tx *unitOfWork
}

// Pay re-enters the store as caller within the in-flight operation
func (r *Reentry) Pay(ctx context.Context, caller invoice.Address, id invoice.ID) error {
	call := r.tx.call
	call.Caller = caller
	_, err := r.tx.l.store.Pay(ctx, r.tx, call, id)
	return err
}

// Get reads the in-flight state, including writes not yet committed
func (r *Reentry) Get(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	return r.tx.Invoice(ctx, id)
}

func (r *Reentry) String() string {
	return fmt.Sprintf("reentry at position %d", r.tx.call.Position)
}
