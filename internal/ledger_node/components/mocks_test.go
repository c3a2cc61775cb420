package components

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByOperationID(ctx context.Context, operationID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

type MockReceiptRepo struct {
	mock.Mock
}

func (m *MockReceiptRepo) Save(ctx context.Context, receipt *operation.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockReceiptRepo) GetByOperationID(ctx context.Context, id uuid.UUID) (*operation.Receipt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operation.Receipt), args.Error(1)
}

// invoiceTable is an invoice.Repository over a map; WithTx shares the map
type invoiceTable struct {
	mu   sync.Mutex
	rows map[invoice.ID]invoice.Invoice
}

func newInvoiceTable() *invoiceTable {
	return &invoiceTable{rows: make(map[invoice.ID]invoice.Invoice)}
}

func (r *invoiceTable) GetByID(_ context.Context, id invoice.ID) (*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.rows[id]
	if !ok {
		return nil, invoice.ErrNotFound{ID: id}
	}
	return &inv, nil
}

func (r *invoiceTable) Exists(ctx context.Context, id invoice.ID) (bool, error) {
	_, err := r.GetByID(ctx, id)
	return err == nil, nil
}

func (r *invoiceTable) Create(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[inv.ID]; ok {
		return invoice.ErrDuplicateID{ID: inv.ID}
	}
	r.rows[inv.ID] = *inv
	return nil
}

func (r *invoiceTable) LockForUpdate(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *invoiceTable) MarkPaid(_ context.Context, id invoice.ID, payer invoice.Address, paidAt uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.rows[id]
	if !ok {
		return invoice.ErrNotFound{ID: id}
	}
	if inv.Paid {
		return invoice.ErrAlreadyPaid{ID: id}
	}
	inv.Paid, inv.Payer, inv.PaidAt = true, payer, paidAt
	r.rows[id] = inv
	return nil
}

func (r *invoiceTable) WithTx(pgx.Tx) invoice.Repository {
	return r
}

type balanceKey struct{ asset, owner invoice.Address }

type allowanceKey struct{ asset, owner, spender invoice.Address }

// tokenTable is a token.Store over maps
type tokenTable struct {
	balances   map[balanceKey]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
}

func newTokenTable() *tokenTable {
	return &tokenTable{
		balances:   make(map[balanceKey]decimal.Decimal),
		allowances: make(map[allowanceKey]decimal.Decimal),
	}
}

func (s *tokenTable) Balance(_ context.Context, asset, owner invoice.Address) (decimal.Decimal, error) {
	return s.balances[balanceKey{asset, owner}], nil
}

func (s *tokenTable) SetBalance(_ context.Context, asset, owner invoice.Address, amount decimal.Decimal) error {
	s.balances[balanceKey{asset, owner}] = amount
	return nil
}

func (s *tokenTable) Allowance(_ context.Context, asset, owner, spender invoice.Address) (decimal.Decimal, error) {
	return s.allowances[allowanceKey{asset, owner, spender}], nil
}

func (s *tokenTable) SetAllowance(_ context.Context, asset, owner, spender invoice.Address, amount decimal.Decimal) error {
	s.allowances[allowanceKey{asset, owner, spender}] = amount
	return nil
}

type counterPositions struct {
	next uint64
	err  error
}

func (c *counterPositions) Next(context.Context) (uint64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.next++
	return c.next, nil
}

func historyCreation() history.CreationRecord {
	return history.CreationRecord{Merchant: invoice.MustParseAddress("0x00000000000000000000000000000000000000cc")}
}

func historyPayment() history.PaymentRecord {
	return history.PaymentRecord{Payer: invoice.MustParseAddress("0x00000000000000000000000000000000000000dd")}
}
