package outbox_poller

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
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

type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) CreationRecords(ctx context.Context, merchant invoice.Address, rng history.Range) ([]history.CreationRecord, error) {
	args := m.Called(ctx, merchant, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.CreationRecord), args.Error(1)
}

func (m *MockHistoryRepo) PaymentRecords(ctx context.Context, id invoice.ID, rng history.Range) ([]history.PaymentRecord, error) {
	args := m.Called(ctx, id, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.PaymentRecord), args.Error(1)
}

func (m *MockHistoryRepo) AppendCreations(ctx context.Context, records []history.CreationRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockHistoryRepo) AppendPayments(ctx context.Context, records []history.PaymentRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
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

type MockHistoryPublisher struct {
	mock.Mock
}

func (m *MockHistoryPublisher) PublishToHistory(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
