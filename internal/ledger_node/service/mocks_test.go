package service

import (
	"context"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessOperation(ctx context.Context, op *operation.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

type MockOperationValidator struct {
	mock.Mock
}

func (m *MockOperationValidator) Validate(ctx context.Context, op *operation.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperationValidator) CheckIdempotency(ctx context.Context, op *operation.Operation) (bool, error) {
	args := m.Called(ctx, op)
	return args.Bool(0), args.Error(1)
}

type MockLedgerExecutor struct {
	mock.Mock
}

func (m *MockLedgerExecutor) Execute(ctx context.Context, tx pgx.Tx, op *operation.Operation) (*outbox.Batch, error) {
	args := m.Called(ctx, tx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Batch), args.Error(1)
}

type MockOutboxManager struct {
	mock.Mock
}

func (m *MockOutboxManager) CreateOutboxEntry(ctx context.Context, tx pgx.Tx, batch *outbox.Batch) error {
	args := m.Called(ctx, tx, batch)
	return args.Error(0)
}

type MockFailureRecorder struct {
	mock.Mock
}

func (m *MockFailureRecorder) RecordFailure(ctx context.Context, op *operation.Operation, reason shared.FailureReason, detail string) error {
	args := m.Called(ctx, op, reason, detail)
	return args.Error(0)
}

// fakeTxRunner runs fn with a nil transaction and reports whether it would
// have committed or rolled back
type fakeTxRunner struct {
	beginErr   error
	commitErr  error
	committed  bool
	rolledBack bool
}

func (r *fakeTxRunner) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	if r.beginErr != nil {
		return r.beginErr
	}
	if err := fn(nil); err != nil {
		r.rolledBack = true
		return err
	}
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = true
	return nil
}
