package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/outbox"
	"github.com/invoice-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOutboxManager_CreateOutboxEntry(t *testing.T) {
	ctx := context.Background()
	op := &operation.Operation{ID: uuid.New(), Kind: shared.OperationKindCreate, Caller: merchantAddr, CorrelationID: "c-1"}
	batch := &outbox.Batch{
		Receipt:   operation.NewConfirmedReceipt(op, 42, time.Now()),
		Creations: []history.CreationRecord{historyCreation()},
	}

	t.Run("stages message in transaction", func(t *testing.T) {
		repo, txRepo := &MockOutboxRepo{}, &MockOutboxRepo{}
		repo.On("WithTx", nil).Return(txRepo)
		txRepo.On("Create", ctx, mock.MatchedBy(func(m *outbox.Message) bool {
			decoded, err := m.GetBatch()
			return err == nil &&
				m.OperationID == op.ID &&
				m.Position == 42 &&
				m.Status == shared.OutboxStatusPending &&
				len(decoded.Creations) == 1
		})).Return(nil)

		err := NewOutboxManager(repo, slog.Default()).CreateOutboxEntry(ctx, nil, batch)
		require.NoError(t, err)
		repo.AssertExpectations(t)
		txRepo.AssertExpectations(t)
	})

	t.Run("wraps repository error", func(t *testing.T) {
		repo, txRepo := &MockOutboxRepo{}, &MockOutboxRepo{}
		dup := outbox.ErrDuplicateMessage{OperationID: op.ID}
		repo.On("WithTx", nil).Return(txRepo)
		txRepo.On("Create", ctx, mock.Anything).Return(dup)

		err := NewOutboxManager(repo, slog.Default()).CreateOutboxEntry(ctx, nil, batch)
		var got outbox.ErrDuplicateMessage
		assert.True(t, errors.As(err, &got))
	})
}
