package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/invoice-ledger/internal/domain/shared"
)

func TestReceiptRepository_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	receipt := &operation.Receipt{
		OperationID: uuid.New(),
		Kind:        shared.OperationKindCreate,
		Status:      shared.ReceiptStatusConfirmed,
		Position:    3,
		ProcessedAt: time.Now(),
	}

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewReceiptRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		assert.NoError(t, repo.Save(context.Background(), receipt))
	})

	mt.Run("Failure", func(mt *mtest.T) {
		repo := NewReceiptRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value"}))
		err := repo.Save(context.Background(), receipt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save receipt")
	})
}

func TestReceiptRepository_GetByOperationID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := uuid.New()
	processedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mt.Run("Found", func(mt *mtest.T) {
		repo := NewReceiptRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.operation_receipts", mtest.FirstBatch, bson.D{
			{Key: "operation_id", Value: id.String()},
			{Key: "kind", Value: "PAY"},
			{Key: "invoice_id", Value: "0xabc"},
			{Key: "status", Value: "FAILED"},
			{Key: "failure_reason", Value: "EXPIRED"},
			{Key: "processed_at", Value: processedAt},
		}))

		receipt, err := repo.GetByOperationID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, receipt.OperationID)
		assert.Equal(t, shared.ReceiptStatusFailed, receipt.Status)
		assert.Equal(t, shared.FailureReasonExpired, receipt.FailureReason)
		assert.True(t, processedAt.Equal(receipt.ProcessedAt))
	})

	mt.Run("NotFound", func(mt *mtest.T) {
		repo := NewReceiptRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ledger.operation_receipts", mtest.FirstBatch))

		_, err := repo.GetByOperationID(context.Background(), id)
		assert.ErrorIs(t, err, operation.ErrReceiptNotFound{OperationID: id})
	})
}

func TestReceiptDocument_RoundTrip(t *testing.T) {
	r := &operation.Receipt{
		OperationID:   uuid.New(),
		Kind:          shared.OperationKindApprove,
		Status:        shared.ReceiptStatusConfirmed,
		Position:      44,
		CorrelationID: "c-1",
		ProcessedAt:   time.Now().UTC(),
	}
	back, err := newReceiptDocument(r).toReceipt()
	require.NoError(t, err)
	assert.Equal(t, r, back)

	_, err = receiptDocument{OperationID: "nope"}.toReceipt()
	assert.Error(t, err)
}
