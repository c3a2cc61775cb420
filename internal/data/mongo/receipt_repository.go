package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invoice-ledger/internal/domain/operation"
)

var _ operation.ReceiptRepository = (*ReceiptRepository)(nil)

// ReceiptRepository implements operation.ReceiptRepository on MongoDB
type ReceiptRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewReceiptRepository(logger *slog.Logger, db *mongo.Database) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes makes operation_id unique
func (r *ReceiptRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(ReceiptCollectionName)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "operation_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_operation"),
	})
	if err != nil {
		r.logger.Error("Failed to create receipt index", "error", err)
		return fmt.Errorf("failed to create receipt index: %w", err)
	}
	return nil
}

// Save inserts the receipt unless one is already stored for the operation.
// Receipts are only written once an operation is terminal, so the first write wins.
func (r *ReceiptRepository) Save(ctx context.Context, receipt *operation.Receipt) error {
	collection := r.db.Collection(ReceiptCollectionName)

	doc := newReceiptDocument(receipt)
	filter := bson.M{"operation_id": doc.OperationID}
	update := bson.M{"$setOnInsert": doc}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to save receipt",
			"operation_id", doc.OperationID,
			"error", err)
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// GetByOperationID returns ErrReceiptNotFound while the operation is still in flight
func (r *ReceiptRepository) GetByOperationID(ctx context.Context, id uuid.UUID) (*operation.Receipt, error) {
	collection := r.db.Collection(ReceiptCollectionName)

	var doc receiptDocument
	err := collection.FindOne(ctx, bson.M{"operation_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, operation.ErrReceiptNotFound{OperationID: id}
		}
		r.logger.Error("Failed to get receipt",
			"operation_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return doc.toReceipt()
}
