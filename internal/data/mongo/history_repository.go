package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invoice-ledger/internal/domain/history"
	"github.com/invoice-ledger/internal/domain/invoice"
)

const duplicateKeyCode = 11000

// HistoryRepository implements history.Repository on MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the uniqueness index that makes appends idempotent and
// the scan indexes used by the readers
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(HistoryCollectionName)
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "tx_ref", Value: 1}, {Key: "log_index", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_record"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "merchant", Value: 1}, {Key: "position", Value: 1}},
			Options: options.Index().SetName("by_merchant"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "invoice_id", Value: 1}, {Key: "position", Value: 1}},
			Options: options.Index().SetName("by_invoice"),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		r.logger.Error("Failed to create history indexes", "error", err)
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}

func (r *HistoryRepository) AppendCreations(ctx context.Context, records []history.CreationRecord) error {
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		docs = append(docs, creationDocument(rec))
	}
	return r.insert(ctx, docs)
}

func (r *HistoryRepository) AppendPayments(ctx context.Context, records []history.PaymentRecord) error {
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		docs = append(docs, paymentDocument(rec))
	}
	return r.insert(ctx, docs)
}

// insert ignores records that were already indexed by an earlier attempt
func (r *HistoryRepository) insert(ctx context.Context, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	collection := r.db.Collection(HistoryCollectionName)
	_, err := collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicateKeys(err) {
		r.logger.Error("Failed to append history records", "count", len(docs), "error", err)
		return fmt.Errorf("failed to append history records: %w", err)
	}
	return nil
}

func onlyDuplicateKeys(err error) bool {
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return false
	}
	if bulkErr.WriteConcernError != nil || len(bulkErr.WriteErrors) == 0 {
		return false
	}
	for _, we := range bulkErr.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

// CreationRecords scans creation records of a merchant in history order
func (r *HistoryRepository) CreationRecords(ctx context.Context, merchant invoice.Address, rng history.Range) ([]history.CreationRecord, error) {
	filter := scanFilter(history.KindCreated, "merchant", string(merchant), rng)
	docs, err := r.find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to scan creation records", "merchant", merchant, "error", err)
		return nil, fmt.Errorf("failed to scan creation records: %w", err)
	}

	records := make([]history.CreationRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.toCreation()
		if err != nil {
			return nil, fmt.Errorf("failed to decode creation record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// PaymentRecords scans payment records of an invoice in history order
func (r *HistoryRepository) PaymentRecords(ctx context.Context, id invoice.ID, rng history.Range) ([]history.PaymentRecord, error) {
	filter := scanFilter(history.KindPaid, "invoice_id", id.Hex(), rng)
	docs, err := r.find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to scan payment records", "invoice_id", id.Hex(), "error", err)
		return nil, fmt.Errorf("failed to scan payment records: %w", err)
	}

	records := make([]history.PaymentRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.toPayment()
		if err != nil {
			return nil, fmt.Errorf("failed to decode payment record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func scanFilter(kind history.Kind, field, value string, rng history.Range) bson.M {
	position := bson.M{"$gte": int64(rng.From)}
	if rng.To != 0 {
		position["$lte"] = int64(rng.To)
	}
	return bson.M{
		"kind":     kind,
		field:      value,
		"position": position,
	}
}

func (r *HistoryRepository) find(ctx context.Context, filter bson.M) ([]recordDocument, error) {
	collection := r.db.Collection(HistoryCollectionName)
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "log_index", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []recordDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
