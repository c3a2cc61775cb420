package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// IndexBuilder is a repository that owns indexes on its collection
type IndexBuilder interface {
	EnsureIndexes(ctx context.Context) error
}

// MongoDB holds the history index and the receipt store. Writes wait for a
// majority and reads use majority read concern, so a CONFIRMED receipt read on
// any node implies its history records are visible there too.
type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)

	return &MongoDB{
		logger:   logger,
		client:   client,
		database: client.Database(cfg.Database),
	}, nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// EnsureIndexes creates every builder's indexes, stopping at the first failure
func (m *MongoDB) EnsureIndexes(ctx context.Context, builders ...IndexBuilder) error {
	for _, b := range builders {
		if err := b.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to ensure indexes on %s: %w", m.database.Name(), err)
		}
	}
	m.logger.Info("MongoDB indexes ready", "repositories", len(builders))
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection")
	return nil
}
