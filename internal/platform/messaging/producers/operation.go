package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/domain/operation"
	"github.com/segmentio/kafka-go"
)

// OperationProducer publishes ledger operations to the operation topic.
// Writes are synchronous so a submitter learns about a failed publish.
type OperationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewOperationProducer creates the producer and ensures the topic exists
func NewOperationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*OperationProducer, error) {
	if cfg.OperationTopic == "" {
		return nil, fmt.Errorf("kafka operation topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for operation producer: %w", err)
	}
	defer conn.Close()

	topic := topicSpec{
		name:              cfg.OperationTopic,
		partitions:        cfg.NumPartitions,
		replicationFactor: cfg.ReplicationFactor,
	}
	if err := ensureTopic(ctx, conn, topic, topicProbeBackoff, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure operation topic %s exists: %w", cfg.OperationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.OperationTopic,
		Balancer:     &kafka.Hash{}, // same invoice, same partition
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &OperationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.OperationTopic,
	}, nil
}

// Publish marshals value as JSON and writes it under key
func (p *OperationProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal operation message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish operation message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published operation message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

// PublishOperation publishes op keyed by its partition key
func (p *OperationProducer) PublishOperation(ctx context.Context, op *operation.Operation) error {
	return p.Publish(ctx, op.PartitionKey(), op)
}

func (p *OperationProducer) Close() error {
	p.logger.Info("Closing operation producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close operation kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
