package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// ErrDLQDisabled is returned when no dead letter topic is configured
var ErrDLQDisabled = errors.New("dlq producer not initialized")

// dlqRetention keeps poisoned operations around long enough to be replayed by hand
const dlqRetention = 30 * 24 * time.Hour

// DeadLetter wraps an operation message the ledger node could not decode.
// OriginalValue is kept as raw bytes so malformed JSON survives the round trip.
type DeadLetter struct {
	SourceTopic   string    `json:"source_topic"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue []byte    `json:"original_value"`
	Reason        string    `json:"reason"`
	FailedAt      time.Time `json:"failed_at"`
}

type DLQProducer struct {
	logger      *slog.Logger
	writer      KafkaWriter
	dlqTopic    string
	sourceTopic string
	clock       func() time.Time
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, dead letters will be dropped")
		return nil, nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for dlq producer: %w", err)
	}
	defer conn.Close()

	topic := topicSpec{
		name:              cfg.DLQTopic,
		partitions:        cfg.NumPartitions,
		replicationFactor: cfg.ReplicationFactor,
		retention:         dlqRetention,
	}
	if err := ensureTopic(ctx, conn, topic, topicProbeBackoff, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &DLQProducer{
		logger:      logger,
		writer:      writer,
		dlqTopic:    cfg.DLQTopic,
		sourceTopic: cfg.OperationTopic,
		clock:       time.Now,
	}, nil
}

func (p *DLQProducer) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	now := time.Now
	if p.clock != nil {
		now = p.clock
	}
	letter := DeadLetter{
		SourceTopic:   p.sourceTopic,
		OriginalKey:   key,
		OriginalValue: originalMessageValue,
		Reason:        reason,
		FailedAt:      now().UTC(),
	}

	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "dlq-reason", Value: []byte(reason)},
			{Key: "dlq-source-topic", Value: []byte(p.sourceTopic)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish dead letter",
			"topic", p.dlqTopic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish dead letter to %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Operation message dead-lettered",
		"topic", p.dlqTopic,
		"key", key,
		"reason", reason,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
