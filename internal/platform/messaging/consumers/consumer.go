package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/invoice-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. A returned error means the message
// was not applied and must be delivered again.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error
	Close() error
}

// MessageReader wraps kafka.Reader methods for testing
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBackoff    = 500 * time.Millisecond
	defaultMaxRetryBackoff = 30 * time.Second
)

// KafkaConsumer implements Consumer using Kafka. Messages of one partition
// are handled strictly in order: a failing message is retried until it
// succeeds or the context ends, and only then is its offset committed.
type KafkaConsumer struct {
	reader          MessageReader
	logger          *slog.Logger
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
	done            chan struct{}
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	return newKafkaConsumer(logger, kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       cfg.OperationTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	}))
}

func newKafkaConsumer(logger *slog.Logger, reader MessageReader) *KafkaConsumer {
	return &KafkaConsumer{
		reader:          reader,
		logger:          logger,
		retryBackoff:    defaultRetryBackoff,
		maxRetryBackoff: defaultMaxRetryBackoff,
		done:            make(chan struct{}),
	}
}

// Subscribe starts consuming in the background and returns immediately
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", topic,
		"group_id", groupID,
	)

	go func() {
		defer close(c.done)
		c.consume(ctx, handler)
		c.logger.Info("Context canceled, stopping consumer",
			"topic", topic,
			"group_id", groupID,
		)
	}()

	return nil
}

// Done is closed once the consume loop has exited
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err)
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		c.logger.Debug("Received message from Kafka",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		if !c.handleWithRetry(ctx, msg, handler) {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message after successful processing",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// handleWithRetry reports false when the context ended before the handler succeeded
func (c *KafkaConsumer) handleWithRetry(ctx context.Context, msg kafka.Message, handler MessageHandler) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return true
		}
		c.logger.Error("Failed to process message, will retry",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"attempt", attempt,
			"error", err,
		)
		if !sleepCtx(ctx, backoff) {
			return false
		}
		backoff *= 2
		if backoff > c.maxRetryBackoff {
			backoff = c.maxRetryBackoff
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
