package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicProbeAttempts = 5
	topicProbeBackoff  = 2 * time.Second
)

// topicSpec describes a topic the producers create on first use
type topicSpec struct {
	name              string
	partitions        int
	replicationFactor int
	retention         time.Duration // zero keeps the broker default
}

func (s topicSpec) config() kafka.TopicConfig {
	tc := kafka.TopicConfig{
		Topic:             s.name,
		NumPartitions:     max(s.partitions, 1),
		ReplicationFactor: max(s.replicationFactor, 1),
	}
	if s.retention > 0 {
		tc.ConfigEntries = append(tc.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: fmt.Sprint(s.retention.Milliseconds()),
		})
	}
	return tc
}

// topicConn is the part of *kafka.Conn needed to probe and create topics
type topicConn interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// ensureTopic creates the topic unless the broker already reports partitions
// for it. A broker that is still starting fails partition reads, so reads are
// retried before falling back to creation.
func ensureTopic(ctx context.Context, conn topicConn, topic topicSpec, backoff time.Duration, log *slog.Logger) error {
	for attempt := 1; attempt <= topicProbeAttempts; attempt++ {
		partitions, err := conn.ReadPartitions(topic.name)
		if err == nil && len(partitions) > 0 {
			log.Debug("Kafka topic exists", "topic", topic.name, "partitions", len(partitions))
			return nil
		}
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions", "topic", topic.name, "attempt", attempt, "error", err)
		if attempt == topicProbeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("probing topic %s: %w", topic.name, ctx.Err())
		case <-time.After(backoff):
		}
	}

	if err := conn.CreateTopics(topic.config()); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic.name, err)
	}
	log.Info("Created Kafka topic", "topic", topic.name, "partitions", max(topic.partitions, 1))
	return nil
}
