package kafka

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultBroker             = "kafka-broker:9092"
	DefaultCandidatesTopic    = "arb.candidates"
	DefaultOpportunitiesTopic = "arb.opportunities"
	DefaultOrderBooksTopic    = "arb.orderbooks"
)

// Brokers reads KAFKA_BROKERS (comma separated), falling back to DefaultBroker.
func Brokers() []string {
	raw := os.Getenv("KAFKA_BROKERS")
	if raw == "" {
		raw = DefaultBroker
	}
	return SplitBrokers(raw)
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func WaitForBroker(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastErr error
	for {
		conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for broker: %w (last error: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureTopic creates topic with the given partition count if it does not
// exist yet. Existing topics keep their partitions, so raising the worker
// count later needs a manual repartition.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	if err := ctrlConn.CreateTopics(topicConfig(topic, partitions)); err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// topicConfig sizes a topic so each group reader can own a partition.
func topicConfig(topic string, partitions int) kafka.TopicConfig {
	if partitions < 1 {
		partitions = 1
	}
	return kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}
}

// NewWriter builds a writer for one topic. Messages are hashed by key so one
// stage's envelopes stay ordered on a single partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewReader builds a consumer-group reader. Stages only care about the newest
// envelope, so a group without committed offsets starts at the tail.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		Topic:             topic,
		GroupID:           group,
		MinBytes:          1,
		MaxBytes:          10e6,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		CommitInterval:    time.Second,
		StartOffset:       kafka.LastOffset,
	})
}
