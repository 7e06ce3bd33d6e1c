package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic view of a consumed record that handlers
// receive.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes a single message. Returning an error leaves the record
// uncommitted so the broker redelivers it.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config holds the broker connection settings for one consumer group.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

// Consumer is a franz-go consumer-group client that feeds records to a
// Handler and commits offsets only after the handler succeeds.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New connects to the brokers and joins the consumer group.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled. A handler error parks the record's
// partition for the rest of the fetch: none of that partition's later records
// are handled or committed, so the committed offset never moves past the
// failure. Other partitions still progress.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		done := c.handleRecords(ctx, fetches.Records())
		if len(done) > 0 {
			if err := c.client.CommitRecords(ctx, done...); err != nil {
				c.logger.Error("commit failed", "error", err)
			}
		}
	}
}

type topicPartition struct {
	topic     string
	partition int32
}

// handleRecords feeds one fetch's records to the handler and returns the
// records safe to commit. Committing a record acknowledges every earlier
// offset on its partition, so after a failure the partition's remaining
// records are skipped; the broker redelivers from the failed offset.
func (c *Consumer) handleRecords(ctx context.Context, records []*kgo.Record) []*kgo.Record {
	var done []*kgo.Record
	parked := make(map[topicPartition]bool)
	for _, record := range records {
		tp := topicPartition{topic: record.Topic, partition: record.Partition}
		if parked[tp] {
			continue
		}
		msg := &Message{
			Topic:     record.Topic,
			Partition: record.Partition,
			Offset:    record.Offset,
			Key:       record.Key,
			Value:     record.Value,
			Timestamp: record.Timestamp,
		}
		if err := c.handler.Handle(ctx, msg); err != nil {
			c.logger.Error("message handling failed, leaving partition uncommitted",
				"topic", record.Topic,
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err,
			)
			parked[tp] = true
			continue
		}
		done = append(done, record)
	}
	return done
}
