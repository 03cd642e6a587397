package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r: kafka.NewReader(cfg),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume feeds messages to handler one at a time. An offset is committed
// only after handler is done with the message. A retryable handler error
// (conflict, upstream outage) stops consumption without committing, so the
// message is redelivered; any other error marks the message as poison: it is
// logged and committed.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			if errs.IsRetryable(err) || ctx.Err() != nil {
				return err
			}
			slog.Error("dropping unprocessable message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
				"key", string(msg.Key), "error", err.Error())
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
