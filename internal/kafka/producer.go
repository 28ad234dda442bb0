package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/harry-2401/reddit/configs"

	kgo "github.com/segmentio/kafka-go"
)

const (
	TopicPostsCreated  = "posts.created"
	TopicPostsDeleted  = "posts.deleted"
	TopicVotesCast     = "votes.cast"
	TopicPasswordReset = "password.reset"
)

// Publisher sends JSON events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, v any) error
	Close() error
}

type writer struct {
	w *kgo.Writer
}

// NewWriter returns a kafka-go backed publisher, or a no-op publisher when no
// bootstrap servers are configured.
func NewWriter(cfg configs.Kafka) Publisher {
	addr := strings.TrimSpace(cfg.Bootstrap)
	if addr == "" {
		slog.Info("kafka disabled, events are dropped")
		return Noop{}
	}

	var acks kgo.RequiredAcks
	switch strings.ToLower(strings.TrimSpace(cfg.RequiredAcks)) {
	case "none":
		acks = kgo.RequireNone
	case "all":
		acks = kgo.RequireAll
	default:
		acks = kgo.RequireOne
	}

	return &writer{w: &kgo.Writer{
		Addr:                   kgo.TCP(strings.Split(addr, ",")...),
		Balancer:               &kgo.Hash{},
		RequiredAcks:           acks,
		Async:                  cfg.Async,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (wr *writer) Publish(ctx context.Context, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return wr.w.WriteMessages(ctx, kgo.Message{Topic: topic, Key: []byte(key), Value: b, Time: time.Now()})
}

func (wr *writer) Close() error { return wr.w.Close() }

type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                       { return nil }
