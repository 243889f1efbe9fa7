// Package publish streams dashboard updates to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
)

// Message kinds, used as the Kafka key.
const (
	KindSnapshot = "snapshot"
	KindNews     = "news"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SnapshotUpdate is the payload of a snapshot message.
type SnapshotUpdate struct {
	Snapshot macro.Snapshot `json:"snapshot"`
	Bias     bias.Result    `json:"bias"`
}

// Envelope wraps every payload.
type Envelope struct {
	Kind        string          `json:"kind"`
	PublishedAt time.Time       `json:"publishedAt"`
	Data        json.RawMessage `json:"data"`
}

type Publisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafka creates a publisher writing synchronously to topic.
func NewKafka(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	logger.Info("kafka publisher initialized", "brokers", brokers, "topic", topic)
	return New(w)
}

func New(w MessageWriter) *Publisher {
	return &Publisher{writer: w, now: time.Now}
}

func (p *Publisher) PublishSnapshot(ctx context.Context, s macro.Snapshot, b bias.Result) error {
	return p.publish(ctx, KindSnapshot, SnapshotUpdate{Snapshot: s, Bias: b})
}

func (p *Publisher) PublishFeed(ctx context.Context, f news.Feed) error {
	return p.publish(ctx, KindNews, f)
}

func (p *Publisher) publish(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	now := p.now()
	value, err := json.Marshal(Envelope{Kind: kind, PublishedAt: now, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(kind),
		Value: value,
		Time:  now,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	logger.Debug("published update", "kind", kind, "bytes", len(value))
	return nil
}

func (p *Publisher) Close() error {
	logger.Info("closing kafka publisher")
	return p.writer.Close()
}
