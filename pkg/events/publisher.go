// Package events publishes greeting decisions to Kafka for downstream
// analytics and call-quality tooling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/models"
)

// TypeGreetingDecided is the event type carried in every envelope.
const TypeGreetingDecided = "greeting.decided"

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope wraps every published event.
type Envelope struct {
	ID         uuid.UUID                  `json:"id"`
	Type       string                     `json:"type"`
	OccurredAt time.Time                  `json:"occurred_at"`
	Data       *models.GreetingAuditEvent `json:"data"`
}

// Publisher sends greeting decisions to a single topic.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewPublisher creates a publisher writing to the configured brokers. The
// hash balancer keeps one caller's events on one partition, in order.
func NewPublisher(cfg *config.KafkaConfig, logger *zap.Logger) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}, logger)
}

// NewPublisherWithWriter creates a publisher over an existing writer.
func NewPublisherWithWriter(w MessageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: w,
		logger: logger.Named("events"),
	}
}

// PublishGreetingDecided sends one decision keyed by the canonical phone.
func (p *Publisher) PublishGreetingDecided(ctx context.Context, key string, event *models.GreetingAuditEvent) error {
	env := Envelope{
		ID:         uuid.New(),
		Type:       TypeGreetingDecided,
		OccurredAt: time.Now().UTC(),
		Data:       event,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeGreetingDecided)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", TypeGreetingDecided, err)
	}

	p.logger.Debug("Published event",
		zap.String("type", TypeGreetingDecided),
		zap.String("event_id", env.ID.String()),
		zap.String("scenario", string(event.Scenario)))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
