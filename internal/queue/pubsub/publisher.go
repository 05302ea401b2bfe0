package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is the part of a go-redis client the publisher needs.
type Redis interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher wraps Redis PUBLISH with schema validation.
type Publisher struct {
	client   Redis
	registry *SchemaRegistry
	logger   *zap.Logger
}

// NewPublisher creates a Publisher instance. registry may be nil to skip
// payload validation.
func NewPublisher(client Redis, registry *SchemaRegistry, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, registry: registry, logger: logger}
}

// Publish validates the envelope and publishes it on topic. It returns the
// number of subscribers that received it.
func (p *Publisher) Publish(ctx context.Context, topic string, envelope Envelope) (int64, error) {
	if topic == "" {
		return 0, fmt.Errorf("topic is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}
	if err := envelope.ValidateBasic(); err != nil {
		return 0, err
	}

	if p.registry != nil {
		if err := p.registry.Validate(envelope.EventType, envelope.PayloadVersion, envelope.Data); err != nil {
			return 0, err
		}
	}

	raw, err := envelope.Marshal()
	if err != nil {
		return 0, err
	}

	n, err := p.client.Publish(ctx, topic, raw).Result()
	if err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("event_type", envelope.EventType),
		zap.String("event_id", envelope.EventID),
		zap.Int64("receivers", n))
	return n, nil
}

// PublishRaw takes an arbitrary payload and wraps it in an envelope before publishing.
func (p *Publisher) PublishRaw(ctx context.Context, topic, eventType, version, sessionID string, payload interface{}) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		EventType:      eventType,
		PayloadVersion: version,
		SessionID:      sessionID,
		Data:           data,
	}
	return p.Publish(ctx, topic, env)
}
