package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler processes one decoded envelope received on topic.
type Handler func(ctx context.Context, topic string, env Envelope) error

// Subscriber dispatches envelopes from Redis channels to a Handler.
type Subscriber struct {
	client   *redis.Client
	registry *SchemaRegistry
	logger   *zap.Logger
}

// NewSubscriber builds a subscriber. registry may be nil to skip payload validation.
func NewSubscriber(client *redis.Client, registry *SchemaRegistry, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{client: client, registry: registry, logger: logger}
}

// Listen subscribes to topics and calls handler for every valid envelope
// until ctx is cancelled. Malformed messages and handler errors are logged
// and skipped.
func (s *Subscriber) Listen(ctx context.Context, handler Handler, topics ...string) error {
	if len(topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}
	ps := s.client.Subscribe(ctx, topics...)
	defer ps.Close()
	// wait for the subscription confirmation so no message published after
	// Listen starts is missed
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %v: %w", topics, err)
	}
	s.logger.Info("subscribed", zap.Strings("topics", topics))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatch(ctx, msg, handler)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, msg *redis.Message, handler Handler) {
	env, err := s.decode(msg)
	if err != nil {
		s.logger.Warn("dropping malformed message", zap.String("topic", msg.Channel), zap.Error(err))
		return
	}
	if err := handler(ctx, msg.Channel, env); err != nil {
		s.logger.Error("handler failed",
			zap.String("topic", msg.Channel),
			zap.String("event_id", env.EventID),
			zap.Error(err))
	}
}

func (s *Subscriber) decode(msg *redis.Message) (Envelope, error) {
	env, err := UnmarshalEnvelope([]byte(msg.Payload))
	if err != nil {
		return env, err
	}
	if s.registry != nil {
		if err := s.registry.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			return env, err
		}
	}
	return env, nil
}
