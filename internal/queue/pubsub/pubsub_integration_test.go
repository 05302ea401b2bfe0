//go:build integration

package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agile-athletes/lrps/internal/queue/pubsub"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	uri, err := redisC.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis uri: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse redis uri: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	reg, err := pubsub.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	sub := pubsub.NewSubscriber(client, reg, nil)
	pub := pubsub.NewPublisher(client, reg, nil)
	topic := pubsub.TopicName("session-1", false)

	listenCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	got := make(chan pubsub.Envelope, 1)
	done := make(chan error, 1)
	go func() {
		done <- sub.Listen(listenCtx, func(_ context.Context, _ string, env pubsub.Envelope) error {
			got <- env
			cancel()
			return nil
		}, topic)
	}()

	payload := pubsub.RenderedPayload{Markdown: "# Root\nR"}
	// the subscription may not be active yet; publish until someone receives it
	deadline := time.Now().Add(10 * time.Second)
	for {
		n, err := pub.PublishRaw(ctx, topic, pubsub.EventAttentionsRendered, pubsub.VersionV1, "session-1", payload)
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no subscriber received the event")
		}
		time.Sleep(100 * time.Millisecond)
	}

	select {
	case env := <-got:
		if env.SessionID != "session-1" {
			t.Fatalf("session = %q", env.SessionID)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	if err := <-done; err != context.Canceled {
		t.Fatalf("Listen() = %v, want context.Canceled", err)
	}
}
