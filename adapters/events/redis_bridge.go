package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/facilityworks/sessionkit/ports"
)

// RedisBridge mirrors session-terminated events onto a Redis stream so that
// sibling processes sharing the session (a second kiosk window, a sidecar
// tool) can tear down their own state too. Purely additive: the in-process
// notifier stays the source of truth.
type RedisBridge struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewRedisBridge creates a bridge publishing over the given Redis client.
func NewRedisBridge(client *redis.Client, logger *slog.Logger) (*RedisBridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	return &RedisBridge{publisher: publisher, logger: logger}, nil
}

// Run forwards events from the notifier until ctx is cancelled or the
// subscription closes. Publish failures are logged and skipped; local
// termination handling never depends on the bridge.
func (b *RedisBridge) Run(ctx context.Context, notifier ports.Notifier) error {
	events, err := notifier.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			b.logger.Error("failed to encode session event", slog.Any("error", err))
			continue
		}

		m := message.NewMessage(watermill.NewUUID(), payload)
		if err := b.publisher.Publish(TopicSessionTerminated, m); err != nil {
			b.logger.Warn("failed to mirror session event to redis", slog.Any("error", err))
		}
	}

	return nil
}

// Close releases the underlying publisher.
func (b *RedisBridge) Close() error {
	return b.publisher.Close()
}
