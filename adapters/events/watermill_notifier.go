// Package events implements the Session Notifier: an in-process pub/sub
// signal announcing session termination, built on watermill's gochannel
// transport, plus an optional bridge mirroring the signal onto a Redis
// stream for sibling processes.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

// TopicSessionTerminated is the topic session-terminated events are
// published on.
const TopicSessionTerminated = "session.terminated"

// WatermillNotifier implements ports.Notifier over an in-process gochannel
// pub/sub. Publishing is fire-and-forget: failures are logged, never
// returned, and a slow subscriber cannot stall the request pipeline beyond
// its buffered window.
type WatermillNotifier struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// NewWatermillNotifier creates a notifier with a small per-subscriber buffer.
func NewWatermillNotifier(logger *slog.Logger) *WatermillNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermill.NewSlogLogger(logger),
	)

	return &WatermillNotifier{pubsub: pubsub, logger: logger}
}

var _ ports.Notifier = (*WatermillNotifier)(nil)

// Terminate publishes a session-terminated event.
func (n *WatermillNotifier) Terminate(reason, msg string) {
	payload, err := json.Marshal(core.SessionEvent{Reason: reason, Message: msg})
	if err != nil {
		n.logger.Error("failed to encode session event", slog.Any("error", err))
		return
	}

	m := message.NewMessage(watermill.NewUUID(), payload)
	if err := n.pubsub.Publish(TopicSessionTerminated, m); err != nil {
		n.logger.Error("failed to publish session event",
			slog.String("reason", reason), slog.Any("error", err))
	}
}

// Events subscribes to session-terminated events.
func (n *WatermillNotifier) Events(ctx context.Context) (<-chan core.SessionEvent, error) {
	messages, err := n.pubsub.Subscribe(ctx, TopicSessionTerminated)
	if err != nil {
		return nil, err
	}

	out := make(chan core.SessionEvent, 1)
	go func() {
		defer close(out)
		for m := range messages {
			var event core.SessionEvent
			if err := json.Unmarshal(m.Payload, &event); err != nil {
				n.logger.Warn("dropping malformed session event", slog.Any("error", err))
				m.Ack()
				continue
			}
			m.Ack()

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts down the pub/sub and closes all subscriber channels.
func (n *WatermillNotifier) Close() error {
	return n.pubsub.Close()
}
