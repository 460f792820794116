package ports

import (
	"context"

	"github.com/facilityworks/sessionkit/core"
)

// Notifier broadcasts session lifecycle events to in-process subscribers,
// decoupling "a credential became invalid" from whatever the application
// does about it (typically: navigate to the login surface).
type Notifier interface {
	// Terminate publishes a session-terminated event to zero or more
	// subscribers. It is fire-and-forget: it never blocks the caller and
	// never surfaces an error.
	Terminate(reason, msg string)

	// Events subscribes to session-terminated events. The channel closes
	// when ctx is cancelled or the notifier shuts down.
	Events(ctx context.Context) (<-chan core.SessionEvent, error)

	// Close shuts down the notifier and all subscriptions.
	Close() error
}
