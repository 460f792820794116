package ports

import "context"

// Refresher exchanges the stored renewal credential for a fresh access
// credential.
type Refresher interface {
	// Refresh performs one renewal round-trip and, on success, stores the
	// new credential pair. A *core.TerminalError marks failures that
	// invalidate the session; any other error is transient and leaves the
	// stored credentials untouched.
	Refresh(ctx context.Context) error
}
