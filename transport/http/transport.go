// Package http implements the outbound request pipeline as an
// http.RoundTripper: an outbound hook that attaches the current access
// credential as a bearer header, and an inbound hook that reacts to an
// authorization failure by renewing the credential and replaying the request
// exactly once.
package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

// retriedKey marks a request that has already been replayed after a renewal.
// A request is retried at most once: if the replay fails authorization again,
// the 401 surfaces as-is.
type retriedKey struct{}

// AuthTransport wraps a base RoundTripper with the credential pipeline.
type AuthTransport struct {
	base      http.RoundTripper
	store     ports.CredentialStore
	refresher ports.Refresher
	notifier  ports.Notifier
	logger    *slog.Logger

	// single is non-nil when concurrent renewals are coalesced. The stock
	// behavior lets N simultaneous 401s fire N renewal calls, which the
	// backend tolerates; coalescing is opt-in.
	single *singleflight.Group
}

// Option configures an AuthTransport.
type Option func(*AuthTransport)

// WithBase sets the underlying RoundTripper. Defaults to
// http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *AuthTransport) {
		t.base = rt
	}
}

// WithSingleFlight coalesces concurrent renewal attempts into one in-flight
// call shared by all waiters.
func WithSingleFlight() Option {
	return func(t *AuthTransport) {
		t.single = &singleflight.Group{}
	}
}

// NewAuthTransport creates the pipeline transport.
func NewAuthTransport(store ports.CredentialStore, refresher ports.Refresher, notifier ports.Notifier, logger *slog.Logger, opts ...Option) *AuthTransport {
	if logger == nil {
		logger = slog.Default()
	}

	t := &AuthTransport{
		base:      http.DefaultTransport,
		store:     store,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client wraps the transport in an *http.Client with the given timeout.
func (t *AuthTransport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

// RoundTrip sends the request with the current access credential attached.
// A request without a stored credential still goes out bare; the backend is
// authoritative on rejection. On a 401 the transport renews the credential
// and replays the request once through the full pipeline, so the replay
// picks up the fresh credential from the store.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if access := t.store.Access(); access != "" {
		out.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, rewriteNetError(err)
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if replayed, _ := req.Context().Value(retriedKey{}).(bool); replayed {
		return resp, nil
	}
	if t.store.Refresh() == "" {
		// No renewal possible, surface the original failure.
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Body already consumed and not replayable.
		return resp, nil
	}

	if err := t.refresh(req.Context()); err != nil {
		if te, ok := core.AsTerminal(err); ok {
			reason := te.Reason
			if reason == "" {
				reason = core.ReasonTokenRefreshFailed
			}
			msg := te.Message
			if msg == "" {
				msg = "Your session has expired"
			}
			t.store.ClearAll()
			t.notifier.Terminate(reason, msg)
		} else {
			t.logger.Debug("credential renewal failed", slog.Any("error", err))
		}
		// Either way the caller sees the original authorization failure;
		// terminal outcomes additionally surface through the notifier.
		return resp, nil
	}

	var retryBody io.ReadCloser
	if req.GetBody != nil {
		retryBody, err = req.GetBody()
		if err != nil {
			// Could not rewind the body; keep the original failure.
			return resp, nil
		}
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining before reuse
	resp.Body.Close()

	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	retry.Body = retryBody

	return t.RoundTrip(retry)
}

func (t *AuthTransport) refresh(ctx context.Context) error {
	if t.single == nil {
		return t.refresher.Refresh(ctx)
	}

	_, err, _ := t.single.Do("refresh", func() (interface{}, error) {
		return nil, t.refresher.Refresh(ctx)
	})
	return err
}
