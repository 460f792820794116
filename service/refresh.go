// Package service holds the session lifecycle logic: credential renewal with
// terminal/transient classification, the periodic expiry monitor, and the
// SessionService facade tying store, pipeline and notifier together.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

const (
	refreshPath = "/api/auth/token/refresh/"

	// DefaultRequestTimeout bounds ordinary backend calls, renewal included.
	DefaultRequestTimeout = 10 * time.Second

	// maxResponseBody caps how much of a backend response is read.
	maxResponseBody = 1 << 20
)

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// refreshResponse covers both the success and the failure shape of the
// renewal endpoint. On success only Access (and optionally Refresh) are set;
// on failure the backend may carry an explicit clear instruction (Action) or
// a principal error code (Error) with a human-readable Detail.
type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
	Action  string `json:"action,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// TokenRefresher renews the access credential against the backend. It runs
// on its own HTTP client so renewal traffic never enters the authenticated
// pipeline; a 401 on the renewal call itself therefore cannot recurse into
// another renewal.
type TokenRefresher struct {
	baseURL string
	store   ports.CredentialStore
	client  *http.Client
	logger  *slog.Logger
}

// RefresherOption configures a TokenRefresher.
type RefresherOption func(*TokenRefresher)

// WithRefreshClient overrides the HTTP client used for renewal calls.
func WithRefreshClient(client *http.Client) RefresherOption {
	return func(r *TokenRefresher) {
		r.client = client
	}
}

// NewTokenRefresher creates a refresher for the given backend base URL.
func NewTokenRefresher(baseURL string, store ports.CredentialStore, logger *slog.Logger, opts ...RefresherOption) *TokenRefresher {
	if logger == nil {
		logger = slog.Default()
	}

	r := &TokenRefresher{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ports.Refresher = (*TokenRefresher)(nil)

// Refresh performs one renewal round-trip. On success the new pair is stored
// as a whole; when the backend does not rotate the renewal credential, the
// one just sent is kept. Terminal failures come back as *core.TerminalError;
// everything else (timeouts, connectivity, 5xx, malformed payload) is
// transient and leaves the store untouched.
func (r *TokenRefresher) Refresh(ctx context.Context) error {
	refresh := r.store.Refresh()
	if refresh == "" {
		return core.ErrNoRefreshCredential
	}

	body, err := json.Marshal(refreshRequest{Refresh: refresh})
	if err != nil {
		return fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+refreshPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh call failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classify(resp.StatusCode, payload)
	}

	var out refreshResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return fmt.Errorf("malformed refresh response: %w", err)
	}
	if out.Access == "" {
		return fmt.Errorf("refresh response carries no access token")
	}

	newRefresh := out.Refresh
	if newRefresh == "" {
		newRefresh = refresh
	}
	if err := r.store.SetTokens(out.Access, newRefresh); err != nil {
		return fmt.Errorf("failed to store renewed credentials: %w", err)
	}

	r.logger.Debug("access credential renewed",
		slog.Bool("refresh_rotated", out.Refresh != ""))
	return nil
}

// classify decides whether a failed renewal invalidates the session. Only an
// explicit backend instruction does: action=clear_tokens, or an error code
// identifying the principal as gone, invalid or inactive. Anything else is
// transient so a momentary network blip never logs the user out.
func classify(status int, payload []byte) error {
	var out refreshResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return fmt.Errorf("refresh rejected with status %d", status)
	}

	terminal := out.Action == "clear_tokens"
	switch out.Error {
	case core.ReasonUserNotFound, core.ReasonInvalidToken, core.ReasonUserInactive:
		terminal = true
	}
	if !terminal {
		return fmt.Errorf("refresh rejected with status %d", status)
	}

	return &core.TerminalError{Reason: out.Error, Message: out.Detail}
}
