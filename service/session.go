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
	authhttp "github.com/facilityworks/sessionkit/transport/http"
)

const (
	loginPath   = "/api/auth/login/"
	logoutPath  = "/api/auth/logout/"
	profilePath = "/api/auth/profile/"
	healthPath  = "/api/health/"

	// DefaultHealthTimeout bounds the liveness probe. The probe yields a
	// boolean reachability signal only and never feeds credential logic.
	DefaultHealthTimeout = 5 * time.Second
)

// Config tunes a SessionService.
type Config struct {
	// BaseURL is the backend root, e.g. "https://ops.example.mil".
	BaseURL string

	// RequestTimeout bounds ordinary backend calls. Defaults to
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// HealthTimeout bounds the liveness probe. Defaults to
	// DefaultHealthTimeout.
	HealthTimeout time.Duration

	// Monitor tunes the expiry monitor.
	Monitor MonitorConfig

	// SingleFlightRefresh coalesces concurrent renewal attempts triggered
	// by simultaneous 401s into one in-flight call. Off by default: the
	// backend tolerates concurrent renewals.
	SingleFlightRefresh bool
}

func (c *Config) withDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
}

// SessionService owns the session lifecycle against one backend: login,
// logout, proactive renewal, and the authenticated HTTP client handed to the
// rest of the application.
type SessionService struct {
	cfg      Config
	store    ports.CredentialStore
	notifier ports.Notifier
	monitor  *ExpiryMonitor
	logger   *slog.Logger

	client *http.Client // pipeline-wrapped, for resource calls
	plain  *http.Client // bare, for login and the health probe
}

// NewSessionService wires store, refresher, pipeline and monitor together.
func NewSessionService(cfg Config, store ports.CredentialStore, notifier ports.Notifier, logger *slog.Logger) *SessionService {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	refresher := NewTokenRefresher(cfg.BaseURL, store, logger)

	opts := []authhttp.Option{}
	if cfg.SingleFlightRefresh {
		opts = append(opts, authhttp.WithSingleFlight())
	}
	transport := authhttp.NewAuthTransport(store, refresher, notifier, logger, opts...)

	return &SessionService{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		monitor:  NewExpiryMonitor(store, refresher, notifier, cfg.Monitor, logger),
		logger:   logger,
		client:   transport.Client(cfg.RequestTimeout),
		plain:    &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// HTTPClient returns the authenticated client. Every request through it
// carries the current access credential and participates in renew-and-retry.
func (s *SessionService) HTTPClient() *http.Client {
	return s.client
}

// Monitor exposes the expiry monitor, e.g. to force a check after waking
// from sleep.
func (s *SessionService) Monitor() *ExpiryMonitor {
	return s.monitor
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string           `json:"message"`
	User    core.UserProfile `json:"user"`
	Tokens  struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	Error string `json:"error,omitempty"`
}

// Login authenticates against the backend, stores the credential pair and
// the profile snapshot, and starts the expiry monitor.
func (s *SessionService) Login(ctx context.Context, email, password string) (*core.UserProfile, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.plain.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login call failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}

	var out loginResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("malformed login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("login rejected: %s", out.Error)
		}
		return nil, fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	if out.Tokens.Access == "" || out.Tokens.Refresh == "" {
		return nil, fmt.Errorf("login response carries an incomplete token pair")
	}

	if err := s.store.SetTokens(out.Tokens.Access, out.Tokens.Refresh); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}
	if err := s.store.SetProfile(&out.User); err != nil {
		s.logger.Warn("failed to cache user profile", slog.Any("error", err))
	}

	// The monitor outlives the login call's context.
	s.monitor.Start(context.Background())

	s.logger.Info("session established", slog.String("username", out.User.Username))
	return &out.User, nil
}

// Logout invalidates the renewal credential server-side (best effort), stops
// the monitor and clears local session state. Local state is always cleared,
// whatever the backend says.
func (s *SessionService) Logout(ctx context.Context) {
	if refresh := s.store.Refresh(); refresh != "" {
		body, err := json.Marshal(refreshRequest{Refresh: refresh})
		if err == nil {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+logoutPath, bytes.NewReader(body))
			if err == nil {
				req.Header.Set("Content-Type", "application/json")
				if resp, err := s.client.Do(req); err != nil {
					s.logger.Debug("server-side logout failed", slog.Any("error", err))
				} else {
					io.Copy(io.Discard, resp.Body) //nolint:errcheck
					resp.Body.Close()
				}
			}
		}
	}

	s.monitor.Stop()
	s.store.ClearAll()
	s.logger.Info("session closed")
}

// Profile re-fetches the authenticated principal and refreshes the cached
// snapshot.
func (s *SessionService) Profile(ctx context.Context) (*core.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+profilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile rejected with status %d", resp.StatusCode)
	}

	var profile core.UserProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("malformed profile response: %w", err)
	}

	if err := s.store.SetProfile(&profile); err != nil {
		s.logger.Warn("failed to cache user profile", slog.Any("error", err))
	}
	return &profile, nil
}

// CachedProfile returns the locally cached profile snapshot, or nil. The
// snapshot is a display convenience, never an authorization input.
func (s *SessionService) CachedProfile() *core.UserProfile {
	return s.store.Profile()
}

// IsAuthenticated reports whether a full credential pair is stored.
func (s *SessionService) IsAuthenticated() bool {
	return s.store.IsAuthenticated()
}

// Healthy probes backend reachability. 200 means reachable; anything else,
// including a timeout, means unreachable.
func (s *SessionService) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+healthPath, nil)
	if err != nil {
		return false
	}

	resp, err := s.plain.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	return resp.StatusCode == http.StatusOK
}

// Close stops background work. The store and notifier belong to the caller.
func (s *SessionService) Close() {
	s.monitor.Stop()
}
