package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/facilityworks/sessionkit/adapters/tokenizer"
	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

const (
	// DefaultCheckInterval is how often the monitor inspects the credential.
	DefaultCheckInterval = time.Minute

	// DefaultRenewalThreshold is how close to expiry a proactive renewal
	// starts.
	DefaultRenewalThreshold = 5 * time.Minute
)

// MonitorConfig tunes the expiry monitor.
type MonitorConfig struct {
	CheckInterval    time.Duration
	RenewalThreshold time.Duration
}

func (c *MonitorConfig) withDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.RenewalThreshold <= 0 {
		c.RenewalThreshold = DefaultRenewalThreshold
	}
}

// ExpiryMonitor periodically inspects the stored access credential's expiry
// claim and renews it shortly before it lapses. A credential that has
// already lapsed terminates the session immediately, without a renewal
// attempt. Ticks are independent: one tick's in-flight renewal never blocks
// the next, and each tick only reads and whole-pair-writes the store.
type ExpiryMonitor struct {
	store     ports.CredentialStore
	refresher ports.Refresher
	notifier  ports.Notifier
	logger    *slog.Logger

	interval  time.Duration
	threshold time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewExpiryMonitor creates a stopped monitor.
func NewExpiryMonitor(store ports.CredentialStore, refresher ports.Refresher, notifier ports.Notifier, cfg MonitorConfig, logger *slog.Logger) *ExpiryMonitor {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &ExpiryMonitor{
		store:     store,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
		interval:  cfg.CheckInterval,
		threshold: cfg.RenewalThreshold,
	}
}

// Start launches the periodic check. A repeated Start replaces the previous
// timer, so a login after logout never leaves an orphaned ticker behind.
func (m *ExpiryMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.run(ctx)
}

// Stop cancels the periodic check. Safe without a prior Start.
func (m *ExpiryMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *ExpiryMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow performs a single expiry inspection. Exported so the application
// can force a check outside the timer, e.g. right after waking from sleep.
func (m *ExpiryMonitor) CheckNow(ctx context.Context) {
	access := m.store.Access()
	if access == "" {
		return
	}

	expiry, err := tokenizer.AccessExpiry(access)
	if err != nil {
		// Fail open: client-side decoding is advisory, a malformed read
		// never forces a logout. The backend rejects the token if it is
		// actually bad.
		m.logger.Debug("skipping expiry check", slog.Any("error", err))
		return
	}

	now := time.Now()
	if !expiry.After(now) {
		m.store.ClearAll()
		m.notifier.Terminate(core.ReasonTokenExpired, "Your session has expired")
		return
	}

	if expiry.Sub(now) >= m.threshold {
		return
	}

	if err := m.refresher.Refresh(ctx); err != nil {
		if te, ok := core.AsTerminal(err); ok {
			reason := te.Reason
			if reason == "" {
				reason = core.ReasonTokenExpired
			}
			msg := te.Message
			if msg == "" {
				msg = "Your session has expired"
			}
			m.store.ClearAll()
			m.notifier.Terminate(reason, msg)
			return
		}
		// Transient: keep the possibly-stale credentials, the next tick or
		// the next 401 retries.
		m.logger.Debug("proactive renewal failed", slog.Any("error", err))
		return
	}

	m.logger.Debug("proactive renewal succeeded",
		slog.Duration("was_expiring_in", expiry.Sub(now)))
}
