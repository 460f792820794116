// Command sessionctl is a demonstration session owner: it logs in, hands the
// authenticated client to a polling loop, and reacts to session-terminated
// events the way a UI shell would return to its login surface: here, by
// exiting.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/facilityworks/sessionkit/adapters/events"
	"github.com/facilityworks/sessionkit/adapters/store"
	"github.com/facilityworks/sessionkit/config"
	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
	"github.com/facilityworks/sessionkit/service"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		email      = flag.String("email", "", "login email")
		password   = flag.String("password", "", "login password")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.MustLoad(*configPath)

	credStore, redisClient, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize credential store", slog.Any("error", err))
		os.Exit(1)
	}

	notifier := events.NewWatermillNotifier(logger)
	defer notifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Events.RedisBridge && redisClient != nil {
		bridge, err := events.NewRedisBridge(redisClient, logger)
		if err != nil {
			logger.Error("failed to start event bridge", slog.Any("error", err))
			os.Exit(1)
		}
		defer bridge.Close()
		go func() {
			if err := bridge.Run(ctx, notifier); err != nil {
				logger.Warn("event bridge stopped", slog.Any("error", err))
			}
		}()
	}

	sessions := service.NewSessionService(service.Config{
		BaseURL:        cfg.Backend.BaseURL,
		RequestTimeout: cfg.Backend.RequestTimeout,
		HealthTimeout:  cfg.Backend.HealthTimeout,
		Monitor: service.MonitorConfig{
			CheckInterval:    cfg.Monitor.CheckInterval,
			RenewalThreshold: cfg.Monitor.RenewalThreshold,
		},
		SingleFlightRefresh: cfg.Backend.SingleFlightRefresh,
	}, credStore, notifier, logger)
	defer sessions.Close()

	if !sessions.Healthy(ctx) {
		logger.Error("backend is unreachable", slog.String("base_url", cfg.Backend.BaseURL))
		os.Exit(1)
	}

	// The one intended subscriber: the session owner.
	terminated, err := notifier.Events(ctx)
	if err != nil {
		logger.Error("failed to subscribe to session events", slog.Any("error", err))
		os.Exit(1)
	}

	if !sessions.IsAuthenticated() {
		if *email == "" || *password == "" {
			logger.Error("no stored session; -email and -password are required")
			os.Exit(1)
		}
		user, err := sessions.Login(ctx, *email, *password)
		if err != nil {
			logger.Error("login failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("logged in",
			slog.String("username", user.Username), slog.String("role", user.Role))
	} else {
		// A stored session survives restarts; the monitor picks it up.
		sessions.Monitor().Start(ctx)
		logger.Info("resumed stored session")
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sessions.Logout(context.Background())
			return

		case event, ok := <-terminated:
			if !ok {
				return
			}
			if !core.KnownReason(event.Reason) {
				event = core.SessionEvent{
					Reason:  core.ReasonTokenExpired,
					Message: "Your session has expired",
				}
			}
			logger.Warn("session terminated, returning to login",
				slog.String("reason", event.Reason), slog.String("message", event.Message))
			return

		case <-ticker.C:
			profile, err := sessions.Profile(ctx)
			if err != nil {
				logger.Warn("profile poll failed", slog.Any("error", err))
				continue
			}
			logger.Info("session alive", slog.String("username", profile.Username))
		}
	}
}

// buildStore constructs the configured credential store. The Redis client is
// returned as well so the event bridge can share the connection.
func buildStore(cfg *config.Config, logger *slog.Logger) (ports.CredentialStore, *redis.Client, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		s, err := store.NewRedisStore(context.Background(), client, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, client, nil

	default: // file
		s, err := store.NewFileStore(cfg.Store.FilePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
}
