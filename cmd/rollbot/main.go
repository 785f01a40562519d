// Command rollbot is the entry point for the multi-tenant dice-rolling
// command service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mrwong99/rollbot/internal/command"
	"github.com/mrwong99/rollbot/internal/config"
	"github.com/mrwong99/rollbot/internal/discordadapter"
	"github.com/mrwong99/rollbot/internal/health"
	"github.com/mrwong99/rollbot/internal/observe"
	"github.com/mrwong99/rollbot/internal/rng"
	"github.com/mrwong99/rollbot/internal/rollexec"
	"github.com/mrwong99/rollbot/internal/storage"
	"github.com/mrwong99/rollbot/internal/storage/pgstore"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: rollbot <config-file>")
		return 1
	}
	configPath := os.Args[1]

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "rollbot: config file %q not found\n", configPath)
		} else {
			fmt.Fprintf(os.Stderr, "rollbot: %v\n", err)
		}
		return 1
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)
	slog.Info("rollbot starting", "config", configPath, "clients", len(cfg.Clients))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			levelVar.Set(slogLevel(diff.NewLogLevel))
			slog.Info("config watcher: log level changed", "level", diff.NewLogLevel)
		}
		if diff.ClientsChanged {
			slog.Warn("config watcher: client tuning changed, restart required to apply", "changes", diff.ClientChanges)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: "dev"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	pool, err := pgxpool.New(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		return 1
	}
	defer pool.Close()

	store := pgstore.New(pool)
	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate database", "err", err)
		return 1
	}

	persist := storage.NewPersistWorker(ctx, store, cfg.DBQueueSize)

	provider, err := rng.NewProvider(ctx)
	if err != nil {
		slog.Error("failed to start rng provider", "err", err)
		return 1
	}
	go rng.RunReseedTicker(ctx, provider, time.Duration(cfg.RNGReseedS)*time.Second)

	exec := rollexec.New(ctx, cfg.RNGWorkers, time.Duration(cfg.RollTimeoutMS)*time.Millisecond, provider)

	dispatchers := make(map[string]*command.Dispatcher, len(cfg.Clients))
	for name, client := range cfg.Clients {
		actor := storage.NewActor(ctx, storage.Config{
			ClientType: name,
			Persist:    persist,
			Shards:     defaultShards,
			CacheSize:  client.CacheSize,
			QueueSize:  client.QueueSize,
		})
		dispatchers[name] = command.NewDispatcher(name, actor, exec, metrics)
	}

	healthChecker := health.New(health.Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	var group errgroup.Group

	if cfg.Discord.Token != "" {
		discordDispatcher, ok := dispatchers[cfg.Discord.ClientType]
		if !ok {
			slog.Error("discord.client_type has no matching [clients.*] table", "client_type", cfg.Discord.ClientType)
			return 1
		}
		bot, err := discordadapter.New(discordadapter.Config{
			Token:       cfg.Discord.Token,
			ClientType:  cfg.Discord.ClientType,
			AdminRoleID: cfg.Discord.AdminRoleID,
			EvalTimeout: time.Duration(cfg.RollTimeoutMS) * time.Millisecond * 2,
		}, discordDispatcher)
		if err != nil {
			slog.Error("failed to start discord adapter", "err", err)
			return 1
		}
		group.Go(func() error { return bot.Run(ctx) })
		defer bot.Close()
	}

	var httpServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		healthChecker.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: observe.Middleware(metrics)(mux)}
		group.Go(func() error {
			slog.Info("observability server listening", "addr", cfg.Server.MetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("observability server: %w", err)
			}
			return nil
		})
	}

	slog.Info("rollbot ready — press Ctrl+C to shut down")
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	<-persist.Done()
	slog.Info("goodbye")
	return 0
}

// defaultShards is the number of independent cache buckets each storage
// actor runs, chosen to spread id hashing across a handful of goroutines
// without over-provisioning for small deployments.
const defaultShards = 8

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
