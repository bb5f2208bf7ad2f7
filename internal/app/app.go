// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/odanko/outagebot/internal/api"
	"github.com/odanko/outagebot/internal/clock/system"
	"github.com/odanko/outagebot/internal/config"
	"github.com/odanko/outagebot/internal/dtek"
	"github.com/odanko/outagebot/internal/events"
	"github.com/odanko/outagebot/internal/events/sinks"
	"github.com/odanko/outagebot/internal/logging"
	"github.com/odanko/outagebot/internal/monitor"
	"github.com/odanko/outagebot/internal/store"
	filestore "github.com/odanko/outagebot/internal/store/file"
	"github.com/odanko/outagebot/internal/store/memory"
	"github.com/odanko/outagebot/internal/store/postgres"
	"github.com/odanko/outagebot/internal/telegram"
)

// App holds all shared, long-lived services. It is initialized once at
// startup and torn down by Close in reverse construction order.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    store.Store
	fetcher  *dtek.Client
	hub      *events.Hub
	registry *prometheus.Registry
	bot      *telegram.Bot
	monitor  *monitor.Monitor
	server   *http.Server
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the subscription store.
func (a *App) Store() store.Store { return a.store }

// Monitor returns the poll-cycle scheduler.
func (a *App) Monitor() *monitor.Monitor { return a.monitor }

// Bot returns the Telegram bot.
func (a *App) Bot() *telegram.Bot { return a.bot }

// New builds the full service graph from configuration. It fails fast: any
// component that cannot initialize aborts startup.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := dtek.New(dtek.Config{
		BaseURL:      cfg.Fetch.BaseURL,
		Headless:     cfg.Fetch.Headless,
		UserAgent:    cfg.Fetch.UserAgent,
		NavTimeout:   time.Duration(cfg.Fetch.NavTimeoutSec) * time.Second,
		SettleDelay:  time.Duration(cfg.Fetch.SettleMs) * time.Millisecond,
		FetchTimeout: time.Duration(cfg.Fetch.FetchTimeout) * time.Second,
		CacheTTL:     time.Duration(cfg.Fetch.CacheTTLSec) * time.Second,
		RateLimitQPS: cfg.Fetch.RateLimitQPS,
	}, system.Clock{}, logger.Named("dtek"))

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	hub := events.NewHub(events.Config{Logger: logger.Named("events")},
		sinks.NewLogSink(logger.Named("events")), promSink)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		fetcher:  fetcher,
		hub:      hub,
		registry: registry,
	}

	formatter := telegram.MessageFormatter{}

	bot, err := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  time.Duration(cfg.Telegram.PollTimeoutSec) * time.Second,
		CheckTimeout: time.Duration(cfg.Telegram.CheckTimeoutSec) * time.Second,
	}, st, checkerFunc(a.checkNow), logger.Named("telegram"))
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}
	a.bot = bot

	mon, err := monitor.New(monitor.Config{
		PollInterval: cfg.PollInterval(),
		InitialDelay: cfg.InitialDelay(),
		Concurrency:  cfg.Monitor.Concurrency,
	}, st, fetcher, bot, formatter, hub, logger.Named("monitor"))
	if err != nil {
		return nil, fmt.Errorf("initialize monitor: %w", err)
	}
	a.monitor = mon

	if cfg.Server.Enabled {
		srv := api.NewServer(st, registry, a.readyCheck, logger.Named("api"))
		a.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.Bool("ops_server", cfg.Server.Enabled))
	return a, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Provider {
	case "file":
		logger.Info("using file subscription store", zap.String("path", cfg.Store.Path))
		st, err := filestore.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return st, nil
	case "postgres":
		logger.Info("using postgres subscription store", zap.String("table", cfg.Store.Table))
		st, err := postgres.New(ctx, postgres.Config{
			DSN:   cfg.Store.DSN,
			Table: cfg.Store.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		return st, nil
	case "memory":
		logger.Warn("using in-memory subscription store, state is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

// Run starts the bot, the monitor loop and the ops server, blocking until
// ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	go func() {
		if err := a.monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("monitor: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		if err := a.bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram bot: %w", err)
			return
		}
		errCh <- nil
	}()
	if a.server != nil {
		go func() {
			a.logger.Info("ops server listening", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("ops server: %w", err)
				return
			}
			errCh <- nil
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close shuts services down in reverse construction order.
func (a *App) Close() {
	a.logger.Info("shutting down application services")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("ops server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("event hub close failed", zap.Error(err))
	}
	cancel()

	a.fetcher.Close()

	if closer, ok := a.store.(interface{ Close() }); ok {
		closer.Close()
	}

	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr may be a closed pipe at this point.
		_ = err
	}
}

func (a *App) checkNow(ctx context.Context, subscriberID string) (string, error) {
	return a.monitor.CheckNow(ctx, subscriberID)
}

// readyCheck reports ready once the store answers a List call.
func (a *App) readyCheck(ctx context.Context) error {
	if _, err := a.store.List(ctx); err != nil {
		return fmt.Errorf("subscription store unavailable: %w", err)
	}
	return nil
}

// checkerFunc adapts a function to the telegram.Checker interface, breaking
// the construction cycle between the bot and the monitor.
type checkerFunc func(ctx context.Context, subscriberID string) (string, error)

func (f checkerFunc) CheckNow(ctx context.Context, subscriberID string) (string, error) {
	return f(ctx, subscriberID)
}
