// Package app wires the agent's components together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
	"github.com/Arielbs/claude-usage-monitor/internal/browser"
	"github.com/Arielbs/claude-usage-monitor/internal/monitor"
	"github.com/Arielbs/claude-usage-monitor/internal/oauth"
	"github.com/Arielbs/claude-usage-monitor/internal/server"
)

// App orchestrates the lifecycle of the poll scheduler and the control
// server.
type App struct {
	cfg       *Config
	scheduler *monitor.Scheduler
	server    *server.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// I/O deferred to the first fetch; a missing credential record is a
	// fetch-time error, not a startup failure.
	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	refresher, err := oauth.NewRefresher(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create token refresher: %w", err)
	}

	client := anthropic.NewClient(anthropic.WithBaseURL(cfg.API.BaseURL))

	fetcher, err := monitor.NewFetcher(store, refresher, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	state := monitor.NewState()
	events := monitor.NewBroadcaster()

	var chrome *browser.Chrome
	schedulerOpts := []monitor.SchedulerOption{
		monitor.WithInterval(cfg.Poll.Interval),
	}
	if cfg.Browser.Enabled {
		chrome, err = browser.NewChrome()
		if err != nil {
			return nil, fmt.Errorf("failed to create browser helper: %w", err)
		}
		schedulerOpts = append(schedulerOpts, monitor.WithAccountMatcher(chrome.MatchAccount))
	}

	scheduler, err := monitor.NewScheduler(fetcher, state, events, schedulerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	controlServer, err := server.New(state, events, scheduler, chrome)
	if err != nil {
		return nil, fmt.Errorf("failed to create control server: %w", err)
	}

	return &App{
		cfg:       cfg,
		scheduler: scheduler,
		server:    controlServer,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting control server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("control server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "control server runtime error", "error", err)
				return fmt.Errorf("control server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	// The poll loop never returns an error; it runs until cancellation.
	g.Go(func() error {
		return a.scheduler.Run(gCtx)
	})

	slog.InfoContext(gCtx, "application ready", "address", address,
		"poll_interval", a.cfg.Poll.Interval)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
