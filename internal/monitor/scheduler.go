package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
)

// DefaultInterval is the default usage poll interval.
const DefaultInterval = 60 * time.Second

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithClock injects the clock driving the poll ticker, used by tests.
func WithClock(clock clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithAccountMatcher sets a hook called once at startup with the signed-in
// account's email, for external browser-profile auto-matching.
func WithAccountMatcher(match func(email string)) SchedulerOption {
	return func(s *Scheduler) {
		s.matchAccount = match
	}
}

// Scheduler drives the fixed-interval usage poll and the one-time startup
// fetch. Fetch outcomes are written to State and broadcast; no failure ever
// stops the loop.
type Scheduler struct {
	fetcher *Fetcher
	state   *State
	events  *Broadcaster

	interval     time.Duration
	clock        clockwork.Clock
	matchAccount func(email string)

	// Poll ticks and on-demand refreshes share one in-flight usage fetch.
	flight singleflight.Group
}

// NewScheduler creates a Scheduler publishing into state and events.
func NewScheduler(fetcher *Fetcher, state *State, events *Broadcaster, opts ...SchedulerOption) (*Scheduler, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("missing fetcher")
	}
	if state == nil {
		return nil, fmt.Errorf("missing state")
	}
	if events == nil {
		return nil, fmt.Errorf("missing event broadcaster")
	}

	s := &Scheduler{
		fetcher:  fetcher,
		state:    state,
		events:   events,
		interval: DefaultInterval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run performs the startup fetch and then polls until ctx is cancelled.
// It always returns nil after cancellation; errors are recorded in State,
// never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.initialFetch(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			_, _ = s.RefreshUsage(ctx)
		}
	}
}

// RefreshUsage runs one usage fetch cycle, recording and broadcasting the
// outcome. Concurrent callers join the in-flight fetch instead of starting
// another one.
func (s *Scheduler) RefreshUsage(ctx context.Context) (*anthropic.UsageSnapshot, error) {
	result, err, _ := s.flight.Do("usage", func() (any, error) {
		usage, err := s.fetcher.FetchUsage(ctx)
		if err != nil {
			slog.WarnContext(ctx, "usage fetch failed", "error", err)
			s.state.setError(err.Error())
			s.events.Publish(TopicUsageError, err.Error())
			return nil, err
		}

		s.state.setUsage(usage)
		s.events.Publish(TopicUsageUpdated, usage)
		return usage, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*anthropic.UsageSnapshot), nil
}

// initialFetch runs once at startup, independently of the first timer tick:
// account profile first (with browser-profile auto-matching), then usage.
// A profile failure is logged and skipped; the usage fetch right after
// records any credential problem.
func (s *Scheduler) initialFetch(ctx context.Context) {
	account, err := s.fetcher.FetchProfile(ctx)
	if err != nil {
		slog.WarnContext(ctx, "startup profile fetch failed", "error", err)
	} else {
		if s.matchAccount != nil && account.Email != "" {
			s.matchAccount(account.Email)
		}
		s.state.setAccount(account)
		s.events.Publish(TopicAccountUpdated, account)
	}

	_, _ = s.RefreshUsage(ctx)
}
