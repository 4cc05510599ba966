// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

// Package scheduler runs the periodic advisory pipeline: fetch the weather, let the
// generator turn it into an advisory, publish it and notify the user.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/notify"
	"github.com/farmassist/farm-advisor/internal/weather"
)

const (
	// DefaultInterval is the period between two advisory cycles.
	DefaultInterval = 10 * time.Minute
	// Placeholder is shown while no advisory has been generated yet.
	Placeholder = "Fetching advice..."

	jobName = "advisory_cycle"
)

var (
	ErrInvalidState = errors.New("scheduler can only be started once")
	ErrNotRunning   = errors.New("scheduler is not running")
)

// State is the lifecycle state of a Scheduler.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Summarizer derives an advisory text from a weather reading.
type Summarizer interface {
	Summarize(ctx context.Context, reading *weather.Reading) (string, error)
}

// Advisory is the advisory published by the last successful cycle.
type Advisory struct {
	Text        string
	Source      string
	GeneratedAt time.Time
}

// Stats counts cycle results since the scheduler was created.
type Stats struct {
	Cycles               uint64
	Successes            uint64
	FetchFailures        uint64
	GenerationFailures   uint64
	Skipped              uint64
	Discarded            uint64
	Notifications        uint64
	NotificationFailures uint64
	LastSuccess          time.Time
	LastFailure          time.Time
	LastError            error
}

// Scheduler owns the recurring advisory cycle. At most one cycle runs at a time.
type Scheduler struct {
	provider  weather.Provider
	generator Summarizer
	notifier  notify.Notifier
	logger    *logger.Logger
	interval  time.Duration
	onUpdate  func(Advisory)
	onOutcome func(Outcome)

	inFlight atomic.Bool

	// publishLock is held for reading while a cycle publishes and notifies. Stop takes
	// it for writing, so that no cycle publishes after Stop returned.
	publishLock sync.RWMutex

	mu          sync.Mutex
	state       State
	runCtx      context.Context
	cancel      context.CancelFunc
	cron        gocron.Scheduler
	advisory    Advisory
	hasAdvisory bool
	stats       Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the period between two cycles.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = interval
	}
}

// WithOnUpdate registers a function that is called after every published advisory.
func WithOnUpdate(fn func(Advisory)) Option {
	return func(s *Scheduler) {
		s.onUpdate = fn
	}
}

// WithOutcomeHook registers a function that receives the outcome of every cycle.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(s *Scheduler) {
		s.onOutcome = fn
	}
}

// New returns an idle Scheduler.
func New(provider weather.Provider, generator Summarizer, notifier notify.Notifier, log *logger.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if provider == nil {
		return nil, fmt.Errorf("weather provider is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("advice generator is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sched := &Scheduler{
		provider:  provider,
		generator: generator,
		notifier:  notifier,
		logger:    log.Component("scheduler"),
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(sched)
	}
	if sched.interval <= 0 {
		return nil, fmt.Errorf("invalid scheduler interval: %s", sched.interval)
	}

	return sched, nil
}

// Start asks for notification permission if it has not been requested yet, runs the
// first cycle and then arms the recurring cycle. A failed first cycle does not fail
// Start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrInvalidState
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	_, err = cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func(ctx context.Context) { s.tick(ctx) }),
		gocron.WithContext(runCtx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		cancel()
		_ = cron.Shutdown()
		s.mu.Unlock()
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}

	s.runCtx, s.cancel, s.cron = runCtx, cancel, cron
	s.state = StateRunning
	s.mu.Unlock()

	s.requestPermission(runCtx)
	s.tick(runCtx)

	// Timer runs start after the permission request and the first cycle. A Stop
	// during the first cycle leaves the job unstarted.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		cron.Start()
	}
	return nil
}

// Stop cancels the recurring cycle. A cycle that is still in flight is abandoned and
// its result discarded. Stop is idempotent and a no-op on a scheduler that was never
// started.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	cancel, cron := s.cancel, s.cron
	s.mu.Unlock()

	cancel()

	// Wait for a cycle that passed the state check before we changed it
	s.publishLock.Lock()
	s.publishLock.Unlock() //nolint:staticcheck

	if err := cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}

// Trigger runs a cycle outside the regular interval, e.g. after the system resumed from
// sleep. It obeys the same no-overlap rule as timer ticks.
func (s *Scheduler) Trigger(ctx context.Context) Outcome {
	s.mu.Lock()
	runCtx, running := s.runCtx, s.state == StateRunning
	s.mu.Unlock()
	if !running {
		return Outcome{Kind: OutcomeDiscarded, Err: ErrNotRunning}
	}

	cycleCtx, cancel := context.WithCancel(runCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return s.tick(cycleCtx)
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the current advisory and whether one has been published yet.
func (s *Scheduler) Current() (Advisory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advisory, s.hasAdvisory
}

// Text returns the current advisory text or Placeholder if there is none yet.
func (s *Scheduler) Text() string {
	advisory, ok := s.Current()
	if !ok {
		return Placeholder
	}
	return advisory.Text
}

// Stats returns a snapshot of the cycle counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// requestPermission asks the notifier for permission once, if it was not decided yet.
func (s *Scheduler) requestPermission(ctx context.Context) {
	if s.notifier.Permission() != notify.PermissionNotRequested {
		return
	}
	perm, err := s.notifier.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("notification permission request failed", slog.String("notifier", s.notifier.Name()),
			logger.Err(err))
	}
	s.logger.Debug("notification permission resolved", slog.String("notifier", s.notifier.Name()),
		slog.String("permission", perm.String()))
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

func (s *Scheduler) record(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}
