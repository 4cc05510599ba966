// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/farmassist/farm-advisor/internal/advice"
	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/notify"
	"github.com/farmassist/farm-advisor/internal/weather"
)

// OutcomeKind discriminates the result of a cycle.
type OutcomeKind int

const (
	// OutcomeSuccess means an advisory was published.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFetchFailed means the weather could not be fetched. Err is a *weather.FetchError.
	OutcomeFetchFailed
	// OutcomeGenerationFailed means no advisory could be generated. Err is a *advice.GenerationError.
	OutcomeGenerationFailed
	// OutcomeSkipped means another cycle was still in flight.
	OutcomeSkipped
	// OutcomeDiscarded means the scheduler was stopped before the cycle could publish.
	OutcomeDiscarded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeGenerationFailed:
		return "generation_failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of one cycle.
type Outcome struct {
	Kind     OutcomeKind
	Advisory Advisory
	// Notified is true if a notification was dispatched for the advisory.
	Notified bool
	// NotifyErr is set if dispatching the notification failed. The advisory is
	// published regardless.
	NotifyErr error
	Err       error
}

// tick runs one fetch, summarize and publish cycle. Failures end the cycle and are
// returned as outcome, they never escape the tick.
func (s *Scheduler) tick(ctx context.Context) Outcome {
	if !s.isRunning() {
		return Outcome{Kind: OutcomeDiscarded, Err: ErrNotRunning}
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.record(func(st *Stats) { st.Skipped++ })
		s.logger.Debug("advisory cycle still in flight, skipping tick")
		return s.emit(Outcome{Kind: OutcomeSkipped})
	}
	defer s.inFlight.Store(false)
	s.record(func(st *Stats) { st.Cycles++ })

	reading, err := s.fetch(ctx)
	if err != nil {
		return s.emit(s.failed(OutcomeFetchFailed, err))
	}
	text, err := s.summarize(ctx, reading)
	if err != nil {
		return s.emit(s.failed(OutcomeGenerationFailed, err))
	}

	return s.emit(s.publish(ctx, Advisory{
		Text:        text,
		Source:      reading.Source,
		GeneratedAt: time.Now(),
	}))
}

// fetch gets the latest reading. Every failure, including a panicking provider, is
// reported as *weather.FetchError.
func (s *Scheduler) fetch(ctx context.Context) (reading *weather.Reading, err error) {
	defer func() {
		if r := recover(); r != nil {
			reading, err = nil, fmt.Errorf("weather provider panicked: %v", r)
		}
		if err == nil && reading == nil {
			err = errors.New("weather provider returned no reading")
		}
		var fetchErr *weather.FetchError
		if err != nil && !errors.As(err, &fetchErr) {
			err = &weather.FetchError{Source: s.provider.Name(), Err: err}
		}
	}()
	return s.provider.GetWeather(ctx)
}

// summarize gets the advisory text. Every failure, including an empty text, is reported
// as *advice.GenerationError.
func (s *Scheduler) summarize(ctx context.Context, reading *weather.Reading) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("advice generator panicked: %v", r)
		}
		if err == nil && strings.TrimSpace(text) == "" {
			text, err = "", advice.ErrEmptyResponse
		}
		var genErr *advice.GenerationError
		if err != nil && !errors.As(err, &genErr) {
			err = &advice.GenerationError{Model: "unknown", Err: err}
		}
	}()
	return s.generator.Summarize(ctx, reading)
}

func (s *Scheduler) failed(kind OutcomeKind, err error) Outcome {
	if !s.isRunning() {
		s.record(func(st *Stats) { st.Discarded++ })
		return Outcome{Kind: OutcomeDiscarded, Err: err}
	}

	now := time.Now()
	s.record(func(st *Stats) {
		switch kind {
		case OutcomeFetchFailed:
			st.FetchFailures++
		case OutcomeGenerationFailed:
			st.GenerationFailures++
		}
		st.LastFailure = now
		st.LastError = err
	})
	s.logger.Error("advisory cycle failed", slog.String("stage", kind.String()), logger.Err(err))

	return Outcome{Kind: kind, Err: err}
}

// publish replaces the current advisory and dispatches one notification if the
// permission was granted. Nothing is published once the scheduler was stopped.
func (s *Scheduler) publish(ctx context.Context, advisory Advisory) Outcome {
	s.publishLock.RLock()
	defer s.publishLock.RUnlock()

	s.mu.Lock()
	if s.state != StateRunning {
		s.stats.Discarded++
		s.mu.Unlock()
		return Outcome{Kind: OutcomeDiscarded, Err: ErrNotRunning}
	}
	s.advisory = advisory
	s.hasAdvisory = true
	s.stats.Successes++
	s.stats.LastSuccess = advisory.GeneratedAt
	s.mu.Unlock()
	s.logger.Info("advisory updated", slog.String("advisory", advisory.Text),
		slog.String("source", advisory.Source))

	out := Outcome{Kind: OutcomeSuccess, Advisory: advisory}
	switch perm := s.notifier.Permission(); perm {
	case notify.PermissionGranted:
		if err := s.notifier.Notify(ctx, advisory.Text); err != nil {
			out.NotifyErr = err
			s.record(func(st *Stats) { st.NotificationFailures++ })
			s.logger.Error("failed to dispatch advisory notification", slog.String("notifier", s.notifier.Name()),
				logger.Err(err))
			break
		}
		out.Notified = true
		s.record(func(st *Stats) { st.Notifications++ })
	default:
		s.logger.Debug("advisory notification suppressed", slog.String("permission", perm.String()))
	}

	if s.onUpdate != nil {
		s.onUpdate(advisory)
	}
	return out
}

func (s *Scheduler) emit(out Outcome) Outcome {
	if s.onOutcome != nil {
		s.onOutcome(out)
	}
	return out
}
