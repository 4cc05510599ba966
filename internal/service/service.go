// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/godbus/dbus/v5"
	"github.com/vorlif/spreak"

	"github.com/farmassist/farm-advisor/internal/config"
	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/notify"
	"github.com/farmassist/farm-advisor/internal/presenter"
	"github.com/farmassist/farm-advisor/internal/scheduler"
	"github.com/farmassist/farm-advisor/internal/weather"
)

const outputJobName = "advisory_output_job"

type Service struct {
	config    *config.Config
	logger    *logger.Logger
	t         *spreak.Localizer
	cron      gocron.Scheduler
	advisor   *scheduler.Scheduler
	notifier  notify.Notifier
	presenter *presenter.Presenter
	SignalSrc signalSource

	connectBus func() (*dbus.Conn, error)

	outputLock sync.Mutex
	output     io.Writer
}

// New wires the weather provider, advice generator, notifier and presenter into an
// advisory scheduler.
func New(conf *config.Config, log *logger.Logger, t *spreak.Localizer) (*Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	provider, err := selectWeatherProvider(conf, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather provider: %w", err)
	}
	generator, err := newGenerator(context.Background(), conf, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create advice generator: %w", err)
	}
	notifier, err := selectNotifier(conf, log, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	return newService(conf, log, t, provider, generator, notifier)
}

func newService(conf *config.Config, log *logger.Logger, t *spreak.Localizer, provider weather.Provider,
	generator scheduler.Summarizer, notifier notify.Notifier,
) (*Service, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, t)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		config:    conf,
		logger:    log,
		t:         t,
		cron:      cron,
		notifier:  notifier,
		presenter: pres,
		SignalSrc: stdLibSignalSource{},

		connectBus: connectSystemBus,
		output:     os.Stdout,
	}

	service.advisor, err = scheduler.New(provider, generator, notifier, log,
		scheduler.WithInterval(conf.Intervals.Advisory),
		scheduler.WithOnUpdate(func(scheduler.Advisory) { service.printAdvisory(context.Background()) }),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to create advisory scheduler: %w", err)
	}

	return service, nil
}

// Run starts the advisory scheduler and the output job and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.createScheduledJob(ctx, s.config.Intervals.Output, s.printAdvisory,
		outputJobName); err != nil {
		return err
	}

	// The placeholder is shown while the first cycle is running
	s.printAdvisory(ctx)
	if err := s.advisor.Start(ctx); err != nil {
		return errors.Join(fmt.Errorf("failed to start advisory scheduler: %w", err), s.cron.Shutdown())
	}
	s.cron.Start()

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1)
	go func() {
		defer s.SignalSrc.Stop(sigChan)
		s.HandleRefreshSignal(ctx, sigChan)
	}()

	if !s.config.DisableResumeRefresh {
		go s.monitorSleepResume(ctx)
	}

	// Wait for the context to cancel
	<-ctx.Done()

	var errs []error
	if err := s.advisor.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.cron.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down output scheduler: %w", err))
	}
	if closer, ok := s.notifier.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close notifier: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns the advisory cycle counters.
func (s *Service) Stats() scheduler.Stats {
	return s.advisor.Stats()
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// printAdvisory renders the current advisory, or the placeholder, and writes it to the
// output as a single JSON line.
func (s *Service) printAdvisory(context.Context) {
	advisory, ok := s.advisor.Current()
	output, err := s.presenter.Render(s.presenter.BuildContext(advisory, ok, s.advisor.Stats(), time.Now()))
	if err != nil {
		s.logger.Error("failed to render advisory output", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode advisory output", logger.Err(err))
		return
	}
	s.logger.Debug("advisory output written", slog.String("class", output.Class))
}
