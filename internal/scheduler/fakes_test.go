// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/notify"
	"github.com/farmassist/farm-advisor/internal/weather"
)

const testAdvisory = "It's very hot, water your crops in the evening and provide shade."

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
	payload   string
	err       error
	panicMsg  string
	// if block is set, calls wait for it to be closed or for the context to be cancelled
	block   chan struct{}
	started chan struct{}
}

func (f *fakeProvider) Name() string { return "fake-weather" }

func (f *fakeProvider) GetWeather(ctx context.Context) (*weather.Reading, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	block, started, err, payload, panicMsg := f.block, f.started, f.err, f.payload, f.panicMsg
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	if payload == "" {
		payload = `{"temperature": 41}`
	}
	return weather.NewReading("fake-weather", weather.Coordinate{}, []byte(payload)), nil
}

func (f *fakeProvider) set(fn func(*fakeProvider)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	readings []string
	text     string
	err      error
	// if release is set, calls wait for it to be closed and ignore the context
	release chan struct{}
	started chan struct{}
}

func (f *fakeGenerator) Summarize(_ context.Context, reading *weather.Reading) (string, error) {
	f.mu.Lock()
	f.calls++
	f.readings = append(f.readings, reading.String())
	release, started, text, err := f.release, f.started, f.text, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (f *fakeGenerator) set(fn func(*fakeGenerator)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu         sync.Mutex
	permission notify.Permission
	grant      notify.Permission
	requested  int
	notified   []string
	err        error

	// promptDelay simulates a user who takes a while to answer the permission prompt
	promptDelay time.Duration
}

func (f *fakeNotifier) Name() string { return "fake-notifier" }

func (f *fakeNotifier) Permission() notify.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

func (f *fakeNotifier) RequestPermission(context.Context) (notify.Permission, error) {
	f.mu.Lock()
	delay := f.promptDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested++
	if f.permission == notify.PermissionNotRequested {
		f.permission = f.grant
	}
	return f.permission, nil
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permission != notify.PermissionGranted {
		return notify.ErrPermissionDenied
	}
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, text)
	return nil
}

func (f *fakeNotifier) Notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notified...)
}

func (f *fakeNotifier) Requested() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested
}

type testPipeline struct {
	provider  *fakeProvider
	generator *fakeGenerator
	notifier  *fakeNotifier
	outcomes  chan Outcome
	sched     *Scheduler
}

// newTestPipeline returns an idle scheduler with fakes. The interval is long enough for
// the timer never to fire during a test unless the test says otherwise.
func newTestPipeline(t *testing.T, permission notify.Permission, opts ...Option) *testPipeline {
	t.Helper()
	p := &testPipeline{
		provider:  &fakeProvider{},
		generator: &fakeGenerator{text: testAdvisory},
		notifier:  &fakeNotifier{permission: permission, grant: notify.PermissionGranted},
		outcomes:  make(chan Outcome, 64),
	}
	opts = append([]Option{
		WithInterval(time.Hour),
		WithOutcomeHook(func(out Outcome) { p.outcomes <- out }),
	}, opts...)
	sched, err := New(p.provider, p.generator, p.notifier, logger.NewLogger(slog.LevelDebug, io.Discard), opts...)
	if err != nil {
		t.Fatalf("failed to create scheduler: %s", err)
	}
	p.sched = sched
	t.Cleanup(func() {
		if err := sched.Stop(); err != nil {
			t.Errorf("failed to stop scheduler: %s", err)
		}
	})
	return p
}

func (p *testPipeline) start(t *testing.T) Outcome {
	t.Helper()
	if err := p.sched.Start(t.Context()); err != nil {
		t.Fatalf("failed to start scheduler: %s", err)
	}
	select {
	case out := <-p.outcomes:
		return out
	default:
		t.Fatal("expected the first cycle to run during start")
	}
	return Outcome{}
}
