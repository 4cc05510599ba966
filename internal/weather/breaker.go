// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/farmassist/farm-advisor/internal/logger"
)

// BreakerProvider wraps a Provider with a circuit breaker. After maxFailures consecutive
// failed fetches the circuit opens and fetches fail fast until openTimeout has passed.
type BreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// NewBreakerProvider returns the given provider guarded by a circuit breaker.
func NewBreakerProvider(provider Provider, log *logger.Logger, maxFailures uint32, openTimeout time.Duration) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        provider.Name(),
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("weather provider circuit changed state", slog.String("provider", name),
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
		// Cancellations are caused by a shutdown, not by the upstream source
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerProvider) Name() string {
	return b.provider.Name()
}

func (b *BreakerProvider) GetWeather(ctx context.Context) (*Reading, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.provider.GetWeather(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{Source: b.provider.Name(), Err: err}
		}
		return nil, err
	}
	return res.(*Reading), nil
}

// State returns the current state of the circuit.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}
