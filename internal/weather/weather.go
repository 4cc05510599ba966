// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Provider is implemented by each weather API backend. A provider is bound to a fixed
// endpoint and location at construction time.
type Provider interface {
	Name() string
	GetWeather(ctx context.Context) (*Reading, error)
}

// Coordinate is a geographic position in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Reading is a single weather observation as returned by the upstream source. The
// payload is kept as-is; it is handed through to the advice generator and never
// interpreted field by field.
type Reading struct {
	Source      string
	FetchedAt   time.Time
	Coordinates Coordinate
	Payload     json.RawMessage
}

// NewReading returns a Reading for the given payload fetched just now.
func NewReading(source string, coords Coordinate, payload json.RawMessage) *Reading {
	return &Reading{
		Source:      source,
		FetchedAt:   time.Now(),
		Coordinates: coords,
		Payload:     payload,
	}
}

// String returns the serialized payload.
func (r *Reading) String() string {
	if r == nil {
		return ""
	}
	return string(r.Payload)
}

// FetchError is returned when the upstream weather source is unreachable, answers with
// a non-success status or sends a payload that is not JSON.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch weather from %s (HTTP %d): %s", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch weather from %s: %s", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
