// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/farmassist/farm-advisor/internal/http"
	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/weather"
)

const (
	name            = "open-meteo"
	DefaultEndpoint = "https://api.open-meteo.com/v1/forecast"
)

var errEmptyPayload = errors.New("empty response body")

type OpenMeteo struct {
	endpoint string
	coords   weather.Coordinate
	log      *logger.Logger
	http     *http.Client
}

func New(http *http.Client, log *logger.Logger, endpoint string, coords weather.Coordinate) (*OpenMeteo, error) {
	if http == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &OpenMeteo{endpoint: endpoint, coords: coords, http: http, log: log}, nil
}

func (o *OpenMeteo) Name() string {
	return name
}

// GetWeather requests the current conditions for the configured location. The response
// body is returned unmodified as the reading payload.
func (o *OpenMeteo) GetWeather(ctx context.Context) (*weather.Reading, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(o.coords.Lat, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(o.coords.Lon, 'f', -1, 64))
	query.Set("current_weather", "true")

	var payload json.RawMessage
	code, err := o.http.Get(ctx, o.endpoint, &payload, query, nil)
	if err != nil {
		return nil, &weather.FetchError{Source: name, StatusCode: code, Err: err}
	}
	if code < 200 || code > 299 {
		return nil, &weather.FetchError{
			Source: name, StatusCode: code,
			Err: fmt.Errorf("Open-Meteo API returned non-positive response code: %d", code),
		}
	}
	if len(payload) == 0 || string(payload) == "null" {
		return nil, &weather.FetchError{Source: name, StatusCode: code, Err: errEmptyPayload}
	}

	return weather.NewReading(name, o.coords, payload), nil
}
