// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

// Package almanac computes sun and moon data for a location. Farmers plan irrigation
// and sowing around these, so they are offered to the advice generator as context and
// shown next to the advisory.
package almanac

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/wneessen/go-moonphase"

	"github.com/farmassist/farm-advisor/internal/weather"
)

// MoonPhaseIcon is a map where moon phase names are keys and their corresponding emoji representations are values.
var MoonPhaseIcon = map[string]string{
	"New Moon":        "🌑",
	"Waxing Crescent": "🌒",
	"First Quarter":   "🌓",
	"Waxing Gibbous":  "🌔",
	"Full Moon":       "🌕",
	"Waning Gibbous":  "🌖",
	"Third Quarter":   "🌗",
	"Waning Crescent": "🌘",
}

// Almanac holds the sun and moon data of one day at one location.
type Almanac struct {
	Date          time.Time
	Sunrise       time.Time
	Sunset        time.Time
	MoonPhase     string
	MoonPhaseIcon string
}

// For returns the almanac for the given coordinates and day. Sun times are converted
// into the location of t.
func For(coords weather.Coordinate, t time.Time) Almanac {
	rise, set := sunrise.SunriseSunset(coords.Lat, coords.Lon, t.Year(), t.Month(), t.Day())
	phase := moonphase.New(t).PhaseName()

	return Almanac{
		Date:          t,
		Sunrise:       rise.In(t.Location()),
		Sunset:        set.In(t.Location()),
		MoonPhase:     phase,
		MoonPhaseIcon: MoonPhaseIcon[phase],
	}
}

// IsDaytime reports whether t lies between sunrise and sunset. Polar day and night
// (no sunrise/sunset) report false.
func (a Almanac) IsDaytime(t time.Time) bool {
	if a.Sunrise.IsZero() || a.Sunset.IsZero() {
		return false
	}
	return t.After(a.Sunrise) && t.Before(a.Sunset)
}
