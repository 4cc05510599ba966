// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/farmassist/farm-advisor/internal/almanac"
	"github.com/farmassist/farm-advisor/internal/config"
	"github.com/farmassist/farm-advisor/internal/scheduler"
	"github.com/farmassist/farm-advisor/internal/weather"
)

// Output classes, usable for styling the waybar module.
const (
	ClassWaiting  = "farm-advisor-waiting"
	ClassAdvisory = "farm-advisor"
	ClassStale    = "farm-advisor-stale"
)

// Icons shown in front of the advisory.
const (
	IconWaiting = "⏳"
	IconDay     = "🌾"
	IconNight   = "🌙"
	IconStale   = "⚠️"
)

// Output is a single line of waybar custom module output.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

// TemplateContext is the data the text and tooltip templates are executed with.
type TemplateContext struct {
	Advisory    string
	HasAdvisory bool
	Source      string
	UpdatedAt   time.Time

	// Stale is set when the last cycle failed after the advisory was generated.
	Stale         bool
	Icon          string
	IconWithSpace string
	IsDaytime     bool

	Latitude  float64
	Longitude float64
	Almanac   almanac.Almanac
	Stats     scheduler.Stats
}

type Presenter struct {
	coords    weather.Coordinate
	humanizer *humanize.Humanizer
	localizer *spreak.Localizer
	text      *template.Template
	tooltip   *template.Template
}

func New(conf *config.Config, loc *spreak.Localizer) (*Presenter, error) {
	if loc == nil {
		return nil, fmt.Errorf("localizer must not be nil")
	}
	collection := humanize.MustNew(humanize.WithLocale(de.New()))
	pres := &Presenter{
		coords:    weather.Coordinate{Lat: conf.Weather.Latitude, Lon: conf.Weather.Longitude},
		humanizer: collection.CreateHumanizer(loc.Language()),
		localizer: loc,
	}

	var err error
	pres.text, err = template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	pres.tooltip, err = template.New("tooltip").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Tooltip)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}

	// Catch references to unknown fields at startup instead of on every output tick.
	if _, err = pres.Render(pres.BuildContext(scheduler.Advisory{}, false, scheduler.Stats{}, time.Now())); err != nil {
		return nil, err
	}

	return pres, nil
}

// BuildContext assembles the template context for the given advisory. ok reports whether
// an advisory has been published yet.
func (p *Presenter) BuildContext(adv scheduler.Advisory, ok bool, stats scheduler.Stats, now time.Time,
) TemplateContext {
	alm := almanac.For(p.coords, now)
	tplCtx := TemplateContext{
		HasAdvisory: ok,
		IsDaytime:   alm.IsDaytime(now),
		Latitude:    p.coords.Lat,
		Longitude:   p.coords.Lon,
		Almanac:     alm,
		Stats:       stats,
	}

	switch {
	case !ok:
		tplCtx.Advisory = p.localizer.Get(scheduler.Placeholder)
		tplCtx.Icon = IconWaiting
	default:
		tplCtx.Advisory = adv.Text
		tplCtx.Source = adv.Source
		tplCtx.UpdatedAt = adv.GeneratedAt
		tplCtx.Stale = stats.LastFailure.After(adv.GeneratedAt)
		tplCtx.Icon = IconNight
		if tplCtx.IsDaytime {
			tplCtx.Icon = IconDay
		}
		if tplCtx.Stale {
			tplCtx.Icon = IconStale
		}
	}
	tplCtx.IconWithSpace = EmojiWithSpace(tplCtx.Icon)

	return tplCtx
}

// Render executes the text and tooltip templates.
func (p *Presenter) Render(tplCtx TemplateContext) (Output, error) {
	textBuf := bytes.NewBuffer(nil)
	if err := p.text.Execute(textBuf, tplCtx); err != nil {
		return Output{}, fmt.Errorf("failed to render text template: %w", err)
	}
	tooltipBuf := bytes.NewBuffer(nil)
	if err := p.tooltip.Execute(tooltipBuf, tplCtx); err != nil {
		return Output{}, fmt.Errorf("failed to render tooltip template: %w", err)
	}

	output := Output{
		Text:    textBuf.String(),
		Tooltip: tooltipBuf.String(),
		Class:   ClassAdvisory,
	}
	switch {
	case !tplCtx.HasAdvisory:
		output.Class = ClassWaiting
	case tplCtx.Stale:
		output.Class = ClassStale
	}
	return output, nil
}
