// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vorlif/spreak"

	"github.com/farmassist/farm-advisor/internal/advice"
	"github.com/farmassist/farm-advisor/internal/config"
	"github.com/farmassist/farm-advisor/internal/http"
	"github.com/farmassist/farm-advisor/internal/i18n"
	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/notify"
	"github.com/farmassist/farm-advisor/internal/notify/desktop"
	"github.com/farmassist/farm-advisor/internal/notify/webhook"
	"github.com/farmassist/farm-advisor/internal/weather"
	openmeteo "github.com/farmassist/farm-advisor/internal/weather/provider/open-meteo"
)

const notificationTitle = "Weather advisory"

func selectWeatherProvider(conf *config.Config, log *logger.Logger) (weather.Provider, error) {
	coords := weather.Coordinate{Lat: conf.Weather.Latitude, Lon: conf.Weather.Longitude}
	provider, err := openmeteo.New(http.New(log), log, conf.Weather.Endpoint, coords)
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo weather provider: %w", err)
	}
	if conf.Weather.BreakerFailures == 0 {
		return provider, nil
	}
	return weather.NewBreakerProvider(provider, log, conf.Weather.BreakerFailures,
		conf.Weather.BreakerOpenTimeout), nil
}

func newGenerator(ctx context.Context, conf *config.Config, t *spreak.Localizer) (*advice.Generator, error) {
	language := conf.Advisor.Language
	if language == "" && t != nil {
		language = i18n.LanguageName(t.Language())
	}
	return advice.New(ctx, conf.Advisor.APIKey, conf.Advisor.Model,
		advice.WithLanguage(language),
		advice.WithAlmanac(!conf.Advisor.DisableAlmanac),
		advice.WithTimeout(conf.Advisor.Timeout),
	)
}

func selectNotifier(conf *config.Config, log *logger.Logger, t *spreak.Localizer) (notify.Notifier, error) {
	permission, err := notify.ParsePermission(conf.Notifications.Permission)
	if err != nil {
		return nil, err
	}
	title := notificationTitle
	if t != nil {
		title = t.Get(notificationTitle)
	}

	var notifier notify.Notifier
	switch conf.Notifications.Backend {
	case config.BackendDesktop:
		notifier, err = desktop.New(conf.Notifications.AppName, title, conf.Notifications.Urgency, permission)
	case config.BackendWebhook:
		notifier, err = webhook.New(http.New(log), conf.Notifications.WebhookURL, conf.Notifications.AppName,
			title, permission)
	case config.BackendNone:
		notifier = notify.Discard{}
	default:
		return nil, fmt.Errorf("unsupported notification backend: %s", conf.Notifications.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("notifier selected", slog.String("notifier", notifier.Name()),
		slog.String("permission", notifier.Permission().String()))
	return notifier, nil
}
