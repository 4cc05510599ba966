// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv         = "FARMADVISOR"
	DefaultTextTpl    = "{{.Icon}} {{.Advisory}}"
	DefaultTooltipTpl = "{{loc \"advisory\"}}: {{.Advisory}}\n" +
		"{{loc \"updated\"}}: {{if .HasAdvisory}}{{localizedTime .UpdatedAt}}{{else}}-{{end}}\n" +
		"{{loc \"sunrise\"}}: {{timeFormat .Almanac.Sunrise \"15:04\"}} | " +
		"{{loc \"sunset\"}}: {{timeFormat .Almanac.Sunset \"15:04\"}}\n" +
		"{{loc \"moonphase\"}}: {{.Almanac.MoonPhaseIcon}} {{loc .Almanac.MoonPhase}}"
)

const (
	DefaultAdvisoryInterval = 10 * time.Minute
	DefaultOutputInterval   = 30 * time.Second
)

// Notification backends
const (
	BackendDesktop = "desktop"
	BackendWebhook = "webhook"
	BackendNone    = "none"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	// Refresh the advisory when the system resumes from sleep (logind over D-Bus).
	DisableResumeRefresh bool `fig:"disable_resume_refresh"`

	Weather struct {
		Endpoint  string  `fig:"endpoint" default:"https://api.open-meteo.com/v1/forecast"`
		Latitude  float64 `fig:"latitude" default:"12.97"`
		Longitude float64 `fig:"longitude" default:"77.59"`

		// Consecutive fetch failures before the circuit opens. 0 disables the breaker.
		BreakerFailures    uint32        `fig:"breaker_failures" default:"5"`
		BreakerOpenTimeout time.Duration `fig:"breaker_open_timeout" default:"30m"`
	} `fig:"weather"`

	Advisor struct {
		Model  string `fig:"model" default:"gemini-1.5-flash"`
		APIKey string `fig:"apikey"`
		// Language of the advisory. Derived from the locale if empty.
		Language       string `fig:"language"`
		DisableAlmanac bool   `fig:"disable_almanac"`
		// Upper bound for a single model call. 0 means no timeout.
		Timeout time.Duration `fig:"timeout"`
	} `fig:"advisor"`

	Intervals struct {
		// 0 selects DefaultAdvisoryInterval
		Advisory time.Duration `fig:"advisory"`
		// 0 selects DefaultOutputInterval
		Output time.Duration `fig:"output"`
	} `fig:"intervals"`

	Notifications struct {
		// Allowed values: desktop, webhook, none
		Backend string `fig:"backend" default:"desktop"`
		// Allowed values: granted, denied or empty (ask on start)
		Permission string `fig:"permission"`
		AppName    string `fig:"app_name" default:"farm-advisor"`
		// Allowed values: low, normal, critical
		Urgency    string `fig:"urgency" default:"normal"`
		WebhookURL string `fig:"webhook_url"`
	} `fig:"notifications"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", c.Weather.Latitude)
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", c.Weather.Longitude)
	}
	if _, err := url.ParseRequestURI(c.Weather.Endpoint); err != nil {
		return fmt.Errorf("invalid weather endpoint: %w", err)
	}
	if c.Intervals.Advisory == 0 {
		c.Intervals.Advisory = DefaultAdvisoryInterval
	}
	if c.Intervals.Output == 0 {
		c.Intervals.Output = DefaultOutputInterval
	}
	if c.Intervals.Advisory < 0 {
		return fmt.Errorf("invalid advisory interval: %s", c.Intervals.Advisory)
	}
	if c.Intervals.Output < 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}
	if c.Advisor.Timeout < 0 {
		return fmt.Errorf("invalid advisor timeout: %s", c.Advisor.Timeout)
	}
	if c.Advisor.APIKey == "" {
		c.Advisor.APIKey = apiKeyFromEnv()
	}

	c.Notifications.Backend = strings.ToLower(c.Notifications.Backend)
	switch c.Notifications.Backend {
	case BackendDesktop, BackendNone:
	case BackendWebhook:
		if c.Notifications.WebhookURL == "" {
			return fmt.Errorf("webhook notifications require a webhook_url")
		}
	default:
		return fmt.Errorf("invalid notification backend: %s", c.Notifications.Backend)
	}
	switch strings.ToLower(c.Notifications.Permission) {
	case "", "granted", "denied":
	default:
		return fmt.Errorf("invalid notification permission: %s", c.Notifications.Permission)
	}
	switch strings.ToLower(c.Notifications.Urgency) {
	case "low", "normal", "critical":
	default:
		return fmt.Errorf("invalid notification urgency: %s", c.Notifications.Urgency)
	}

	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}

// apiKeyFromEnv falls back to the environment variables the Gemini SDKs read.
func apiKeyFromEnv() string {
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}
