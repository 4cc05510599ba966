// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

// Package advice turns a raw weather reading into a short farming advisory using a
// generative language model.
package advice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/farmassist/farm-advisor/internal/almanac"
	"github.com/farmassist/farm-advisor/internal/weather"
)

const DefaultModel = "gemini-1.5-flash"

const promptTpl = `You are an agriculture assistant. Summarize this weather data for a small farmer.
- Keep it short (max 2 sentences).
- Use simple words.
- If rain is expected, warn to avoid irrigation.
- If temperature is high, suggest watering or shade.
{{- if .Language}}
- Answer in {{.Language}}.
{{- end}}
{{- if .Almanac}}
Sunrise: {{.Almanac.Sunrise.Format "15:04"}}, sunset: {{.Almanac.Sunset.Format "15:04"}}, moon phase: {{.Almanac.MoonPhase}}.
{{- end}}
Weather Data: {{.Reading}}
`

var (
	ErrMissingAPIKey = errors.New("generative model API key is not set")
	ErrMissingModel  = errors.New("generative model name is not set")
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrNoReading     = errors.New("no weather reading given")
)

var prompt = template.Must(template.New("prompt").Parse(promptTpl))

// Model is the part of the GenAI client used to generate text. *genai.Models satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ConfigurationError is returned when the generator cannot be set up, most notably
// when the API key is missing. It is not recoverable by retrying.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid advice generator configuration: %s", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// GenerationError is returned when the model call fails, times out or returns no
// usable text.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate advice with %s: %s", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator produces advisories. It holds no state between calls.
type Generator struct {
	model       Model
	modelName   string
	language    string
	withAlmanac bool
	timeout     time.Duration
	baseURL     string
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel replaces the GenAI client with the given Model.
func WithModel(model Model) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithLanguage asks the model to answer in the given language, e.g. "Hindi".
func WithLanguage(language string) Option {
	return func(g *Generator) {
		g.language = language
	}
}

// WithAlmanac adds sunrise, sunset and moon phase of the reading's location to the prompt.
func WithAlmanac(enabled bool) Option {
	return func(g *Generator) {
		g.withAlmanac = enabled
	}
}

// WithTimeout bounds a single model call. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		g.timeout = timeout
	}
}

// WithBaseURL points the GenAI client to a different API endpoint, e.g. a proxy.
func WithBaseURL(baseURL string) Option {
	return func(g *Generator) {
		g.baseURL = baseURL
	}
}

// New returns a Generator for the given model. A missing API key or model name is
// reported as *ConfigurationError.
func New(ctx context.Context, apiKey, modelName string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Err: ErrMissingAPIKey}
	}
	if modelName == "" {
		return nil, &ConfigurationError{Err: ErrMissingModel}
	}

	gen := &Generator{modelName: modelName}
	for _, opt := range opts {
		opt(gen)
	}
	if gen.model != nil {
		return gen, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: gen.baseURL,
		},
	})
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to create GenAI client: %w", err)}
	}
	gen.model = client.Models

	return gen, nil
}

// Name returns the model name used by the generator.
func (g *Generator) Name() string {
	return fmt.Sprintf("genai:%s", g.modelName)
}

// Summarize returns the advisory for the given reading. The model output is returned
// exactly as received. Exactly one model call is made; there are no retries.
func (g *Generator) Summarize(ctx context.Context, reading *weather.Reading) (string, error) {
	if reading == nil {
		return "", &GenerationError{Model: g.modelName, Err: ErrNoReading}
	}
	text, err := g.Prompt(reading)
	if err != nil {
		return "", &GenerationError{Model: g.modelName, Err: err}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	res, err := g.model.GenerateContent(ctx, g.modelName, genai.Text(text), nil)
	if err != nil {
		return "", &GenerationError{Model: g.modelName, Err: err}
	}
	if res == nil {
		return "", &GenerationError{Model: g.modelName, Err: ErrEmptyResponse}
	}
	advisory := res.Text()
	if strings.TrimSpace(advisory) == "" {
		return "", &GenerationError{Model: g.modelName, Err: ErrEmptyResponse}
	}

	return advisory, nil
}

// Prompt renders the prompt that is sent to the model for the given reading.
func (g *Generator) Prompt(reading *weather.Reading) (string, error) {
	data := struct {
		Language string
		Almanac  *almanac.Almanac
		Reading  string
	}{
		Language: g.language,
		Reading:  reading.String(),
	}
	if g.withAlmanac {
		fetchedAt := reading.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now()
		}
		alm := almanac.For(reading.Coordinates, fetchedAt.Local())
		data.Almanac = &alm
	}

	buf := bytes.NewBuffer(nil)
	if err := prompt.Execute(buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
