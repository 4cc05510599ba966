// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

// Package webhook pushes advisories as JSON to an HTTP endpoint, e.g. a push gateway
// that forwards them to a phone.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/farmassist/farm-advisor/internal/http"
	"github.com/farmassist/farm-advisor/internal/notify"
)

const name = "webhook"

type payload struct {
	App     string    `json:"app"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

type Webhook struct {
	*notify.PermissionState

	http    *http.Client
	url     string
	appName string
	title   string
}

func New(client *http.Client, url, appName, title string, permission notify.Permission) (*Webhook, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	return &Webhook{
		PermissionState: notify.NewPermissionState(permission),
		http:            client,
		url:             url,
		appName:         appName,
		title:           title,
	}, nil
}

func (w *Webhook) Name() string {
	return name
}

// RequestPermission grants permission. Configuring a webhook is the user's consent.
func (w *Webhook) RequestPermission(context.Context) (notify.Permission, error) {
	return w.Resolve(func() notify.Permission { return notify.PermissionGranted }), nil
}

func (w *Webhook) Notify(ctx context.Context, text string) error {
	if w.Permission() != notify.PermissionGranted {
		return notify.ErrPermissionDenied
	}
	body := payload{
		App:     w.appName,
		Title:   w.title,
		Message: text,
		SentAt:  time.Now(),
	}
	code, err := w.http.PostJSON(ctx, w.url, body, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook notification: %w", err)
	}
	if code < 200 || code > 299 {
		return fmt.Errorf("webhook returned non-positive response code: %d", code)
	}
	return nil
}
