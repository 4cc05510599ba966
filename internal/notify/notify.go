// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

// Package notify defines the notification capability the advisory scheduler pushes
// advisories through, together with the permission state that gates it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Permission is the tri-state notification permission owned by the platform.
type Permission int

const (
	PermissionNotRequested Permission = iota
	PermissionGranted
	PermissionDenied
)

// ErrPermissionDenied is returned by a Notifier that is asked to show a notification
// without being granted permission.
var ErrPermissionDenied = errors.New("notification permission denied")

// Notifier shows notifications on a platform.
type Notifier interface {
	Name() string
	// Permission returns the current permission state without asking the user.
	Permission() Permission
	// RequestPermission asks the platform for permission. It is idempotent.
	RequestPermission(ctx context.Context) (Permission, error)
	// Notify shows a notification with the given text.
	Notify(ctx context.Context, text string) error
}

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "not-yet-requested"
	}
}

// ParsePermission parses a configured permission. An empty string means the
// permission has not been requested yet.
func ParsePermission(val string) (Permission, error) {
	switch strings.ToLower(val) {
	case "", "not-yet-requested", "default":
		return PermissionNotRequested, nil
	case "granted":
		return PermissionGranted, nil
	case "denied":
		return PermissionDenied, nil
	default:
		return PermissionNotRequested, fmt.Errorf("unknown notification permission: %s", val)
	}
}

// PermissionState is a concurrency-safe holder for a Permission that notifier
// implementations embed.
type PermissionState struct {
	mu         sync.RWMutex
	permission Permission
}

// NewPermissionState returns a PermissionState initialized to p.
func NewPermissionState(p Permission) *PermissionState {
	return &PermissionState{permission: p}
}

func (s *PermissionState) Permission() Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permission
}

// Resolve stores the result of a permission request. A decided permission is never
// overwritten, so repeated requests keep the first answer.
func (s *PermissionState) Resolve(fn func() Permission) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permission != PermissionNotRequested {
		return s.permission
	}
	s.permission = fn()
	return s.permission
}

// Discard is a Notifier that never shows anything. Its permission is always denied.
type Discard struct{}

func (Discard) Name() string           { return "none" }
func (Discard) Permission() Permission { return PermissionDenied }

func (Discard) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (Discard) Notify(context.Context, string) error {
	return ErrPermissionDenied
}
