// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

// Package desktop shows advisories as freedesktop.org notifications on the D-Bus
// session bus.
package desktop

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/farmassist/farm-advisor/internal/notify"
)

const (
	name = "desktop"

	busName       = "org.freedesktop.Notifications"
	busPath       = "/org/freedesktop/Notifications"
	methodNotify  = busName + ".Notify"
	methodInfo    = busName + ".GetServerInformation"
	expireDefault = int32(-1)
	appIcon       = "weather-showers-scattered"
)

var urgencies = map[string]byte{
	"low":      0,
	"normal":   1,
	"critical": 2,
}

// busObject is the part of a dbus.BusObject used by the notifier.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

type Desktop struct {
	*notify.PermissionState

	appName string
	summary string
	urgency byte

	mu     sync.Mutex
	conn   *dbus.Conn
	obj    busObject
	lastID uint32
}

// New returns a desktop notifier. The session bus is connected lazily on first use.
func New(appName, summary, urgency string, permission notify.Permission) (*Desktop, error) {
	level, ok := urgencies[strings.ToLower(urgency)]
	if !ok {
		return nil, fmt.Errorf("unsupported notification urgency: %s", urgency)
	}
	return &Desktop{
		PermissionState: notify.NewPermissionState(permission),
		appName:         appName,
		summary:         summary,
		urgency:         level,
	}, nil
}

func (d *Desktop) Name() string {
	return name
}

// RequestPermission probes the notification daemon. If one answers on the session bus,
// permission is granted, otherwise it is denied.
func (d *Desktop) RequestPermission(ctx context.Context) (notify.Permission, error) {
	var probeErr error
	perm := d.Resolve(func() notify.Permission {
		obj, err := d.object()
		if err != nil {
			probeErr = err
			return notify.PermissionDenied
		}
		call := obj.CallWithContext(ctx, methodInfo, 0)
		if call.Err != nil {
			probeErr = fmt.Errorf("notification daemon not available: %w", call.Err)
			return notify.PermissionDenied
		}
		return notify.PermissionGranted
	})
	return perm, probeErr
}

// Notify shows the text as notification body. A previous advisory notification that is
// still visible is replaced.
func (d *Desktop) Notify(ctx context.Context, text string) error {
	if d.Permission() != notify.PermissionGranted {
		return notify.ErrPermissionDenied
	}
	obj, err := d.object()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(d.urgency),
		"category": dbus.MakeVariant("weather"),
	}
	call := obj.CallWithContext(ctx, methodNotify, 0, d.appName, d.lastID, appIcon, d.summary, text,
		[]string{}, hints, expireDefault)
	if call.Err != nil {
		return fmt.Errorf("failed to send desktop notification: %w", call.Err)
	}
	var id uint32
	if err = call.Store(&id); err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	d.lastID = id

	return nil
}

// Close closes the session bus connection if one was opened.
func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.obj = nil
	return err
}

func (d *Desktop) object() (busObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.obj != nil {
		return d.obj, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	d.conn = conn
	d.obj = conn.Object(busName, busPath)
	return d.obj, nil
}
