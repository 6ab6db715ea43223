// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authtest

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"time"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Mail is a message captured by Outbox.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Outbox is an auth.Notifier that records messages.
type Outbox struct {
	mu   sync.Mutex
	sent []Mail
	// Err, when set, is returned by Send after recording the message.
	Err error
}

// Send implements auth.Notifier.
func (o *Outbox) Send(_ context.Context, address, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Mail{To: address, Subject: subject, Body: body})
	return o.Err
}

// Sent returns the recorded messages.
func (o *Outbox) Sent() []Mail {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Mail(nil), o.sent...)
}

var tokenParam = regexp.MustCompile(`[?&]token=([A-Za-z0-9_%\-]+)`)

// TokenFrom extracts the raw token from the link in a mail body.
func TokenFrom(body string) string {
	m := tokenParam.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	raw, err := url.QueryUnescape(m[1])
	if err != nil {
		return ""
	}
	return raw
}
