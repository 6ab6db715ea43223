// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/url"
	"time"

	"github.com/samber/oops"
)

var resetMailTemplate = template.Must(template.New("reset").Parse(
	`<div style="font-family:system-ui,sans-serif;line-height:1.5">
  <h2>Reset your password</h2>
  <p>Someone asked to reset the password for this account. If it was you, follow this link:</p>
  <p><a href="{{.Link}}">Choose a new password</a></p>
  <p>The link expires in {{.Minutes}} minutes. If you did not ask for this, ignore this message.</p>
</div>`))

var verifyMailTemplate = template.Must(template.New("verify").Parse(
	`<div style="font-family:system-ui,sans-serif;line-height:1.5">
  <h2>Confirm your email</h2>
  <p>To activate your account, follow this link:</p>
  <p><a href="{{.Link}}">Verify email</a></p>
  <p>If the button does not work, paste this address into your browser:<br><code>{{.Link}}</code></p>
  <p>The link expires in {{.Hours}} hours.</p>
</div>`))

type mailData struct {
	Link    string
	Minutes int
	Hours   int
}

func renderMail(tmpl *template.Template, link string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	data := mailData{Link: link, Minutes: int(ttl.Minutes()), Hours: int(ttl.Hours())}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", oops.Code("MAIL_RENDER_FAILED").With("template", tmpl.Name()).Wrap(err)
	}
	return buf.String(), nil
}

// withToken returns base with the token query parameter set.
func withToken(base, token string) (string, error) {
	return withQuery(base, "token", token)
}

func withQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", oops.Code("MAIL_LINK_INVALID").With("base", base).Wrap(err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// allowRequest applies the optional limiter. Limiter failures let the
// request through.
func allowRequest(ctx context.Context, limiter RequestLimiter, logger *slog.Logger, key string) bool {
	if limiter == nil {
		return true
	}
	ok, err := limiter.Allow(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
		return true
	}
	if !ok {
		logger.InfoContext(ctx, "mail request throttled")
	}
	return ok
}

// padDuration blocks until min has elapsed since start or ctx is done.
func padDuration(ctx context.Context, start time.Time, minimum time.Duration) {
	remaining := minimum - time.Since(start)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
