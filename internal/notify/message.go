// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EmailJob is the message handed to the mail service.
type EmailJob struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func newEmailJob(to, subject, body string, now time.Time) EmailJob {
	return EmailJob{
		ID:        ulid.Make().String(),
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: now.UTC(),
	}
}
