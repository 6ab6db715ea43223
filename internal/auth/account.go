// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"
)

// AccountRef is the view of an account this package needs. Accounts are
// owned by the account domain and reached through AccountDirectory.
type AccountRef struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	// Enabled is false until the email address has been verified.
	Enabled   bool
	Roles     []string
	CreatedAt time.Time
}

// AccountDirectory is the account store consumed by the token services.
type AccountDirectory interface {
	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if the account does not exist.
	GetByID(ctx context.Context, id int64) (*AccountRef, error)

	// GetByUsername retrieves an account by exact username.
	// Returns ErrNotFound if the account does not exist.
	GetByUsername(ctx context.Context, username string) (*AccountRef, error)

	// GetByEmail retrieves an account by email, ignoring case.
	// Returns ErrNotFound if the account does not exist.
	GetByEmail(ctx context.Context, email string) (*AccountRef, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdatePassword replaces the stored password hash.
	// Returns ErrNotFound if the account does not exist.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// SetEnabled flips the verified flag.
	// Returns ErrNotFound if the account does not exist.
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// NormalizeEmail lowercases and trims an email address for lookups and
// rate-limit keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
