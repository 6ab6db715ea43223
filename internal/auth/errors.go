// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is the single outward failure for refresh and bearer
	// credentials. The concrete reason is only logged.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyUsed is returned when a single-use token is presented again.
	ErrAlreadyUsed = errors.New("token already used")

	// ErrExpired is returned when a single-use token has outlived its TTL.
	ErrExpired = errors.New("token expired")

	// ErrConflict is returned on duplicate identities or token fingerprints.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned when a login does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled is returned when an unverified account tries to log in.
	ErrAccountDisabled = errors.New("account email not verified")
)

// Error codes for token failures.
const (
	CodeUnauthorized     = "AUTH_UNAUTHORIZED"
	CodeTokenNotFound    = "TOKEN_NOT_FOUND"
	CodeTokenAlreadyUsed = "TOKEN_ALREADY_USED"
	CodeTokenExpired     = "TOKEN_EXPIRED"
)

func errUnauthorized() error {
	return oops.Code(CodeUnauthorized).Wrap(ErrUnauthorized)
}

func errTokenNotFound(purpose Purpose) error {
	return oops.Code(CodeTokenNotFound).With("purpose", string(purpose)).Wrap(ErrNotFound)
}

func errTokenAlreadyUsed(purpose Purpose) error {
	return oops.Code(CodeTokenAlreadyUsed).With("purpose", string(purpose)).Wrap(ErrAlreadyUsed)
}

func errTokenExpired(purpose Purpose) error {
	return oops.Code(CodeTokenExpired).With("purpose", string(purpose)).Wrap(ErrExpired)
}

// EffectError carries the failure of a token's ApplyFunc. It has no Unwrap so
// a sentinel raised by the effect, such as ErrNotFound, never reads as a token
// outcome. Cause returns the original error.
type EffectError struct {
	Purpose Purpose
	Err     error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("%s effect failed: %v", e.Purpose, e.Err)
}

// Cause returns the error the effect returned.
func (e *EffectError) Cause() error { return e.Err }

// errEffectFailed codes an effect failure and lifts the cause's oops code and
// context into it so logs keep them.
func errEffectFailed(purpose Purpose, tokenID string, cause error) error {
	b := oops.Code("ACTION_TOKEN_APPLY_FAILED")
	if causeErr, ok := oops.AsOops(cause); ok {
		for k, v := range causeErr.Context() {
			b = b.With(k, v)
		}
		if code := causeErr.Code(); code != nil && code != "" {
			b = b.With("cause_code", code)
		}
	}
	return b.With("purpose", string(purpose)).
		With("token_id", tokenID).
		Wrap(&EffectError{Purpose: purpose, Err: cause})
}
