// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the credential and session-token lifecycle:
// opaque refresh sessions, single-use action tokens, and the services
// built on them.
//
// # Token Kinds
//
// Raw opaque tokens are returned to the caller exactly once. Only their
// SHA-256 fingerprint (see HashToken) reaches durable storage:
//   - Refresh sessions - managed by RefreshSessionManager
//   - Action tokens - managed by ActionTokenManager, one per Purpose
//
// Signed access tokens live in the bearer subpackage.
//
// # Services
//
// Service types coordinate the managers with the account directory:
//   - Service - login, refresh, logout, bearer authentication
//   - PasswordResetService - password reset flow
//   - EmailVerificationService - email verification flow
//   - CleanupJob - periodic sweep of stale rows
//   - LegacyHashBackfill - one-time fingerprinting of plaintext rows
//
// Services are created with New* constructors that validate dependencies.
// Every state change runs inside Transactor.InTransaction.
package auth
