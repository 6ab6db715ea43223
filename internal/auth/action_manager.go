// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authtokens/pkg/errutil"
)

// Outcome is a stable reason code for redirect-style consumption flows.
type Outcome string

// Consumption outcomes.
const (
	OutcomeOK            Outcome = "OK"
	OutcomeInvalidToken  Outcome = "INVALID_TOKEN"
	OutcomeTokenExpired  Outcome = "TOKEN_EXPIRED"
	OutcomeAlreadyUsed   Outcome = "TOKEN_ALREADY_USED"
	OutcomeInternalError Outcome = "INTERNAL_ERROR"
)

// OutcomeOf maps a Consume error to its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeInvalidToken
	case errors.Is(err, ErrExpired):
		return OutcomeTokenExpired
	case errors.Is(err, ErrAlreadyUsed):
		return OutcomeAlreadyUsed
	default:
		return OutcomeInternalError
	}
}

// ApplyFunc performs the purpose-specific effect of a consumed token. It
// runs inside the consuming transaction; an error rolls the consumption back.
type ApplyFunc func(ctx context.Context, token *ActionToken) error

// ActionTokenManager is the single-use token engine for one Purpose.
type ActionTokenManager struct {
	purpose Purpose
	repo    ActionTokenRepository
	tx      Transactor
	logger  *slog.Logger
	now     func() time.Time
}

// NewActionTokenManager creates an ActionTokenManager for purpose.
func NewActionTokenManager(purpose Purpose, repo ActionTokenRepository, tx Transactor, opts ...Option) (*ActionTokenManager, error) {
	if !purpose.Valid() {
		return nil, oops.Code("ACTION_TOKEN_INVALID_PURPOSE").With("purpose", string(purpose)).Errorf("unknown token purpose")
	}
	if repo == nil {
		return nil, oops.Errorf("action token repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	o := buildOptions(opts)
	return &ActionTokenManager{
		purpose: purpose,
		repo:    repo,
		tx:      tx,
		logger:  o.logger.With("purpose", string(purpose)),
		now:     o.now,
	}, nil
}

// Purpose returns the purpose this manager serves.
func (m *ActionTokenManager) Purpose() Purpose {
	return m.purpose
}

// Issue deletes the account's unused tokens of this purpose and stores a new
// one. The raw token is returned for delivery and is not kept.
func (m *ActionTokenManager) Issue(ctx context.Context, accountID int64, ttl time.Duration) (raw string, err error) {
	ctx, span := tracer.Start(ctx, "action_token.issue", trace.WithAttributes(
		attribute.String("token.purpose", string(m.purpose)),
		attribute.Int64("account.id", accountID),
	))
	defer func() {
		endSpan(span, err)
		actionTokenOperations.WithLabelValues(string(m.purpose), "issue", recordResult(err)).Inc()
	}()

	if ttl <= 0 {
		return "", oops.Code("ACTION_TOKEN_ISSUE_FAILED").With("ttl", ttl).Errorf("ttl must be positive")
	}

	raw, hash, err := GenerateOpaqueToken(ActionTokenBytes)
	if err != nil {
		return "", oops.Code("ACTION_TOKEN_ISSUE_FAILED").With("operation", "generate token").Wrap(err)
	}

	now := m.now()
	token, err := NewActionToken(m.purpose, accountID, hash, now.Add(ttl), now)
	if err != nil {
		return "", err
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		superseded, err := m.repo.DeleteUnusedByAccount(ctx, m.purpose, accountID)
		if err != nil {
			return oops.Code("ACTION_TOKEN_ISSUE_FAILED").
				With("operation", "delete superseded tokens").
				With("account_id", accountID).
				Wrap(err)
		}
		if superseded > 0 {
			m.logger.DebugContext(ctx, "superseded unused tokens", "account_id", accountID, "count", superseded)
		}
		if err := m.repo.Create(ctx, token); err != nil {
			return oops.Code("ACTION_TOKEN_ISSUE_FAILED").
				With("operation", "persist token").
				With("account_id", accountID).
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Lookup returns the token for raw if it is still consumable, without
// changing it. Fails with ErrNotFound, ErrAlreadyUsed, or ErrExpired.
func (m *ActionTokenManager) Lookup(ctx context.Context, raw string) (*ActionToken, error) {
	if raw == "" {
		return nil, errTokenNotFound(m.purpose)
	}
	token, err := m.repo.GetByTokenHash(ctx, m.purpose, HashToken(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errTokenNotFound(m.purpose)
		}
		return nil, oops.Code("ACTION_TOKEN_LOOKUP_FAILED").With("purpose", string(m.purpose)).Wrap(err)
	}
	if token.IsUsed() {
		return nil, errTokenAlreadyUsed(m.purpose)
	}
	if token.IsExpiredAt(m.now()) {
		return nil, errTokenExpired(m.purpose)
	}
	return token, nil
}

// Consume marks the token for raw as used and runs apply, atomically.
//
// Fails with ErrNotFound for unknown tokens, ErrAlreadyUsed for replays, and
// ErrExpired for tokens past their TTL. An expired token is deleted as a side
// effect and that deletion is kept even though Consume fails.
func (m *ActionTokenManager) Consume(ctx context.Context, raw string, apply ApplyFunc) (consumed *ActionToken, err error) {
	ctx, span := tracer.Start(ctx, "action_token.consume",
		trace.WithAttributes(attribute.String("token.purpose", string(m.purpose))))
	defer func() {
		endSpan(span, err)
		actionTokenOperations.WithLabelValues(string(m.purpose), "consume", string(OutcomeOf(err))).Inc()
	}()

	if raw == "" {
		return nil, errTokenNotFound(m.purpose)
	}

	var expired bool
	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		token, err := m.repo.GetByTokenHashForUpdate(ctx, m.purpose, HashToken(raw))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return errTokenNotFound(m.purpose)
			}
			return oops.Code("ACTION_TOKEN_CONSUME_FAILED").With("operation", "lock token").Wrap(err)
		}

		if token.IsUsed() {
			return errTokenAlreadyUsed(m.purpose)
		}

		now := m.now()
		if token.IsExpiredAt(now) {
			expired = true
			if err := m.repo.Delete(ctx, token.ID); err != nil {
				return oops.Code("ACTION_TOKEN_CONSUME_FAILED").
					With("operation", "delete expired token").
					With("token_id", token.ID.String()).
					Wrap(err)
			}
			return nil
		}

		if err := m.repo.MarkUsed(ctx, token.ID, now); err != nil {
			return oops.Code("ACTION_TOKEN_CONSUME_FAILED").
				With("operation", "mark used").
				With("token_id", token.ID.String()).
				Wrap(err)
		}
		token.UsedAt = &now

		if apply != nil {
			if err := apply(ctx, token); err != nil {
				// Effect failures are faults, never token outcomes.
				return errEffectFailed(m.purpose, token.ID.String(), err)
			}
		}
		consumed = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, errTokenExpired(m.purpose)
	}

	span.SetAttributes(attribute.Int64("account.id", consumed.AccountID))
	return consumed, nil
}

// ConsumeOutcome is Consume for redirect-style flows. Unexpected failures are
// logged and reported as OutcomeInternalError.
func (m *ActionTokenManager) ConsumeOutcome(ctx context.Context, raw string, apply ApplyFunc) Outcome {
	_, err := m.Consume(ctx, raw, apply)
	outcome := OutcomeOf(err)
	if outcome == OutcomeInternalError {
		errutil.LogErrorContext(ctx, m.logger, "action token consumption failed", err)
	}
	return outcome
}

// DiscardUnused deletes the account's unused tokens of this purpose.
func (m *ActionTokenManager) DiscardUnused(ctx context.Context, accountID int64) (int64, error) {
	n, err := m.repo.DeleteUnusedByAccount(ctx, m.purpose, accountID)
	if err != nil {
		return 0, oops.Code("ACTION_TOKEN_DISCARD_FAILED").With("account_id", accountID).Wrap(err)
	}
	return n, nil
}
