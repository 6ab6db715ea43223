// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// DefaultBackfillBatchSize is the number of rows fingerprinted per transaction.
const DefaultBackfillBatchSize = 500

// BackfillConfig configures a LegacyHashBackfill.
type BackfillConfig struct {
	BatchSize int
	// ClearPlaintext removes the raw token once its fingerprint is stored.
	ClearPlaintext bool
}

// LegacyHashBackfill fingerprints refresh sessions stored before hashing
// was introduced. It is run explicitly, never at startup, and running it
// again after completion changes nothing.
type LegacyHashBackfill struct {
	repo   RefreshSessionRepository
	tx     Transactor
	cfg    BackfillConfig
	logger *slog.Logger
}

// NewLegacyHashBackfill creates a LegacyHashBackfill.
func NewLegacyHashBackfill(repo RefreshSessionRepository, tx Transactor, cfg BackfillConfig, opts ...Option) (*LegacyHashBackfill, error) {
	if repo == nil {
		return nil, oops.Errorf("refresh session repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBackfillBatchSize
	}
	o := buildOptions(opts)
	return &LegacyHashBackfill{repo: repo, tx: tx, cfg: cfg, logger: o.logger}, nil
}

// Run fingerprints every session that has a plaintext token and no hash,
// one batch per transaction, and returns the number of rows updated.
func (b *LegacyHashBackfill) Run(ctx context.Context) (total int64, err error) {
	ctx, span := tracer.Start(ctx, "backfill.run")
	defer func() { endSpan(span, err) }()

	for {
		if err := ctx.Err(); err != nil {
			return total, oops.Code("BACKFILL_CANCELED").With("updated", total).Wrap(err)
		}

		var batch int
		err = b.tx.InTransaction(ctx, func(ctx context.Context) error {
			rows, err := b.repo.ListMissingHash(ctx, b.cfg.BatchSize)
			if err != nil {
				return oops.Code("BACKFILL_FAILED").With("operation", "list legacy sessions").Wrap(err)
			}
			for _, row := range rows {
				if err := b.repo.SetTokenHash(ctx, row.ID, HashToken(row.Token), b.cfg.ClearPlaintext); err != nil {
					return oops.Code("BACKFILL_FAILED").
						With("operation", "store fingerprint").
						With("session_id", row.ID.String()).
						Wrap(err)
				}
			}
			batch = len(rows)
			return nil
		})
		if err != nil {
			return total, err
		}

		total += int64(batch)
		backfillHashed.Add(float64(batch))
		if batch < b.cfg.BatchSize {
			break
		}
	}

	b.logger.InfoContext(ctx, "refresh token hash backfill finished",
		"updated", total, "plaintext_cleared", b.cfg.ClearPlaintext)
	return total, nil
}
