// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authtokens/internal/auth"
)

const defaultBackfillBatch = 500

func newBackfillCmd(deps *Deps) *cobra.Command {
	var (
		batchSize      int
		clearPlaintext bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fingerprint refresh sessions stored before hashing",
		Long: `Compute the token fingerprint of every refresh session that only has a
plaintext token. Safe to run repeatedly; a completed backfill changes nothing.
With --clear-plaintext the stored plaintext is removed once hashed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			a, err := deps.AppOpener(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			backfill, err := a.Backfill(auth.BackfillConfig{
				BatchSize:      batchSize,
				ClearPlaintext: clearPlaintext,
			})
			if err != nil {
				return err
			}
			n, err := backfill.Run(cmd.Context())
			if err != nil {
				cmd.Printf("Backfilled %d sessions before failing\n", n)
				return err
			}
			cmd.Printf("Backfilled %d sessions\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", defaultBackfillBatch, "rows per transaction")
	cmd.Flags().BoolVar(&clearPlaintext, "clear-plaintext", false, "remove plaintext tokens after hashing")

	return cmd
}
