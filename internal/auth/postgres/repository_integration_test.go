// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/postgres"
)

var _ = Describe("PostgreSQL repositories", func() {
	var (
		ctx      context.Context
		accounts *postgres.AccountRepository
		sessions *postgres.RefreshSessionRepository
		actions  *postgres.ActionTokenRepository
		tx       *postgres.Transactor
		account  *auth.AccountRef
	)

	BeforeEach(func() {
		ctx = context.Background()
		accounts = postgres.NewAccountRepository(testPool)
		sessions = postgres.NewRefreshSessionRepository(testPool)
		actions = postgres.NewActionTokenRepository(testPool)
		tx = postgres.NewTransactor(testPool)

		name := "user_" + ulid.Make().String()
		account = &auth.AccountRef{
			Username:     name,
			Email:        name + "@Example.com",
			PasswordHash: "$argon2id$placeholder",
			Enabled:      true,
			Roles:        []string{"user", "admin"},
		}
		Expect(accounts.Create(ctx, account)).To(Succeed())
		DeferCleanup(func() {
			_, _ = testPool.Exec(context.Background(), `DELETE FROM accounts WHERE id = $1`, account.ID)
		})
	})

	Describe("AccountRepository", func() {
		It("finds accounts by case-insensitive email", func() {
			got, err := accounts.GetByEmail(ctx, account.Username+"@example.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(account.ID))
			Expect(got.Roles).To(Equal([]string{"admin", "user"}))
		})

		It("rejects duplicate usernames", func() {
			dup := &auth.AccountRef{Username: account.Username, Email: "other@example.com", PasswordHash: "x"}
			err := accounts.Create(ctx, dup)
			Expect(err).To(MatchError(auth.ErrConflict))
		})

		It("updates the password and enabled flag", func() {
			Expect(accounts.UpdatePassword(ctx, account.ID, "new-hash")).To(Succeed())
			Expect(accounts.SetEnabled(ctx, account.ID, false)).To(Succeed())

			got, err := accounts.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("new-hash"))
			Expect(got.Enabled).To(BeFalse())
		})
	})

	Describe("RefreshSessionManager on PostgreSQL", func() {
		var manager *auth.RefreshSessionManager

		BeforeEach(func() {
			var err error
			manager, err = auth.NewRefreshSessionManager(sessions, tx, auth.RefreshConfig{TTL: time.Hour, MaxSessionsPerAccount: 3})
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates, validates, and rotates", func() {
			issued, err := manager.Create(ctx, account)
			Expect(err).NotTo(HaveOccurred())

			owner, err := manager.Validate(ctx, issued.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(owner.ID).To(Equal(account.ID))

			rotation, err := manager.Rotate(ctx, issued.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(rotation.Account.Username).To(Equal(account.Username))

			_, err = manager.Validate(ctx, issued.Token)
			Expect(err).To(MatchError(auth.ErrUnauthorized))
			_, err = manager.Validate(ctx, rotation.Refresh.Token)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets exactly one concurrent rotation win", func() {
			issued, err := manager.Create(ctx, account)
			Expect(err).NotTo(HaveOccurred())

			const workers = 10
			start := make(chan struct{})
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					_, err := manager.Rotate(context.Background(), issued.Token)
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
						return
					}
					Expect(err).To(MatchError(auth.ErrUnauthorized))
				}()
			}
			close(start)
			wg.Wait()

			Expect(wins).To(Equal(1))
		})

		It("keeps at most the configured number of sessions", func() {
			for range 5 {
				_, err := manager.Create(ctx, account)
				Expect(err).NotTo(HaveOccurred())
			}
			ids, err := sessions.ListIDsByAccountOldestFirst(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(3))
		})

		It("holds the cap under concurrent logins and rotations", func() {
			seed, err := manager.Create(ctx, account)
			Expect(err).NotTo(HaveOccurred())

			const workers = 12
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					if i%4 == 0 {
						_, err := manager.Rotate(context.Background(), seed.Token)
						if err != nil {
							Expect(err).To(MatchError(auth.ErrUnauthorized))
						}
						return
					}
					_, err := manager.Create(context.Background(), account)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			close(start)
			wg.Wait()

			ids, err := sessions.ListIDsByAccountOldestFirst(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(3))
		})

		It("fingerprints legacy rows", func() {
			legacy := fmt.Sprintf("legacy-%s", ulid.Make())
			_, err := testPool.Exec(ctx, `
				INSERT INTO refresh_sessions (id, account_id, token, expires_at, created_at)
				VALUES ($1, $2, $3, now() + interval '1 hour', now())
			`, ulid.Make().String(), account.ID, legacy)
			Expect(err).NotTo(HaveOccurred())

			backfill, err := auth.NewLegacyHashBackfill(sessions, tx, auth.BackfillConfig{BatchSize: 50, ClearPlaintext: true})
			Expect(err).NotTo(HaveOccurred())
			n, err := backfill.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))

			owner, err := manager.Validate(ctx, legacy)
			Expect(err).NotTo(HaveOccurred())
			Expect(owner.ID).To(Equal(account.ID))

			var remaining int
			Expect(testPool.QueryRow(ctx,
				`SELECT count(*) FROM refresh_sessions WHERE account_id = $1 AND token IS NOT NULL`, account.ID,
			).Scan(&remaining)).To(Succeed())
			Expect(remaining).To(BeZero())
		})
	})

	Describe("ActionTokenManager on PostgreSQL", func() {
		var manager *auth.ActionTokenManager

		BeforeEach(func() {
			var err error
			manager, err = auth.NewActionTokenManager(auth.PurposePasswordReset, actions, tx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("consumes once and rejects replays", func() {
			raw, err := manager.Issue(ctx, account.ID, 15*time.Minute)
			Expect(err).NotTo(HaveOccurred())

			consumed, err := manager.Consume(ctx, raw, func(ctx context.Context, tok *auth.ActionToken) error {
				return accounts.UpdatePassword(ctx, tok.AccountID, "reset-hash")
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(consumed.AccountID).To(Equal(account.ID))

			_, err = manager.Consume(ctx, raw, nil)
			Expect(err).To(MatchError(auth.ErrAlreadyUsed))

			got, err := accounts.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("reset-hash"))
		})

		It("rolls back the token when the effect fails", func() {
			raw, err := manager.Issue(ctx, account.ID, 15*time.Minute)
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Consume(ctx, raw, func(ctx context.Context, _ *auth.ActionToken) error {
				return accounts.UpdatePassword(ctx, -1, "nope")
			})
			Expect(err).To(HaveOccurred())

			_, err = manager.Lookup(ctx, raw)
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes expired tokens in cleanup", func() {
			_, err := testPool.Exec(ctx, `
				INSERT INTO action_tokens (id, purpose, account_id, token_hash, expires_at, created_at)
				VALUES ($1, 'email_verification', $2, $3, now() - interval '1 minute', now() - interval '1 day')
			`, ulid.Make().String(), account.ID, auth.HashToken(ulid.Make().String()))
			Expect(err).NotTo(HaveOccurred())

			job, err := auth.NewCleanupJob(sessions, actions)
			Expect(err).NotTo(HaveOccurred())
			report, err := job.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ActionTokensExpired).To(BeNumerically(">=", 1))
		})
	})
})
