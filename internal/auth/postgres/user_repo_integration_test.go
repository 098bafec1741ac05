// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewUserRepository(testPool)
		_, err := testPool.Exec(ctx, `DELETE FROM users`)
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(email string) *auth.User {
		user, err := auth.NewUser("Ada", email, "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		user.CreatedAt = user.CreatedAt.Truncate(time.Microsecond)
		user.UpdatedAt = user.CreatedAt
		Expect(repo.Create(ctx, user)).To(Succeed())
		return user
	}

	Describe("Create", func() {
		It("stores the user and enforces unique emails", func() {
			user := newUser("ada@example.com")

			stored, err := repo.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Email).To(Equal("ada@example.com"))
			Expect(stored.PasswordHash).To(Equal("$argon2id$hash"))
			Expect(stored.ResetCodeHash).To(BeNil())

			dup, err := auth.NewUser("Other", "ada@example.com", "h")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Create(ctx, dup)).To(MatchError(auth.ErrAlreadyExists))
		})

		It("treats email case as significant", func() {
			newUser("ada@example.com")
			newUser("ADA@example.com")

			_, err := repo.GetByEmail(ctx, "Ada@Example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("reset codes", func() {
		It("overwrites, finds unexpired codes and consumes once", func() {
			user := newUser("ada@example.com")
			now := time.Now()

			Expect(repo.SetResetCode(ctx, user.ID, "first", now.Add(15*time.Minute), now)).To(Succeed())
			Expect(repo.SetResetCode(ctx, user.ID, "second", now.Add(15*time.Minute), now)).To(Succeed())

			_, err := repo.GetByResetCode(ctx, "first", now)
			Expect(err).To(MatchError(auth.ErrNotFound))

			found, err := repo.GetByResetCode(ctx, "second", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(user.ID))

			_, err = repo.GetByResetCode(ctx, "second", now.Add(16*time.Minute))
			Expect(err).To(MatchError(auth.ErrNotFound))

			Expect(repo.ResetPassword(ctx, user.ID, "second", "$argon2id$new", now)).To(Succeed())
			Expect(repo.ResetPassword(ctx, user.ID, "second", "$argon2id$newer", now)).
				To(MatchError(auth.ErrResetCodeConsumed))

			stored, err := repo.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PasswordHash).To(Equal("$argon2id$new"))
			Expect(stored.ResetCodeHash).To(BeNil())
			Expect(stored.ResetCodeExpiresAt).To(BeNil())
		})

		It("lets exactly one concurrent reset win", func() {
			user := newUser("ada@example.com")
			now := time.Now()
			Expect(repo.SetResetCode(ctx, user.ID, "digest", now.Add(time.Minute), now)).To(Succeed())

			const racers = 5
			var wg sync.WaitGroup
			results := make(chan error, racers)
			for range racers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results <- repo.ResetPassword(ctx, user.ID, "digest", "$argon2id$raced", now)
				}()
			}
			wg.Wait()
			close(results)

			wins := 0
			for err := range results {
				if err == nil {
					wins++
					continue
				}
				Expect(err).To(MatchError(auth.ErrResetCodeConsumed))
			}
			Expect(wins).To(Equal(1))
		})

		It("refuses a digest another user holds unexpired", func() {
			ada := newUser("ada@example.com")
			bob := newUser("bob@example.com")
			now := time.Now()

			Expect(repo.SetResetCode(ctx, ada.ID, "digest", now.Add(15*time.Minute), now)).To(Succeed())
			Expect(repo.SetResetCode(ctx, bob.ID, "digest", now.Add(15*time.Minute), now)).
				To(MatchError(auth.ErrResetCodeTaken))

			found, err := repo.GetByResetCode(ctx, "digest", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(ada.ID))

			stored, err := repo.GetByID(ctx, bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ResetCodeHash).To(BeNil())
		})

		It("releases an expired digest to the next user", func() {
			ada := newUser("ada@example.com")
			bob := newUser("bob@example.com")
			now := time.Now()

			Expect(repo.SetResetCode(ctx, ada.ID, "digest", now.Add(-time.Minute), now.Add(-16*time.Minute))).To(Succeed())
			Expect(repo.SetResetCode(ctx, bob.ID, "digest", now.Add(15*time.Minute), now)).To(Succeed())

			found, err := repo.GetByResetCode(ctx, "digest", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(bob.ID))

			stored, err := repo.GetByID(ctx, ada.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ResetCodeHash).To(BeNil())
		})

		It("rejects a code that expired before the reset ran", func() {
			user := newUser("ada@example.com")
			now := time.Now()
			Expect(repo.SetResetCode(ctx, user.ID, "digest", now.Add(time.Minute), now)).To(Succeed())

			Expect(repo.ResetPassword(ctx, user.ID, "digest", "$argon2id$late", now.Add(time.Minute))).
				To(MatchError(auth.ErrResetCodeConsumed))

			stored, err := repo.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PasswordHash).NotTo(Equal("$argon2id$late"))
		})

		It("enforces one holder per digest in the schema", func() {
			ada := newUser("ada@example.com")
			bob := newUser("bob@example.com")
			expires := time.Now().Add(time.Hour)
			_, err := testPool.Exec(ctx,
				`UPDATE users SET reset_code_hash = 'dup', reset_code_expires_at = $2 WHERE id = $1`,
				ada.ID.String(), expires)
			Expect(err).NotTo(HaveOccurred())
			_, err = testPool.Exec(ctx,
				`UPDATE users SET reset_code_hash = 'dup', reset_code_expires_at = $2 WHERE id = $1`,
				bob.ID.String(), expires)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a hash without an expiry", func() {
			user := newUser("ada@example.com")
			_, err := testPool.Exec(ctx, `UPDATE users SET reset_code_hash = 'x' WHERE id = $1`, user.ID.String())
			Expect(err).To(HaveOccurred())
		})

		It("purges only expired pairs", func() {
			expired := newUser("old@example.com")
			fresh := newUser("new@example.com")
			now := time.Now()
			Expect(repo.SetResetCode(ctx, expired.ID, "a", now.Add(-time.Minute), now.Add(-2*time.Minute))).To(Succeed())
			Expect(repo.SetResetCode(ctx, fresh.ID, "b", now.Add(time.Minute), now)).To(Succeed())

			n, err := repo.PurgeExpiredResetCodes(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			_, err = repo.GetByResetCode(ctx, "b", now)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("UpdatePassword", func() {
		It("reports missing users", func() {
			user, err := auth.NewUser("Ghost", "ghost@example.com", "h")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.UpdatePassword(ctx, user.ID, "x")).To(MatchError(auth.ErrNotFound))
		})
	})
})
