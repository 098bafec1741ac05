// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leafguard/leafguard/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("leafguard_test"),
			postgres.WithUsername("leafguard"),
			postgres.WithPassword("leafguard"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("runs the full up, status, down and force cycle", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Pending).To(Equal([]uint{1, 2, 3}))

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "re-running Up is a no-op")

		st, err = migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(uint(3)))
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).To(BeEmpty())

		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Force(1)).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
	})

	It("connects with retry once the database is up", func() {
		pool, err := store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 3})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()
		Expect(pool.Ping(ctx)).To(Succeed())
	})
})
