// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leafguard/leafguard/internal/store"
)

var (
	testPool      *pgxpool.Pool
	testContainer *postgres.PostgresContainer
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Postgres Suite")
}

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	testContainer, err = postgres.Run(ctx,
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

	connStr, err := testContainer.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	testPool, err = store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 5})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if testPool != nil {
		testPool.Close()
	}
	if testContainer != nil {
		Expect(testContainer.Terminate(context.Background())).To(Succeed())
	}
})
