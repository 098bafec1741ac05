// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/gomega" //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leafguard/leafguard/internal/auth"
	authpg "github.com/leafguard/leafguard/internal/auth/postgres"
	"github.com/leafguard/leafguard/internal/store"
	"github.com/leafguard/leafguard/internal/web"
)

const testSecret = "integration-secret-0123456789abcdef"

// outbox captures reset emails so specs can read the plaintext code.
type outbox struct {
	mu   sync.Mutex
	sent []auth.ResetMessage
}

func (o *outbox) SendResetCode(_ context.Context, msg auth.ResetMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last() (auth.ResetMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return auth.ResetMessage{}, false
	}
	return o.sent[len(o.sent)-1], true
}

// testEnv holds all the resources needed for integration tests.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool
	server    *web.Server
	baseURL   string
	mail      *outbox
}

// setupTestEnv starts PostgreSQL, applies migrations and serves the API on a
// loopback port.
func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel, mail: &outbox{}}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("leafguard_test"),
		postgres.WithUsername("leafguard"),
		postgres.WithPassword("leafguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		env.cleanup()
		return nil, err
	}

	env.pool, err = store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 5})
	if err != nil {
		env.cleanup()
		return nil, err
	}

	if err := env.startServer(); err != nil {
		env.cleanup()
		return nil, err
	}
	return env, nil
}

func (e *testEnv) startServer() error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenService(testSecret, auth.WithTokenTTL(time.Hour))
	if err != nil {
		return err
	}
	gate, err := auth.NewGate(tokens)
	if err != nil {
		return err
	}
	// Cheap work factor keeps the suite fast.
	hasher := auth.NewArgon2idHasher(auth.HashParams{Time: 1, Memory: 8 * 1024, Threads: 1})

	svc, err := auth.NewService(
		authpg.NewUserRepository(e.pool),
		hasher,
		tokens,
		auth.NewResetCodeGenerator(15*time.Minute),
		e.mail,
		auth.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	e.server, err = web.NewServer("127.0.0.1:0", svc, gate, web.Options{
		BasePath: "/api",
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if _, err := e.server.Start(); err != nil {
		return err
	}
	e.baseURL = "http://" + e.server.Addr()
	return nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = e.server.Stop(stopCtx)
		stop()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// resetUsers empties the users table between specs.
func (e *testEnv) resetUsers() {
	_, err := e.pool.Exec(e.ctx, "TRUNCATE users")
	Expect(err).NotTo(HaveOccurred())
}

// apiResponse is the decoded JSON envelope plus the status code.
type apiResponse struct {
	Status  int
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Token   string `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	Data struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	} `json:"data"`
}

// call sends body as JSON to path and decodes the envelope.
func (e *testEnv) call(method, path string, body map[string]string, token string) apiResponse {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequestWithContext(e.ctx, method, e.baseURL+path, bytes.NewReader(raw))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
	var out apiResponse
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	out.Status = resp.StatusCode
	return out
}

func (e *testEnv) register(name, email, password string) apiResponse {
	return e.call(http.MethodPost, "/api/auth/register",
		map[string]string{"name": name, "email": email, "password": password}, "")
}

func (e *testEnv) login(email, password string) apiResponse {
	return e.call(http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, "")
}

// storedHash reads the persisted password hash for email.
func (e *testEnv) storedHash(email string) string {
	var hash string
	err := e.pool.QueryRow(e.ctx,
		"SELECT password_hash FROM users WHERE email = $1", email).Scan(&hash)
	Expect(err).NotTo(HaveOccurred())
	return hash
}
