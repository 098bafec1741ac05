// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/pkg/errutil"
)

var testConfig = Config{
	Host:     "smtp.example.com",
	Port:     587,
	Username: "support@leafguard.app",
	Password: "app-password",
}

var testMessage = auth.ResetMessage{
	To:        "ada@example.com",
	Name:      "Ada",
	Code:      "042917",
	ExpiresIn: 15 * time.Minute,
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{Port: 587, Username: "a@b.c"}},
		{"missing port", Config{Host: "smtp.example.com", Username: "a@b.c"}},
		{"missing sender", Config{Host: "smtp.example.com", Port: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPMailer(tt.cfg)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
		})
	}
}

func TestSMTPMailer_Compose(t *testing.T) {
	m, err := NewSMTPMailer(testConfig)
	require.NoError(t, err)

	e, err := m.Compose(testMessage)
	require.NoError(t, err)

	assert.Equal(t, "LeafGuard Support <support@leafguard.app>", e.From)
	assert.Equal(t, []string{"ada@example.com"}, e.To)
	assert.Equal(t, ResetSubject, e.Subject)
	assert.Contains(t, string(e.HTML), "042917")
	assert.Contains(t, string(e.HTML), "15 minutes")
	assert.Contains(t, string(e.Text), "042917")
}

func TestSMTPMailer_Compose_EscapesName(t *testing.T) {
	m, err := NewSMTPMailer(testConfig)
	require.NoError(t, err)

	msg := testMessage
	msg.Name = "<script>alert(1)</script>"
	e, err := m.Compose(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(e.HTML), "<script>")
}

func TestSMTPMailer_SendResetCode(t *testing.T) {
	m, err := NewSMTPMailer(testConfig)
	require.NoError(t, err)

	var gotAddr string
	var gotAuth smtp.Auth
	var gotEmail *email.Email
	m.send = func(e *email.Email, addr string, a smtp.Auth) error {
		gotEmail, gotAddr, gotAuth = e, addr, a
		return nil
	}

	require.NoError(t, m.SendResetCode(context.Background(), testMessage))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	require.NotNil(t, gotEmail)
	assert.Equal(t, []string{"ada@example.com"}, gotEmail.To)
}

func TestSMTPMailer_SendFailure(t *testing.T) {
	m, err := NewSMTPMailer(testConfig)
	require.NoError(t, err)
	m.send = func(*email.Email, string, smtp.Auth) error { return errors.New("421 service not available") }

	err = m.SendResetCode(context.Background(), testMessage)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_SEND_FAILED")
	errutil.AssertErrorContext(t, err, "smtp_addr", "smtp.example.com:587")
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m, err := NewSMTPMailer(testConfig)
	require.NoError(t, err)
	called := false
	m.send = func(*email.Email, string, smtp.Auth) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, m.SendResetCode(ctx, testMessage))
	assert.False(t, called)
}

func TestLogMailer_NeverLogsCode(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, m.SendResetCode(context.Background(), testMessage))
	assert.Contains(t, buf.String(), "ada@example.com")
	assert.NotContains(t, buf.String(), testMessage.Code)
}
