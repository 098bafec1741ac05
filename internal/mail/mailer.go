// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package mail delivers password reset codes over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	texttemplate "text/template"

	"github.com/jordan-wright/email"
	"github.com/samber/oops"

	"github.com/leafguard/leafguard/internal/auth"
)

// ResetSubject is the subject line of reset code emails.
const ResetSubject = "LeafGuard Password Reset Request"

// DefaultFromName is the display name reset emails are sent from.
const DefaultFromName = "LeafGuard Support"

//go:embed templates/*
var templatesFS embed.FS

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/reset_code.html"))
	textTemplate = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/reset_code.txt"))
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address. Empty means Username.
	From     string
	FromName string
}

// Enabled reports whether enough settings are present to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && c.Port > 0
}

type sendFunc func(e *email.Email, addr string, a smtp.Auth) error

// SMTPMailer sends reset codes through an SMTP relay.
type SMTPMailer struct {
	cfg  Config
	auth smtp.Auth
	send sendFunc
}

var _ auth.ResetMailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host and port are required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp sender address is required")
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}

	var a smtp.Auth
	if cfg.Username != "" {
		a = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		cfg:  cfg,
		auth: a,
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}, nil
}

type resetView struct {
	Name    string
	Code    string
	Minutes int
}

// Compose builds the reset email for msg without sending it.
func (m *SMTPMailer) Compose(msg auth.ResetMessage) (*email.Email, error) {
	view := resetView{Name: msg.Name, Code: msg.Code, Minutes: int(msg.ExpiresIn.Minutes())}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return nil, oops.Code("MAIL_RENDER_FAILED").With("format", "html").Wrap(err)
	}
	if err := textTemplate.Execute(&text, view); err != nil {
		return nil, oops.Code("MAIL_RENDER_FAILED").With("format", "text").Wrap(err)
	}

	e := email.NewEmail()
	e.From = m.cfg.FromName + " <" + m.cfg.From + ">"
	e.To = []string{msg.To}
	e.Subject = ResetSubject
	e.HTML = html.Bytes()
	e.Text = text.Bytes()
	return e, nil
}

// SendResetCode mails the reset code to msg.To.
func (m *SMTPMailer) SendResetCode(ctx context.Context, msg auth.ResetMessage) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}
	e, err := m.Compose(msg)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(e, addr, m.auth); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("smtp_addr", addr).
			Wrap(err)
	}
	return nil
}

// LogMailer stands in when SMTP is not configured. It logs the recipient and
// drops the message; the code itself is never logged.
type LogMailer struct {
	logger *slog.Logger
}

var _ auth.ResetMailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendResetCode records that a reset email would have been sent.
func (m *LogMailer) SendResetCode(ctx context.Context, msg auth.ResetMessage) error {
	m.logger.WarnContext(ctx, "smtp not configured, reset email dropped", "to", msg.To)
	return nil
}
