// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leafguard/leafguard/pkg/errutil"
)

// Operation names used for spans, metrics and logs.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
	OpChangePassword = "change_password"
)

// Client-facing failure messages.
const (
	MsgEmailRequired         = "Email is required"
	MsgNameRequired          = "Name is required"
	MsgPasswordRequired      = "Password is required"
	MsgUserExists            = "User already exists"
	MsgInvalidLoginFormat    = "Invalid email or password format"
	MsgUserNotFound          = "User not found"
	MsgInvalidCredentials    = "Invalid credentials"
	MsgValidEmailRequired    = "A valid email is required"
	MsgEmailNotFound         = "User with this email not found"
	MsgResetFieldsRequired   = "Token and new password are required"
	MsgResetCodeInvalid      = "Token is invalid or has expired"
	MsgUserGone              = "User no longer exists"
	MsgUnauthorized          = "Unauthorized"
	MsgChangeFieldsRequired  = "Current and new passwords are required"
	MsgCurrentPasswordWrong  = "Current password is incorrect"
	MsgRegisterServerError   = "Server Error during registration"
	MsgLoginServerError      = "Server Error during login"
	MsgForgotServerError     = "Server error during forgot password"
	MsgResetServerError      = "Server error during reset password"
	MsgChangeServerError     = "Server error during password change"
)

const tracerName = "github.com/leafguard/leafguard/internal/auth"

// maxResetCodeAttempts bounds redraws when a fresh code collides with
// another user's pending one.
const maxResetCodeAttempts = 5

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID ulid.ULID, email string) (string, time.Time, error)
}

var _ TokenIssuer = (*TokenService)(nil)

// ResetMessage is the content of a password reset email.
type ResetMessage struct {
	To        string
	Name      string
	Code      string
	ExpiresIn time.Duration
}

// ResetMailer delivers reset codes out of band.
type ResetMailer interface {
	SendResetCode(ctx context.Context, msg ResetMessage) error
}

// Recorder observes completed flow operations.
type Recorder interface {
	ObserveAuth(operation, outcome string, elapsed time.Duration)
}

// PublicUser is the user view safe to return to clients.
type PublicUser struct {
	ID    ulid.ULID
	Name  string
	Email string
}

// RegisterInput holds the registration fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}

// Service implements the credential flows: register, login, forgot, reset
// and change password.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	codes    *ResetCodeGenerator
	mailer   ResetMailer
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for server-side failure reports.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) ServiceOption {
	return func(s *Service) { s.recorder = recorder }
}

// NewService creates a Service. All dependencies are required.
func NewService(
	users UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	codes *ResetCodeGenerator,
	mailer ResetMailer,
	opts ...ServiceOption,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if codes == nil {
		return nil, oops.Errorf("reset code generator is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("reset mailer is required")
	}

	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		codes:  codes,
		mailer: mailer,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Errorf("logger cannot be nil")
	}
	if s.now == nil {
		return nil, oops.Errorf("clock cannot be nil")
	}
	if s.tracer == nil {
		return nil, oops.Errorf("tracer cannot be nil")
	}
	return s, nil
}

// begin opens a span for op. The returned func must be deferred with the
// operation's error; it closes the span, records metrics and logs internal
// failures.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "auth."+op)
	start := time.Now()
	return ctx, func(errp *error) {
		outcome := "success"
		if err := *errp; err != nil {
			kind := KindOf(err)
			outcome = kind.String()
			span.SetAttributes(attribute.String("auth.outcome", outcome))
			if kind == KindInternal {
				span.RecordError(err)
				span.SetStatus(codes.Error, "internal failure")
				errutil.LogError(ctx, s.logger, "auth operation failed", err, "operation", op)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		if s.recorder != nil {
			s.recorder.ObserveAuth(op, outcome, time.Since(start))
		}
		span.End()
	}
}

// Register creates an account. Email is matched exactly as given.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ PublicUser, err error) {
	ctx, end := s.begin(ctx, OpRegister)
	defer end(&err)

	if fe := validate(
		required("email", in.Email, MsgEmailRequired),
		required("name", in.Name, MsgNameRequired),
		required("password", in.Password, MsgPasswordRequired),
	); fe != nil {
		return PublicUser{}, validationError(fe)
	}

	_, err = s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return PublicUser{}, NewError(KindConflict, MsgUserExists)
	case !errors.Is(err, ErrNotFound):
		return PublicUser{}, internalError("GetByEmail", MsgRegisterServerError, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return PublicUser{}, internalError("Hash", MsgRegisterServerError, err)
	}

	user, err := NewUser(in.Name, in.Email, hash)
	if err != nil {
		return PublicUser{}, internalError("NewUser", MsgRegisterServerError, err)
	}

	if err = s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return PublicUser{}, NewError(KindConflict, MsgUserExists)
		}
		return PublicUser{}, internalError("Create", MsgRegisterServerError, err)
	}

	return PublicUser{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (_ LoginResult, err error) {
	ctx, end := s.begin(ctx, OpLogin)
	defer end(&err)

	if fe := validate(
		required("email", email, MsgInvalidLoginFormat),
		required("password", password, MsgInvalidLoginFormat),
	); fe != nil {
		return LoginResult{}, validationError(fe)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, NewError(KindNotFound, MsgUserNotFound)
		}
		return LoginResult{}, internalError("GetByEmail", MsgLoginServerError, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return LoginResult{}, NewError(KindAuthentication, MsgInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return LoginResult{}, internalError("Issue", MsgLoginServerError, err)
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      PublicUser{ID: user.ID, Name: user.Name, Email: user.Email},
	}, nil
}

// upgradeHash re-hashes a legacy password. Failures are logged, never returned.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "legacy password hash upgrade failed",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	s.logger.InfoContext(ctx, "upgraded legacy password hash", "user_id", user.ID.String())
}

// ForgotPassword issues a reset code for the account and mails it.
// The code is persisted before mailing and stays valid if mailing fails.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, end := s.begin(ctx, OpForgotPassword)
	defer end(&err)

	if fe := validate(required("email", email, MsgValidEmailRequired)); fe != nil {
		return validationError(fe)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewError(KindNotFound, MsgEmailNotFound)
		}
		return internalError("GetByEmail", MsgForgotServerError, err)
	}

	code, err := s.issueResetCode(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewError(KindNotFound, MsgEmailNotFound)
		}
		return internalError("SetResetCode", MsgForgotServerError, err)
	}

	msg := ResetMessage{
		To:        user.Email,
		Name:      user.Name,
		Code:      code.Code,
		ExpiresIn: s.codes.TTL(),
	}
	if err = s.mailer.SendResetCode(ctx, msg); err != nil {
		return internalError("SendResetCode", MsgForgotServerError, err)
	}

	s.logger.InfoContext(ctx, "reset code issued", "user_id", user.ID.String())
	return nil
}

// issueResetCode generates and stores a code for id, drawing again while
// another user holds the same unexpired digest.
func (s *Service) issueResetCode(ctx context.Context, id ulid.ULID) (ResetCode, error) {
	var err error
	for attempt := 1; attempt <= maxResetCodeAttempts; attempt++ {
		now := s.now()
		var code ResetCode
		code, err = s.codes.Generate(now)
		if err != nil {
			return ResetCode{}, err
		}
		err = s.users.SetResetCode(ctx, id, code.Hash, code.ExpiresAt, now)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrResetCodeTaken) {
			return ResetCode{}, err
		}
		s.logger.DebugContext(ctx, "reset code collided, drawing again",
			"user_id", id.String(), "attempt", attempt)
	}
	return ResetCode{}, oops.Code("RESET_CODE_EXHAUSTED").
		With("attempts", maxResetCodeAttempts).
		Wrap(err)
}

// ResetPassword consumes a reset code and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) (err error) {
	ctx, end := s.begin(ctx, OpResetPassword)
	defer end(&err)

	if fe := validate(
		required("token", code, MsgResetFieldsRequired),
		required("newPassword", newPassword, MsgResetFieldsRequired),
	); fe != nil {
		return validationError(fe)
	}

	now := s.now()
	digest := HashResetCode(code)

	user, err := s.users.GetByResetCode(ctx, digest, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewError(KindValidation, MsgResetCodeInvalid)
		}
		return internalError("GetByResetCode", MsgResetServerError, err)
	}

	if user.ResetCodeHash == nil || user.ResetCodeExpiresAt == nil ||
		!s.codes.Verify(code, *user.ResetCodeHash, *user.ResetCodeExpiresAt, now) {
		return NewError(KindValidation, MsgResetCodeInvalid)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("Hash", MsgResetServerError, err)
	}

	if err = s.users.ResetPassword(ctx, user.ID, digest, hash, now); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return NewError(KindNotFound, MsgUserGone)
		case errors.Is(err, ErrResetCodeConsumed):
			return NewError(KindValidation, MsgResetCodeInvalid)
		default:
			return internalError("ResetPassword", MsgResetServerError, err)
		}
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

// ChangePassword replaces the password of the identity attached to ctx.
// Previously issued tokens stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) (err error) {
	ctx, end := s.begin(ctx, OpChangePassword)
	defer end(&err)

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return NewError(KindAuthentication, MsgUnauthorized)
	}

	if fe := validate(
		required("currentPassword", currentPassword, MsgChangeFieldsRequired),
		required("newPassword", newPassword, MsgChangeFieldsRequired),
	); fe != nil {
		return validationError(fe)
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewError(KindNotFound, MsgUserNotFound)
		}
		return internalError("GetByID", MsgChangeServerError, err)
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return NewError(KindAuthentication, MsgCurrentPasswordWrong)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("Hash", MsgChangeServerError, err)
	}

	if err = s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewError(KindNotFound, MsgUserGone)
		}
		return internalError("UpdatePassword", MsgChangeServerError, err)
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return nil
}
