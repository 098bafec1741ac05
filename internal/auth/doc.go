// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

// Package auth provides the LeafGuard credential core.
//
// # Primitives
//
//   - Argon2idHasher - salted password hashing with constant-time verification
//   - ResetCodeGenerator - 6-digit reset codes stored only as SHA-256 digests
//   - TokenService - HS256 bearer tokens with a fixed signing secret
//   - Gate - Authorization header parsing and token verification
//
// # Service
//
// Service coordinates the credential flows (Register, Login, ForgotPassword,
// ResetPassword, ChangePassword) over a UserRepository. Every flow validates
// its input before touching the store. Failures are classified by Kind and
// carry a client-safe message readable with PublicMessage; unexpected
// dependency failures are KindInternal and are logged server-side.
//
// Services are created with NewService, which validates dependencies.
package auth
