// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

//go:build integration

package integration

import (
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/leafguard/leafguard/internal/auth"
	"github.com/leafguard/leafguard/internal/web"
)

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

var _ = Describe("Credential flows over HTTP", func() {
	BeforeEach(func() {
		env.resetUsers()
	})

	Describe("registration", func() {
		It("creates the account and stores an argon2id hash", func() {
			resp := env.register("Ada", "ada@example.com", "s3cret!")

			Expect(resp.Status).To(Equal(http.StatusCreated))
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(Equal(web.MsgRegistered))
			Expect(resp.Data.FullName).To(Equal("Ada"))
			Expect(resp.Data.Email).To(Equal("ada@example.com"))
			Expect(resp.Data.ID).To(HaveLen(26))

			hash := env.storedHash("ada@example.com")
			Expect(hash).To(HavePrefix("$argon2id$"))
			Expect(hash).NotTo(ContainSubstring("s3cret!"))
		})

		It("rejects a duplicate email", func() {
			Expect(env.register("Ada", "ada@example.com", "s3cret!").Status).To(Equal(http.StatusCreated))

			resp := env.register("Other", "ada@example.com", "different")
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Error).To(Equal(auth.MsgUserExists))
		})

		It("reports the first missing field", func() {
			resp := env.register("", "", "")
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error).To(Equal(auth.MsgEmailRequired))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			Expect(env.register("Ada", "ada@example.com", "s3cret!").Status).To(Equal(http.StatusCreated))
		})

		It("issues a token that opens the protected route", func() {
			resp := env.login("ada@example.com", "s3cret!")
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(strings.Count(resp.Token, ".")).To(Equal(2))
			Expect(resp.User.Name).To(Equal("Ada"))

			changed := env.call(http.MethodPut, "/api/auth/change-password",
				map[string]string{"currentPassword": "s3cret!", "newPassword": "n3w-pass"}, resp.Token)
			Expect(changed.Status).To(Equal(http.StatusOK))
			Expect(changed.Message).To(Equal(web.MsgPasswordChange))

			Expect(env.login("ada@example.com", "s3cret!").Status).To(Equal(http.StatusUnauthorized))
			Expect(env.login("ada@example.com", "n3w-pass").Status).To(Equal(http.StatusOK))
		})

		It("distinguishes an unknown email from a wrong password", func() {
			unknown := env.login("nobody@example.com", "s3cret!")
			Expect(unknown.Status).To(Equal(http.StatusNotFound))
			Expect(unknown.Error).To(Equal(auth.MsgUserNotFound))

			wrong := env.login("ada@example.com", "nope")
			Expect(wrong.Status).To(Equal(http.StatusUnauthorized))
			Expect(wrong.Error).To(Equal(auth.MsgInvalidCredentials))
		})

		It("refuses the protected route without a token", func() {
			resp := env.call(http.MethodPut, "/api/auth/change-password",
				map[string]string{"currentPassword": "s3cret!", "newPassword": "x"}, "")
			Expect(resp.Status).To(Equal(http.StatusUnauthorized))
			Expect(resp.Error).To(Equal(auth.MsgNoToken))
		})
	})

	Describe("password reset", func() {
		BeforeEach(func() {
			Expect(env.register("Ada", "ada@example.com", "s3cret!").Status).To(Equal(http.StatusCreated))
		})

		It("mails a single-use code that sets a new password", func() {
			resp := env.call(http.MethodPost, "/api/auth/forgot-password",
				map[string]string{"email": "ada@example.com"}, "")
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Message).To(Equal(web.MsgResetSent))

			msg, ok := env.mail.last()
			Expect(ok).To(BeTrue())
			Expect(msg.To).To(Equal("ada@example.com"))
			Expect(msg.Code).To(MatchRegexp(`^[0-9]{6}$`))

			reset := env.call(http.MethodPost, "/api/auth/reset-password",
				map[string]string{"token": msg.Code, "newPassword": "fresh-pass"}, "")
			Expect(reset.Status).To(Equal(http.StatusOK))
			Expect(reset.Message).To(Equal(web.MsgPasswordReset))

			Expect(env.login("ada@example.com", "fresh-pass").Status).To(Equal(http.StatusOK))

			again := env.call(http.MethodPost, "/api/auth/reset-password",
				map[string]string{"token": msg.Code, "newPassword": "other-pass"}, "")
			Expect(again.Status).To(Equal(http.StatusBadRequest))
			Expect(again.Error).To(Equal(auth.MsgResetCodeInvalid))
		})

		It("invalidates the previous code when a new one is issued", func() {
			env.call(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ada@example.com"}, "")
			first, _ := env.mail.last()
			env.call(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ada@example.com"}, "")
			second, _ := env.mail.last()
			if second.Code == first.Code {
				Skip("reset codes collided")
			}

			stale := env.call(http.MethodPost, "/api/auth/reset-password",
				map[string]string{"token": first.Code, "newPassword": "x"}, "")
			Expect(stale.Status).To(Equal(http.StatusBadRequest))
		})

		It("reports an unknown email", func() {
			resp := env.call(http.MethodPost, "/api/auth/forgot-password",
				map[string]string{"email": "nobody@example.com"}, "")
			Expect(resp.Status).To(Equal(http.StatusNotFound))
			Expect(resp.Error).To(Equal(auth.MsgEmailNotFound))
		})
	})
})
