// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package web

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/leafguard/leafguard/internal/auth"
)

const maxBodyBytes = 1 << 20

// Success messages.
const (
	MsgRegistered     = "User registered successfully"
	MsgResetSent      = "Reset token sent to your email address."
	MsgPasswordReset  = "Password updated successfully"
	MsgPasswordChange = "Password changed successfully"
)

// fields is a decoded request body. Values that are not strings read as
// missing.
type fields map[string]any

func (f fields) str(key string) string {
	s, _ := f[key].(string)
	return s
}

// readFields decodes a JSON or form body. A malformed or empty body yields no
// fields, leaving the flow to report what is missing.
func readFields(w http.ResponseWriter, r *http.Request) fields {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return fields{}
		}
		out := fields{}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				out[key] = values[0]
			}
		}
		return out
	}

	var out fields
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil || out == nil {
		_, _ = io.Copy(io.Discard, r.Body)
		return fields{}
	}
	return out
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body := readFields(w, r)
	user, err := s.flow.Register(r.Context(), auth.RegisterInput{
		Name:     body.str("name"),
		Email:    body.str("email"),
		Password: body.str("password"),
	})
	if err != nil {
		s.writeError(w, err, auth.MsgRegisterServerError)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: MsgRegistered,
		Data: &registeredView{
			ID:       user.ID.String(),
			FullName: user.Name,
			Email:    user.Email,
		},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body := readFields(w, r)
	result, err := s.flow.Login(r.Context(), body.str("email"), body.str("password"))
	if err != nil {
		s.writeError(w, err, auth.MsgLoginServerError)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Token:   result.Token,
		User: &userView{
			ID:    result.User.ID.String(),
			Name:  result.User.Name,
			Email: result.User.Email,
		},
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	body := readFields(w, r)
	if err := s.flow.ForgotPassword(r.Context(), body.str("email")); err != nil {
		s.writeError(w, err, auth.MsgForgotServerError)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: MsgResetSent})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	body := readFields(w, r)
	if err := s.flow.ResetPassword(r.Context(), body.str("token"), body.str("newPassword")); err != nil {
		s.writeError(w, err, auth.MsgResetServerError)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: MsgPasswordReset})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	body := readFields(w, r)
	err := s.flow.ChangePassword(r.Context(), body.str("currentPassword"), body.str("newPassword"))
	if err != nil {
		s.writeError(w, err, auth.MsgChangeServerError)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: MsgPasswordChange})
}

type healthView struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthView{Status: "UP", Timestamp: s.now().UTC()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{Message: "Route " + r.URL.RequestURI() + " not found"})
}
