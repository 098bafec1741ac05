// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package web

import (
	"encoding/json"
	"net/http"

	"github.com/leafguard/leafguard/internal/auth"
)

type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type registeredView struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details string          `json:"details,omitempty"`
	Token   string          `json:"token,omitempty"`
	User    *userView       `json:"user,omitempty"`
	Data    *registeredView `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindConflict:
		return http.StatusBadRequest
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a failure envelope. fallback is the public message
// for unclassified errors.
func (s *Server) writeError(w http.ResponseWriter, err error, fallback string) {
	kind := auth.KindOf(err)
	msg := auth.PublicMessage(err, fallback)

	body := envelope{Error: msg}
	switch kind {
	case auth.KindValidation:
		body.Message = msg
	case auth.KindInternal:
		if s.exposeDetails {
			body.Details = auth.Detail(err)
		}
	}
	writeJSON(w, statusFor(kind), body)
}
