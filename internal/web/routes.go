// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LeafGuard Contributors

package web

import (
	"net/http"
)

const banner = "LeafGuard Professional Backend is Running!"

func (s *Server) routes() *http.ServeMux {
	prefix := s.basePath + "/auth"

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+prefix+"/register", s.handleRegister)
	mux.HandleFunc("POST "+prefix+"/login", s.handleLogin)
	mux.HandleFunc("POST "+prefix+"/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST "+prefix+"/reset-password", s.handleResetPassword)
	mux.Handle("PUT "+prefix+"/change-password", s.requireIdentity(http.HandlerFunc(s.handleChangePassword)))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		//nolint:errcheck // client may disconnect
		w.Write([]byte(banner))
	})
	// Anything else, including a known path with the wrong method.
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}
