// Package testutil provides in-memory HTTP fakes of AnkiConnect and the
// Readwise export API for tests.
package testutil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Detail string `json:"detail"`
}

// tokenAuth rejects requests without "Authorization: Token <token>".
// An empty token disables the check.
func tokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Token ") || strings.TrimPrefix(auth, "Token ") != token {
				writeJSON(w, http.StatusUnauthorized, errResponse{Detail: "Invalid token."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
