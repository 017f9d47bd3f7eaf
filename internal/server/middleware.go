package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/tokomas/goldpos/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware validates the bearer token on every API route except login.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/auth/login") {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := s.authManager.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.writeError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestClaims returns the authenticated user's claims, nil on the login route.
func requestClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

// requireOwner guards owner-only handlers.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) bool {
	claims := requestClaims(r)
	if claims == nil || claims.Role != "owner" {
		s.writeError(w, "owner role required", http.StatusForbidden)
		return false
	}
	return true
}
