package server

import (
	"errors"
	"net/http"

	"chronicle/internal/auth"
)

// withAdmin requires a bearer token matching the configured admin token hash.
func (s *Server) withAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminTokenHash == "" {
			err := makeAPIError(http.StatusForbidden, "forbidden", ErrCodeForbidden, errors.New("admin access is not configured"))
			s.writeAPIError(w, r, err)
			return
		}
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if !auth.VerifyToken(s.adminTokenHash, token) {
			err := makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, errors.New("invalid admin token"))
			s.writeAPIError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
