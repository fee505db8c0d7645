// Package middleware holds HTTP middleware for the results service.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/minleaf/sieve/internal/api/response"
	"github.com/minleaf/sieve/internal/core"
)

// BearerAuth returns middleware that validates the Authorization
// Bearer token. If token is empty, authentication is disabled.
// Rejections use 403 because that is what the sync client expects.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no token configured
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || provided == "" {
				response.Error(w, http.StatusForbidden,
					core.WrapError(core.ErrSyncUnauthorized, nil))
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				response.Error(w, http.StatusForbidden,
					core.WrapError(core.ErrSyncUnauthorized, nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
