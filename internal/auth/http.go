// ABOUTME: HTTP middleware applying the authentication gate to requests
// ABOUTME: Reads the auth header and rejects with a generic 401 on any failure

package auth

import (
	"io"
	"log/slog"
	"net/http"
)

// UnauthorizedMessage is the body of every 401 response. It never says which
// check failed.
const UnauthorizedMessage = "Unauthorized"

// Middleware returns an HTTP middleware enforcing the gate. Verified claims are
// attached to the request context.
func (g *Gate) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := g.verify(r.Header.Get(HeaderName))
			if err != nil {
				reason := failureReason(err)
				if logger != nil {
					logger.WarnContext(r.Context(), "unauthorized request",
						"method", r.Method,
						"path", r.URL.Path,
						"reason", reason,
					)
				}
				if g.observer != nil {
					g.observer.ObserveAuthFailure(reason)
				}
				writeUnauthorized(w)
				return
			}

			if claims != nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, UnauthorizedMessage)
}
