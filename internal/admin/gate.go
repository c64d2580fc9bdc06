package admin

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Gate checks administrator credentials. It is a plain equality test with no
// hashing or lockout and must not be treated as a security boundary.
type Gate struct {
	username string
	password string
}

func NewGate(username, password string) *Gate {
	return &Gate{username: username, password: password}
}

func (g *Gate) Verify(username, password string) bool {
	return username == g.username && password == g.password
}

// Middleware guards admin routes with HTTP basic auth checked against the gate.
func (g *Gate) Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !g.Verify(user, pass) {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("username", user).
					Msg("admin credentials rejected")
				w.Header().Set("WWW-Authenticate", `Basic realm="clinic-admin"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"details": "admin credentials required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
