package middleware

import (
	"log/slog"
	"net/http"

	"phalanx/internal/config"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth checks the configured header against the bcrypt hashes of the
// accepted keys. Health and metrics stay open so probes keep working.
func APIKeyAuth(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(cfg.APIKeyHeader)
			if key == "" {
				writeAuthError(w, "missing API key")
				return
			}

			for _, hash := range cfg.APIKeyHashes {
				if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("rejected request with invalid API key",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeAuthError(w, "invalid API key")
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
