package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phalanx/internal/config"

	"golang.org/x/crypto/bcrypt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/check-event", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := config.AuthConfig{
		Enabled:      true,
		APIKeyHeader: "X-API-Key",
		APIKeyHashes: []string{string(hash)},
	}
	h := APIKeyAuth(cfg, nil)(okHandler())

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"valid key", "/v1/check-event", "secret-key", http.StatusOK},
		{"wrong key", "/v1/check-event", "wrong", http.StatusUnauthorized},
		{"missing key", "/v1/check-event", "", http.StatusUnauthorized},
		{"health exempt", "/health", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}
	h := CORS(cfg)(okHandler())

	t.Run("allowed origin echoed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/policies", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("allow-origin = %q", got)
		}
	})

	t.Run("unknown origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/policies", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow-origin = %q, want empty", got)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/v1/policies", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
			t.Error("preflight missing allow-methods")
		}
	})
}

func TestRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:       true,
		RequestsPerIP: 2,
		BurstSize:     0,
		WindowSize:    time.Minute,
		CleanupPeriod: time.Minute,
		ExemptPaths:   []string{"/health"},
	}
	h := RateLimit(cfg, nil)(okHandler())

	req := func(path string) int {
		r := httptest.NewRequest("GET", path, nil)
		r.RemoteAddr = "10.0.0.1:4444"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	if got := req("/v1/check-event"); got != http.StatusOK {
		t.Fatalf("first request status = %d", got)
	}
	if got := req("/v1/check-event"); got != http.StatusOK {
		t.Fatalf("second request status = %d", got)
	}
	if got := req("/v1/check-event"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	// Exempt path still passes.
	if got := req("/health"); got != http.StatusOK {
		t.Errorf("exempt path status = %d", got)
	}
}

func TestRateLimit_PerIP(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:       true,
		RequestsPerIP: 1,
		WindowSize:    time.Minute,
		CleanupPeriod: time.Minute,
	}
	h := RateLimit(cfg, nil)(okHandler())

	req := func(addr string) int {
		r := httptest.NewRequest("GET", "/v1/check-event", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	if got := req("10.0.0.1:1"); got != http.StatusOK {
		t.Fatalf("first ip status = %d", got)
	}
	if got := req("10.0.0.1:2"); got != http.StatusTooManyRequests {
		t.Errorf("same ip second request = %d, want 429", got)
	}
	if got := req("10.0.0.2:1"); got != http.StatusOK {
		t.Errorf("other ip status = %d, want 200", got)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:9999"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.2")

	if got := clientIP(r, false); got != "192.0.2.1" {
		t.Errorf("untrusted proxy ip = %q", got)
	}
	if got := clientIP(r, true); got != "198.51.100.2" {
		t.Errorf("trusted proxy ip = %q, want rightmost forwarded entry", got)
	}
}
