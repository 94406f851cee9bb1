package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	limiter := NewLoginRateLimiter(5, 15*time.Minute)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.allow("10.0.0.1", now)
		if !allowed {
			t.Fatalf("attempt %d rejected, want allowed", i+1)
		}
	}

	allowed, remaining := limiter.allow("10.0.0.1", now)
	if allowed {
		t.Fatal("attempt 6 allowed, want rejected")
	}
	if remaining <= 0 {
		t.Errorf("remaining = %v, want > 0", remaining)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	now := time.Now().UTC()

	limiter.allow("10.0.0.2", now)
	limiter.allow("10.0.0.2", now)

	if allowed, _ := limiter.allow("10.0.0.2", now.Add(30*time.Second)); allowed {
		t.Fatal("attempt inside window allowed, want rejected")
	}

	// Window elapsed; the counter restarts at 1.
	if allowed, _ := limiter.allow("10.0.0.2", now.Add(2*time.Minute)); !allowed {
		t.Fatal("attempt after window rejected, want allowed")
	}
	if allowed, _ := limiter.allow("10.0.0.2", now.Add(2*time.Minute)); !allowed {
		t.Fatal("second attempt after reset rejected, want allowed")
	}
}

func TestRateLimiterTracksOriginsSeparately(t *testing.T) {
	limiter := NewLoginRateLimiter(1, time.Minute)
	now := time.Now().UTC()

	limiter.allow("10.0.0.3", now)
	if allowed, _ := limiter.allow("10.0.0.3", now); allowed {
		t.Fatal("second attempt from same origin allowed, want rejected")
	}
	if allowed, _ := limiter.allow("10.0.0.4", now); !allowed {
		t.Fatal("first attempt from other origin rejected, want allowed")
	}
}

func TestRateLimiterMiddlewareResponse(t *testing.T) {
	limiter := NewLoginRateLimiter(1, 15*time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	first.RemoteAddr = "192.168.1.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want 204", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	second.RemoteAddr = "192.168.1.9:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	var body struct {
		Message       string `json:"message"`
		Code          string `json:"code"`
		RemainingTime int    `json:"remainingTime"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != CodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, CodeRateLimited)
	}
	if body.RemainingTime < 1 {
		t.Errorf("remainingTime = %d, want >= 1", body.RemainingTime)
	}
	if !strings.Contains(body.Message, "Too many login attempts") {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestRateLimiterCountsSanitizerRejectedAttempts(t *testing.T) {
	limiter := NewLoginRateLimiter(2, 15*time.Minute)
	handler := limiter.Middleware(SanitizeInput(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	send := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r.RemoteAddr = "192.168.1.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	// Two attempts rejected by the sanitizer still consume the budget.
	for i := 0; i < 2; i++ {
		if rec := send(`{"email":"1; DROP TABLE users"}`); rec.Code != http.StatusBadRequest {
			t.Fatalf("dirty attempt %d status = %d, want 400", i+1, rec.Code)
		}
	}

	if rec := send(`{"email":"jane@clinic.test"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d, want 429", rec.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "10.0.0.5:9999"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")

	if ip := clientIP(r); ip != "203.0.113.7" {
		t.Errorf("clientIP = %q, want first forwarded address", ip)
	}

	r.Header.Del("X-Forwarded-For")
	if ip := clientIP(r); ip != "10.0.0.5:9999" {
		t.Errorf("clientIP = %q, want RemoteAddr fallback", ip)
	}
}
