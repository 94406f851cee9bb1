package auth

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

type attemptWindow struct {
	count        int
	firstAttempt time.Time
}

// LoginRateLimiter gates the login path with a per-origin attempt counter:
// every attempt reaching the limiter counts, successful or not. State is
// process-local and lost on restart; it is an abuse deterrent, not a
// security-grade lockout.
type LoginRateLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	attempts    map[string]*attemptWindow
	maxEntries  int
}

func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultLockWindow
	}

	return &LoginRateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string]*attemptWindow),
		maxEntries:  5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining := l.allow(clientIP(r), time.Now().UTC())
		if !allowed {
			minutes := int(math.Ceil(remaining.Minutes()))
			if minutes < 1 {
				minutes = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"message":       fmt.Sprintf("Too many login attempts. Try again in %d minutes.", minutes),
				"code":          CodeRateLimited,
				"remainingTime": minutes,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[ip]
	if !ok {
		l.evictStaleLocked(now)
		l.attempts[ip] = &attemptWindow{count: 1, firstAttempt: now}
		return true, 0
	}

	if rec.count >= l.maxAttempts {
		elapsed := now.Sub(rec.firstAttempt)
		if elapsed < l.window {
			remaining := l.window - elapsed
			if remaining < time.Second {
				remaining = time.Second
			}
			return false, remaining
		}
		// Lockout window elapsed; this attempt restarts the counter.
		rec.count = 1
		rec.firstAttempt = now
		return true, 0
	}

	if now.Sub(rec.firstAttempt) >= l.window {
		rec.count = 1
		rec.firstAttempt = now
		return true, 0
	}

	rec.count++
	return true, 0
}

// evictStaleLocked keeps the origin map bounded. Called with the lock held
// before inserting a new key.
func (l *LoginRateLimiter) evictStaleLocked(now time.Time) {
	if len(l.attempts) < l.maxEntries {
		return
	}

	threshold := now.Add(-l.window)
	for key, rec := range l.attempts {
		if rec.firstAttempt.Before(threshold) {
			delete(l.attempts, key)
		}
	}
}

func clientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
