// Package ratelimit implements a fixed-window request limiter keyed by client
// identity.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
	"szenai/internal/errors"
	"szenai/internal/httputil"
	"szenai/internal/metrics"
)

type window struct {
	start time.Time
	count int
}

// RateLimiter counts requests per key in discrete windows. A window resets
// once now - start >= the window length.
type RateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	limit        int
	window       time.Duration
	now          func() time.Time
	lastCleanup  time.Time
	cleanupEvery time.Duration
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// New creates a limiter allowing limit requests per window. A limit <= 0
// rejects everything.
func New(limit int, windowLen time.Duration, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		windows:      make(map[string]*window),
		limit:        limit,
		window:       windowLen,
		now:          time.Now,
		cleanupEvery: constants.RateLimitCleanupInterval,
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.lastCleanup = rl.now()
	return rl
}

// Limit returns the configured maximum per window.
func (rl *RateLimiter) Limit() int { return rl.limit }

// Window returns the configured window length.
func (rl *RateLimiter) Window() time.Duration { return rl.window }

// Allow counts one request for key and reports whether it fits in the
// current window.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _ := rl.take(key)
	return allowed
}

func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return false, rl.window
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) >= rl.cleanupEvery {
		rl.cleanupLocked(now)
	}

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.windows[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count >= rl.limit {
		return false, w.start.Add(rl.window).Sub(now)
	}
	w.count++
	return true, 0
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.window {
			delete(rl.windows, key)
		}
	}
	rl.lastCleanup = now
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Middleware rejects requests over the limit with 429 before they reach next.
func (rl *RateLimiter) Middleware(logger *logrus.Logger, m *metrics.Metrics, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			allowed, retryAfter := rl.take(key)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			m.RateLimited()
			logger.WithFields(logrus.Fields{
				constants.LogFieldRemoteIP: key,
				constants.LogFieldMethod:   r.Method,
				constants.LogFieldURL:      r.URL.Path,
			}).Warn("Rate limit exceeded")

			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			httputil.WriteError(w, r, errors.NewRateLimitError(rl.limit, rl.window.String()))
		})
	}
}
