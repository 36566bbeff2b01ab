package middleware

import (
	"net/http"
	"sync"
	"time"

	"posterminal/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window limiter ──────────────────────────────────────────────────────

type windowEntry struct {
	count     int
	windowEnd time.Time
}

// windowLimiter counts requests per client key inside a fixed window.
type windowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*windowEntry
	now     func() time.Time
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, window: window, entries: make(map[string]*windowEntry), now: time.Now}
}

// allow records one request for key and reports whether it is within the
// limit, together with the end of the current window.
func (l *windowLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

// purge drops expired windows so idle clients do not accumulate.
func (l *windowLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	purged := 0
	for k, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, k)
			purged++
		}
	}
	return purged
}

func (l *windowLimiter) handler(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, until := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", until.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

var (
	loginLimiter = newWindowLimiter(20, time.Minute)
	apiLimiters  []*windowLimiter
	apiMu        sync.Mutex
)

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return loginLimiter.handler("too many login attempts, try again in a minute")
}

// RateLimiter limits every client IP to limit requests per window.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	l := newWindowLimiter(limit, window)
	apiMu.Lock()
	apiLimiters = append(apiLimiters, l)
	apiMu.Unlock()
	return l.handler("too many requests, try again shortly")
}

// ── Purge goroutine ───────────────────────────────────────────────────────────

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		purged := loginLimiter.purge()
		apiMu.Lock()
		for _, l := range apiLimiters {
			purged += l.purge()
		}
		apiMu.Unlock()
		if purged > 0 {
			log.Debug().Int("entries_purged", purged).Msg("rate limiter entries purged")
		}
	}
}
