package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client limiter.
type RateLimitConfig struct {
	// Max requests per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window approximates a sliding window from the counts of the current and
// the previous fixed window.
type window struct {
	start time.Time
	curr  int
	prev  int
}

type limiter struct {
	max   int
	size  time.Duration
	keyFn func(*http.Request) string
	mu    sync.Mutex
	byKey map[string]*window
	nowFn func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		max:   cfg.Max,
		size:  cfg.Window,
		keyFn: cfg.KeyFunc,
		byKey: make(map[string]*window),
		nowFn: time.Now,
	}
	if l.keyFn == nil {
		l.keyFn = ClientIP
	}
	return l
}

// take counts one request for key. It returns the remaining budget, the end
// of the current window and whether the request is admitted.
func (l *limiter) take(key string, now time.Time) (int, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.size)
	w, ok := l.byKey[key]
	if !ok {
		w = &window{start: start}
		l.byKey[key] = w
	}
	switch gap := start.Sub(w.start); {
	case gap == l.size:
		w.prev, w.curr = w.curr, 0
		w.start = start
	case gap > l.size:
		w.prev, w.curr = 0, 0
		w.start = start
	}

	elapsed := float64(now.Sub(w.start)) / float64(l.size)
	used := int(math.Floor(float64(w.prev)*(1-elapsed))) + w.curr
	reset := w.start.Add(l.size)
	if used >= l.max {
		return 0, reset, false
	}
	w.curr++
	return l.max - used - 1, reset, true
}

// sweep forgets clients idle for two windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.byKey {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.byKey, k)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.nowFn()
		remaining, reset, ok := l.take(l.keyFn(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(reset.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits each client to cfg.Max requests per cfg.Window. Idle
// clients are never evicted; prefer RateLimitWithCleanup in servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a sweeper that evicts idle clients
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		t := time.NewTicker(2 * l.size)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				l.sweep(now)
			}
		}
	}()
	return l.middleware
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
