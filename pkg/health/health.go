// Package health serves liveness and readiness endpoints for the API server.
//
// Every registered check is polled in the background. A check flips to
// unhealthy only after FailureThreshold consecutive failures and back after
// SuccessThreshold consecutive successes, so a single slow ping does not pull
// the replica out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Check describes a registered check.
type Check struct {
	Name             string
	Kind             Kind
	Timeout          time.Duration
	Func             CheckFunc
	FailureThreshold int
	SuccessThreshold int
}

// monitor is the runtime state of a Check. Only the polling goroutine touches
// the streak counters; handlers read healthy and lastErr.
type monitor struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	fails int
	oks   int
}

func (p *monitor) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if err := p.Func(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		if p.fails++; p.fails >= p.FailureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.lastErr.Store(nil)
	p.fails = 0
	if p.oks++; p.oks >= p.SuccessThreshold {
		p.healthy.Store(true)
	}
}

func (p *monitor) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if msg := p.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is unhealthy", true
}

// Health aggregates monitors. It starts not ready; call SetReady(true) once the
// server is wired.
type Health struct {
	ready atomic.Bool

	mu       sync.RWMutex
	monitors []*monitor
	stop     context.CancelFunc
}

// New creates an empty Health.
func New() *Health {
	return &Health{}
}

// Register adds a check. Zero thresholds default to 3 failures and 1 success.
// Checks start out healthy.
func (h *Health) Register(c Check) {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	p := &monitor{Check: c}
	p.healthy.Store(true)

	h.mu.Lock()
	h.monitors = append(h.monitors, p)
	h.mu.Unlock()
}

// AddLivenessCheck registers a liveness check with default thresholds.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Register(Check{Name: name, Kind: Liveness, Timeout: timeout, Func: fn})
}

// AddReadinessCheck registers a readiness check with default thresholds.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Register(Check{Name: name, Kind: Readiness, Timeout: timeout, Func: fn})
}

// Start polls every registered check at interval until Stop is called or ctx
// is done. Each check is polled once immediately.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.stop != nil {
		h.stop()
	}
	h.stop = cancel
	monitors := slices.Clone(h.monitors)
	h.mu.Unlock()

	for _, p := range monitors {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				p.poll(ctx)
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
		}()
	}
}

// Stop halts background polling. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady toggles the manual readiness flag, used to drain on shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures = append(failures, failure{name: "_readiness", msg: "service is not ready"})
	}
	writeStatus(w, failures)
}

type failure struct {
	name string
	msg  string
}

func (h *Health) failures(kind Kind) []failure {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []failure
	for _, p := range h.monitors {
		if p.Kind != kind {
			continue
		}
		if msg, failed := p.failure(); failed {
			out = append(out, failure{name: p.Name, msg: msg})
		}
	}
	return out
}

// writeStatus renders {"status":"ok"} or
// {"status":"unhealthy","checks":{name: error}}.
func writeStatus(w http.ResponseWriter, failures []failure) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, f := range failures {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(f.msg) })
				}
			})
		})
	})

	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
