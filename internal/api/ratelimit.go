package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-IP request limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // Sustained requests per IP
	Burst             int           // Requests allowed at once
	CleanupInterval   time.Duration // Idle IPs are forgotten after twice this
}

// DefaultRateLimitConfig is sized for a dashboard polling a few endpoints
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen int64 // atomic, unix nanos
}

// IPRateLimiter throttles HTTP requests per client IP. Idle IPs are swept
// from inside Allow, so the limiter owns no goroutine and needs no Stop.
type IPRateLimiter struct {
	buckets   sync.Map // string -> *ipBucket
	config    RateLimitConfig
	nextSweep int64 // atomic, unix nanos
}

// NewIPRateLimiter creates a limiter.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	return &IPRateLimiter{
		config:    cfg,
		nextSweep: time.Now().Add(cfg.CleanupInterval).UnixNano(),
	}
}

// Allow reports whether one more request from ip fits its budget
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()
	rl.maybeSweep(now)

	if v, ok := rl.buckets.Load(ip); ok {
		b := v.(*ipBucket)
		atomic.StoreInt64(&b.lastSeen, now.UnixNano())
		return b.limiter.Allow()
	}
	b := &ipBucket{
		limiter:  rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		lastSeen: now.UnixNano(),
	}
	v, _ := rl.buckets.LoadOrStore(ip, b)
	return v.(*ipBucket).limiter.Allow()
}

// maybeSweep runs at most one sweep per interval, on whichever request wins the CAS.
func (rl *IPRateLimiter) maybeSweep(now time.Time) {
	next := atomic.LoadInt64(&rl.nextSweep)
	if now.UnixNano() < next {
		return
	}
	if !atomic.CompareAndSwapInt64(&rl.nextSweep, next, now.Add(rl.config.CleanupInterval).UnixNano()) {
		return
	}
	rl.sweep(now.Add(-2 * rl.config.CleanupInterval))
}

// sweep forgets IPs not seen since cutoff
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	limit := cutoff.UnixNano()
	rl.buckets.Range(func(key, value interface{}) bool {
		if atomic.LoadInt64(&value.(*ipBucket).lastSeen) < limit {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// tracked returns how many IPs currently hold a bucket
func (rl *IPRateLimiter) tracked() int {
	n := 0
	rl.buckets.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Middleware rejects requests over budget with 429
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP returns the caller's IP, honouring proxy headers.
// Only trust these headers behind a proxy you control.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ConnLimiter caps concurrent WebSocket connections per IP
type ConnLimiter struct {
	mu       sync.Mutex
	counts   map[string]int
	maxPerIP int
}

// NewConnLimiter creates a limiter allowing maxPerIP live connections per IP
func NewConnLimiter(maxPerIP int) *ConnLimiter {
	return &ConnLimiter{counts: make(map[string]int), maxPerIP: maxPerIP}
}

// Acquire reserves a slot for ip, reporting false when it has none left
func (cl *ConnLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.counts[ip] >= cl.maxPerIP {
		return false
	}
	cl.counts[ip]++
	return true
}

// Release frees a slot reserved by Acquire
func (cl *ConnLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.counts[ip] <= 1 {
		delete(cl.counts, ip)
		return
	}
	cl.counts[ip]--
}

// Count returns the live connections for ip
func (cl *ConnLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.counts[ip]
}

// IsAllowedOrigin accepts browser origins on the local machine.
// Requests without an Origin header come from non-browser clients and pass.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}
