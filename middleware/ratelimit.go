package middleware

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidRate is returned when RateLimitConfig.RPS is not greater than
// zero.
var ErrInvalidRate = errors.New("rate limit: rps must be greater than zero")

// ErrNilLimiter is returned when RateLimitMiddleware is given a nil limiter.
var ErrNilLimiter = errors.New("rate limit: limiter must not be nil")

const (
	// defaultClientTTL is how long an idle client entry survives before
	// the cleanup pass drops it.
	defaultClientTTL = 10 * time.Minute

	// minCleanupInterval and maxCleanupInterval clamp how often the
	// cleanup pass runs.
	minCleanupInterval = 10 * time.Second
	maxCleanupInterval = time.Minute
)

// RateLimitConfig configures a RateLimiter.
type RateLimitConfig struct {
	// RPS is the sustained request rate allowed per client, in requests
	// per second. Must be greater than zero.
	RPS float64

	// Burst is the number of requests a client may send at once beyond
	// the sustained rate. Defaults to the integer part of RPS, at
	// least 1.
	Burst int

	// ClientTTL is how long an idle client entry is kept before the
	// background cleanup drops it. Defaults to 10 minutes.
	ClientTTL time.Duration

	// KeyFunc extracts the client key from a request. Defaults to the
	// host portion of r.RemoteAddr.
	KeyFunc func(r *http.Request) string
}

// clientEntry pairs a client's token bucket with its last access time for
// TTL-based cleanup.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per client key. Idle client entries
// are dropped by a background cleanup goroutine; call Stop when the limiter
// is no longer needed.
type RateLimiter struct {
	rps       rate.Limit
	burst     int
	clientTTL time.Duration
	keyFunc   func(r *http.Request) string

	mu      sync.Mutex
	clients map[string]*clientEntry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter from the given configuration and
// starts its cleanup goroutine.
//
// It returns ErrInvalidRate if RPS is not greater than zero.
func NewRateLimiter(cfg RateLimitConfig) (*RateLimiter, error) {
	if cfg.RPS <= 0 {
		return nil, ErrInvalidRate
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
	}

	ttl := cfg.ClientTTL
	if ttl <= 0 {
		ttl = defaultClientTTL
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = clientHost
	}

	l := &RateLimiter{
		rps:       rate.Limit(cfg.RPS),
		burst:     burst,
		clientTTL: ttl,
		keyFunc:   keyFunc,
		clients:   make(map[string]*clientEntry),
		stopCh:    make(chan struct{}),
	}

	go l.cleanupLoop()

	return l, nil
}

// Allow reports whether the client identified by key may proceed, taking
// one token from its bucket. A single critical section covers entry lookup
// and last-access update; the token take happens outside the lock, as
// rate.Limiter is safe for concurrent use.
func (l *RateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.clients[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Stop terminates the background cleanup goroutine. Safe to call more than
// once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// cleanup drops client entries idle for longer than the TTL.
func (l *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-l.clientTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.clients {
		if entry.lastAccess.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

func (l *RateLimiter) cleanupLoop() {
	interval := l.clientTTL / 2
	if interval > maxCleanupInterval {
		interval = maxCleanupInterval
	}
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// clientHost returns the host portion of the request peer address, falling
// back to the raw address when it carries no port.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// RateLimitMiddleware returns a middleware that rejects requests exceeding
// the limiter's per-client budget with 429 Too Many Requests and a
// Retry-After header. The limiter's lifecycle stays with the caller: create
// it with NewRateLimiter and Stop it on shutdown.
//
// It returns ErrNilLimiter if limiter is nil.
func RateLimitMiddleware(limiter *RateLimiter) (httpd.MiddlewareFunc, error) {
	if limiter == nil {
		return nil, ErrNilLimiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(limiter.keyFunc(r)) {
				w.Header().Set("Retry-After", "1")
				httpd.ResponseError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
