package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/idilsaglam/itemwatch/internal/cloud"
)

const (
	limiterSweepInterval = time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiter keeps one token bucket per client address.
type limiter struct {
	mu         sync.Mutex
	limiters   map[string]*clientLimiter
	rps        rate.Limit
	burst      int
	trustProxy bool
	now        func() time.Time
}

func newLimiter(rps float64, burst int, trustProxy bool) *limiter {
	if burst < 1 {
		burst = 1
	}
	return &limiter{
		limiters:   make(map[string]*clientLimiter),
		rps:        rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = cl
	}
	now := l.now()
	cl.lastSeen = now
	l.mu.Unlock()
	return cl.lim.AllowN(now, 1)
}

// cleanup drops buckets idle for longer than maxIdle. A dropped client
// starts again with a full bucket.
func (l *limiter) cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for key, cl := range l.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// sweep runs cleanup every interval until ctx is done.
func (l *limiter) sweep(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup(maxIdle)
		}
	}
}

// middleware answers THROTTLED once a client runs out of tokens.
func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientKey(r)) {
			writeError(w, cloud.CodeThrottled, "request rate exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the peer address. Behind a trusted proxy it is the last
// X-Forwarded-For hop, the address the proxy itself saw.
func (l *limiter) clientKey(r *http.Request) string {
	if l.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			if hop := strings.TrimSpace(hops[len(hops)-1]); hop != "" {
				return hop
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
