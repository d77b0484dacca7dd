/*
Package limiter provides per-IP rate limiting for connection attempts.

Each client IP gets its own token bucket (rate.Limiter). A background sweep
drops buckets that have refilled completely, so idle clients do not
accumulate in memory.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mafiagame/internal/pkg/errs"
	"mafiagame/internal/pkg/logx"
	"mafiagame/internal/pkg/resp"
)

const sweepInterval = 3 * time.Minute

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	// rate and burst applied to every new bucket.
	r rate.Limit
	b int
}

// NewIPRateLimiter builds a limiter allowing r events per second with burst b
// per IP, and starts the background sweep.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.sweepIdle()

	return i
}

// GetLimiter returns the bucket for ip, creating it on first sight. Creation
// double-checks under the write lock so concurrent first requests from one IP
// share a bucket.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// AllowAddr extracts the IP from a host:port remote address and reports
// whether that client may proceed.
func (i *IPRateLimiter) AllowAddr(remoteAddr string) bool {
	return i.GetLimiter(clientIP(remoteAddr)).Allow()
}

// clientIP strips the port from a remote address, tolerating bare IPs.
func clientIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}
	if ip == "" {
		ip = "unknown_ip"
	}

	return ip
}

// sweepIdle periodically removes buckets whose tokens have fully refilled.
// A full bucket means the IP has been quiet long enough to forget.
func (i *IPRateLimiter) sweepIdle() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		i.mu.Lock()
		count := 0
		for ip, limiter := range i.limits {
			if limiter.TokensAt(time.Now()) >= float64(limiter.Burst()) {
				delete(i.limits, ip)
				count++
			}
		}
		i.mu.Unlock()
		logx.Debug("Rate limiter sweep finished.", "removed", count)
	}
}

// Middleware rejects requests over the per-IP limit with 429 before they
// reach the next handler.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.AllowAddr(r.RemoteAddr) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
