package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
)

// IPRateLimiter holds one token-bucket limiter per visitor IP.
type IPRateLimiter struct {
	ips    sync.Map
	config LimiterConfig
}

// LimiterConfig is the per-IP token-bucket shape: RPS steady rate, Burst
// the largest instantaneous spike allowed.
type LimiterConfig struct {
	RPS   rate.Limit
	Burst int
}

// NewIPRateLimiter builds a limiter and starts its background cleanup loop.
func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	i := &IPRateLimiter{config: LimiterConfig{RPS: rps, Burst: burst}}
	go i.cleanupLoop()
	return i
}

// GetLimiter returns (creating if necessary) the limiter for ip.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	if limiter, ok := i.ips.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	newLimiter := rate.NewLimiter(i.config.RPS, i.config.Burst)
	actual, _ := i.ips.LoadOrStore(ip, newLimiter)
	return actual.(*rate.Limiter)
}

// cleanupLoop periodically wipes the tracked IP set. A full reset every
// tick is acceptable here since the emulator is a local dev tool, not a
// production gateway under sustained load.
func (i *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		i.ips.Range(func(key, _ interface{}) bool {
			i.ips.Delete(key)
			return true
		})
	}
}

// Middleware enforces the per-IP rate limit, keying off the real client
// IP (honoring X-Forwarded-For/X-Real-IP) rather than the raw socket
// address so a limiter behind a local reverse proxy still discriminates
// between callers.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := helpers.GetRealIP(r).String()

		if !i.GetLimiter(ip).Allow() {
			slog.Warn("rate_limit_exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/x-amz-json-1.1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"__type":"TooManyRequestsException","message":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
