package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging logs each request with method, path, status and duration.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).Round(time.Millisecond).String(),
				"remote", remoteIP(r),
			)
		})
	}
}

// RateLimit applies a per-IP sliding token budget. Slack retries aggressively
// on slow acks; the limit protects the triage backend, not Slack.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	limiter := &ipLimiter{
		perMinute: float64(requestsPerMinute),
		buckets:   make(map[string]*bucket),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(remoteIP(r), time.Now()) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type bucket struct {
	tokens float64
	last   time.Time
}

type ipLimiter struct {
	mu        sync.Mutex
	perMinute float64
	buckets   map[string]*bucket
}

const maxTrackedIPs = 8192

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) >= maxTrackedIPs {
			l.evict(now)
		}
		b = &bucket{tokens: l.perMinute, last: now}
		l.buckets[ip] = b
	}

	b.tokens += now.Sub(b.last).Minutes() * l.perMinute
	if b.tokens > l.perMinute {
		b.tokens = l.perMinute
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evict drops buckets idle for over ten minutes. Called with the lock held.
func (l *ipLimiter) evict(now time.Time) {
	cutoff := now.Add(-10 * time.Minute)
	for ip, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

func remoteIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i != -1 {
		return addr[:i]
	}
	return addr
}
