package api

import (
	"net"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-client limiter table; the least recently
// seen client is forgotten first.
const maxTrackedClients = 1024

// rateLimiter decides whether the client identified by key may proceed.
type rateLimiter interface {
	Allow(key string) bool
}

// clientLimiter gives every client its own token bucket so one noisy guest
// cannot throttle the rest of the party.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	clients, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &clientLimiter{
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		clients: clients,
	}
}

func (l *clientLimiter) Allow(key string) bool {
	if l == nil || l.clients == nil {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(key, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// clientKey identifies the caller by remote host, without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly",
			"batch topping changes instead of sending one request per click")
	})
}
