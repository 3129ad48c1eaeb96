package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/cleared-dev/bankrec/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an ID and stores a logger carrying
// it in the request context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		l := logger.L.With("requestID", requestID, "method", r.Method, "path", r.URL.Path)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), l)))
		l.Debug("request served", "duration", time.Since(start))
	})
}

// clientLimiter keeps one token bucket per client address. Idle buckets
// expire from the cache.
type clientLimiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	limit   rate.Limit
	burst   int
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		buckets: cache.New(10*time.Minute, 15*time.Minute),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

func (c *clientLimiter) allow(client string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.buckets.Get(client); ok {
		c.buckets.SetDefault(client, v)
		return v.(*rate.Limiter).Allow()
	}
	l := rate.NewLimiter(c.limit, c.burst)
	c.buckets.SetDefault(client, l)
	return l.Allow()
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientAddr(r)) {
			logger.FromContext(r.Context()).Warn("rate limit exceeded", "client", clientAddr(r))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: http.StatusText(http.StatusTooManyRequests)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
