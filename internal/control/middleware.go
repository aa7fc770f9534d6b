package control

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orbitsim/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// limiterSweepInterval is how often idle per-client limiters are dropped.
const limiterSweepInterval = time.Minute

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestLogging attaches a request ID (taken from X-Request-ID when the
// client sends one) and a request-scoped logger to the context, echoes the
// ID back, and logs the outcome. Probe paths log at debug level.
func requestLogging(base logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, log, id := logging.WithRequestLogger(r.Context(), base, r.Header.Get(requestIDHeader))
			w.Header().Set(requestIDHeader, id)

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r.WithContext(ctx))

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", sr.status),
				logging.Duration("duration", time.Since(start)),
			}
			if probePath(r.URL.Path) {
				log.Debug(ctx, "request", fields...)
				return
			}
			log.Info(ctx, "request", fields...)
		})
	}
}

func probePath(path string) bool {
	return path == "/healthz" || path == "/metrics"
}

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	cfg RateLimitConfig
	log logging.Logger
	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*rate.Limiter
	lastSweep time.Time
}

func newRateLimiter(cfg RateLimitConfig, log logging.Logger) *rateLimiter {
	return &rateLimiter{
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		clients:   make(map[string]*rate.Limiter),
		lastSweep: time.Now(),
	}
}

func (rl *rateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterSweepInterval {
		// A full bucket means the client has been idle long enough to forget.
		for k, l := range rl.clients {
			if l.TokensAt(now) >= float64(rl.cfg.BurstSize) {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	l, ok := rl.clients[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)
		rl.clients[ip] = l
	}
	return l
}

func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, rl.cfg.TrustProxy)
		if !rl.limiter(ip).AllowN(rl.now(), 1) {
			rl.log.Warn(r.Context(), "rate limit exceeded",
				logging.String("client_ip", ip),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Float64("requests_per_second", rl.cfg.RequestsPerSecond),
				logging.Int("burst", rl.cfg.BurstSize),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address. Proxy headers are only honoured when
// trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i > 0 {
				xff = xff[:i]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
