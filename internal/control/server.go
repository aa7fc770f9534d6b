// Package control serves the HTTP surface of a running simulation: speed
// queries and changes, the last published frame, health and metrics.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/signalsfoundry/orbitsim/core"
	"github.com/signalsfoundry/orbitsim/internal/logging"
	"github.com/signalsfoundry/orbitsim/internal/observability"
	"github.com/signalsfoundry/orbitsim/internal/render"
)

// FrameSource returns the most recently published frame, or nil before the
// first tick. *render.Latest satisfies it.
type FrameSource interface {
	Load() *render.Frame
}

// InputSink queues input events for the next tick. *core.InputQueue
// satisfies it.
type InputSink interface {
	Push(ev core.InputEvent) bool
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	TrustProxy bool
}

// Options configures a Server.
type Options struct {
	Addr        string
	CORSOrigins []string
	RateLimit   RateLimitConfig
	Logger      logging.Logger
	Metrics     *observability.SimCollector
}

// Server is the control HTTP server.
type Server struct {
	frames  FrameSource
	inputs  InputSink
	log     logging.Logger
	metrics *observability.SimCollector

	handler    http.Handler
	httpServer *http.Server
}

// NewServer wires routes and middleware. The returned server does not listen
// until Serve is called.
func NewServer(frames FrameSource, inputs InputSink, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		frames:  frames,
		inputs:  inputs,
		log:     log,
		metrics: opts.Metrics,
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /healthz", "/healthz", s.handleHealth)
	s.route(mux, "GET /v1/speed", "/v1/speed", s.handleSpeed)
	s.route(mux, "POST /v1/speed/increase", "/v1/speed/increase", s.handleSpeedChange(core.SpeedUp))
	s.route(mux, "POST /v1/speed/decrease", "/v1/speed/decrease", s.handleSpeedChange(core.SlowDown))
	s.route(mux, "GET /v1/scene", "/v1/scene", s.handleScene)
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	// Outermost first: CORS -> rate limit -> request logging -> mux.
	var handler http.Handler = mux
	handler = requestLogging(log)(handler)
	if opts.RateLimit.Enabled {
		handler = newRateLimiter(opts.RateLimit, log).Middleware(handler)
	}
	handler = cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(handler)

	s.handler = handler
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) route(mux *http.ServeMux, pattern, label string, h http.HandlerFunc) {
	mux.Handle(pattern, s.metrics.Instrument(label, h))
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve accepts connections on lis until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "serving control API", logging.String("addr", lis.Addr().String()))
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type speedResponse struct {
	ScaleIndex   int     `json:"scale_index"`
	ScaleSeconds float64 `json:"scale_seconds"`
	Speed        string  `json:"speed"`
	Status       string  `json:"status"`
	Frame        uint64  `json:"frame"`
}

type queuedResponse struct {
	Queued string `json:"queued"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	f := s.frames.Load()
	if f == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no frame published yet")
		return
	}
	writeJSON(w, http.StatusOK, speedResponse{
		ScaleIndex:   f.ScaleIndex,
		ScaleSeconds: f.ScaleSeconds,
		Speed:        f.Speed,
		Status:       f.Status,
		Frame:        f.Index,
	})
}

func (s *Server) handleSpeedChange(ev core.InputEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context(), s.log)
		if !s.inputs.Push(ev) {
			log.Warn(r.Context(), "input queue full", logging.String("event", ev.String()))
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusServiceUnavailable, "input queue full")
			return
		}
		log.Debug(r.Context(), "queued input", logging.String("event", ev.String()))
		writeJSON(w, http.StatusAccepted, queuedResponse{Queued: ev.String()})
	}
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	withTraces := true
	if raw := r.URL.Query().Get("traces"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "traces must be a boolean")
			return
		}
		withTraces = v
	}

	f := s.frames.Load()
	if f == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no frame published yet")
		return
	}
	if !withTraces {
		f = f.WithoutGeometry()
	}
	writeJSON(w, http.StatusOK, f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}
