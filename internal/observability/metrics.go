package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the frame loop and the
// control API.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Frames            prometheus.Counter
	FrameDuration     prometheus.Histogram
	TimeScale         prometheus.Gauge
	SpeedChanges      *prometheus.CounterVec
	PropagationErrors prometheus.Counter
	SceneBodies       *prometheus.GaugeVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewSimCollector registers the simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitsim_frames_total",
		Help: "Total number of simulation ticks processed.",
	}), "orbitsim_frames_total")
	if err != nil {
		return nil, err
	}

	frameDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbitsim_frame_duration_seconds",
		Help:    "Wall-clock time spent processing one simulation tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.1},
	}), "orbitsim_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	timeScale, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orbitsim_time_scale_seconds",
		Help: "Simulated seconds per real second used by the last tick.",
	}), "orbitsim_time_scale_seconds")
	if err != nil {
		return nil, err
	}

	speedChanges, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbitsim_speed_changes_total",
		Help: "Applied time-scale changes, labeled by direction.",
	}, []string{"direction"}), "orbitsim_speed_changes_total")
	if err != nil {
		return nil, err
	}

	propErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orbitsim_propagation_errors_total",
		Help: "Body updates that failed during a tick.",
	}), "orbitsim_propagation_errors_total")
	if err != nil {
		return nil, err
	}

	bodies, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orbitsim_scene_bodies",
		Help: "Bodies currently registered in the scene, labeled by kind.",
	}, []string{"kind"}), "orbitsim_scene_bodies")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orbitsim_http_requests_total",
		Help: "Control API requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "orbitsim_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orbitsim_http_request_duration_seconds",
		Help:    "Control API latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route", "method"}), "orbitsim_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		Frames:            frames,
		FrameDuration:     frameDuration,
		TimeScale:         timeScale,
		SpeedChanges:      speedChanges,
		PropagationErrors: propErrors,
		SceneBodies:       bodies,
		HTTPRequests:      requests,
		HTTPDurations:     durations,
	}, nil
}

// ObserveFrame records one processed tick.
func (c *SimCollector) ObserveFrame(d time.Duration, scaleSeconds float64) {
	if c == nil {
		return
	}
	c.Frames.Inc()
	c.FrameDuration.Observe(d.Seconds())
	c.TimeScale.Set(scaleSeconds)
}

// IncSpeedChange counts an applied time-scale change.
func (c *SimCollector) IncSpeedChange(direction string) {
	if c == nil {
		return
	}
	c.SpeedChanges.WithLabelValues(direction).Inc()
}

// IncPropagationError counts a failed body update.
func (c *SimCollector) IncPropagationError() {
	if c == nil {
		return
	}
	c.PropagationErrors.Inc()
}

// SetSceneCounts sets the per-kind body gauges.
func (c *SimCollector) SetSceneCounts(central, orbiting int) {
	if c == nil {
		return
	}
	c.SceneBodies.WithLabelValues("central").Set(float64(central))
	c.SceneBodies.WithLabelValues("orbiting").Set(float64(orbiting))
}

// Instrument wraps a control API handler with request count and latency
// metrics under the given route label.
func (c *SimCollector) Instrument(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sr.status)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
