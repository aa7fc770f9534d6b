// Package config loads process configuration from the environment, with an
// optional .env file underneath it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/orbitsim/timectrl"
)

// Environment keys.
const (
	EnvFrameInterval  = "ORBITSIM_FRAME_INTERVAL"
	EnvAccelerated    = "ORBITSIM_ACCELERATED"
	EnvDuration       = "ORBITSIM_DURATION"
	EnvScene          = "ORBITSIM_SCENE"
	EnvSpeed          = "ORBITSIM_SPEED"
	EnvControlAddr    = "ORBITSIM_CONTROL_ADDR"
	EnvCORSOrigins    = "ORBITSIM_CORS_ORIGINS"
	EnvRateLimitRPS   = "ORBITSIM_RATE_LIMIT_RPS"
	EnvRateLimitBurst = "ORBITSIM_RATE_LIMIT_BURST"
	EnvTrustProxy     = "ORBITSIM_TRUST_PROXY"
	EnvStdinControls  = "ORBITSIM_STDIN_CONTROLS"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"

	EnvTracingEnabled    = "ORBITSIM_TRACING_ENABLED"
	EnvTracingExporter   = "ORBITSIM_TRACING_EXPORTER"
	EnvTracingService    = "ORBITSIM_TRACING_SERVICE_NAME"
	EnvTracingFrameEvery = "ORBITSIM_TRACING_FRAME_EVERY"
	EnvOTLPEndpoint      = "ORBITSIM_OTLP_ENDPOINT"
)

const (
	defaultFrameRate   = 60
	defaultControlAddr = "127.0.0.1:8080"
)

type Config struct {
	Frame   FrameConfig
	Scene   SceneConfig
	Control ControlConfig
	Logging LoggingConfig
	Tracing TracingConfig
	// StdinControls reads '+' and '-' from standard input as speed changes.
	StdinControls bool
}

type FrameConfig struct {
	Interval    time.Duration
	Accelerated bool
	// Duration stops the frame loop after this much frame time; 0 runs
	// until interrupted.
	Duration time.Duration
}

type SceneConfig struct {
	// Path is a yaml/json/toml scene file; empty selects the built-in scene.
	Path string
	// Speed is the initial preset label.
	Speed string
}

type ControlConfig struct {
	// Addr is the HTTP listen address; empty disables the control server.
	Addr        string
	CORSOrigins []string
	RateLimit   RateLimitConfig
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

type TracingConfig struct {
	Enabled     bool
	Exporter    string // stdout | otlp
	Endpoint    string
	ServiceName string
	// FrameEvery samples one tick span out of every FrameEvery frames.
	FrameEvery int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the process environment. Values missing from
// the environment are taken from the given env files, or from ./.env when no
// file is named; a missing ./.env is not an error. The environment always
// wins over file values.
func Load(envFiles ...string) (*Config, error) {
	fileVals, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	l := loader{file: fileVals}

	cfg := &Config{
		Frame: FrameConfig{
			Interval:    l.duration(EnvFrameInterval, time.Second/defaultFrameRate),
			Accelerated: l.bool(EnvAccelerated, false),
			Duration:    l.duration(EnvDuration, 0),
		},
		Scene: SceneConfig{
			Path:  l.string(EnvScene, ""),
			Speed: l.string(EnvSpeed, timectrl.Presets[timectrl.DefaultPresetIndex].Label),
		},
		Control: ControlConfig{
			Addr:        l.string(EnvControlAddr, defaultControlAddr),
			CORSOrigins: splitList(l.string(EnvCORSOrigins, "*")),
			RateLimit: RateLimitConfig{
				RequestsPerSecond: l.float(EnvRateLimitRPS, 10),
				BurstSize:         l.int(EnvRateLimitBurst, 20),
				TrustProxy:        l.bool(EnvTrustProxy, false),
			},
		},
		Logging: LoggingConfig{
			Level:  l.string(EnvLogLevel, "info"),
			Format: l.string(EnvLogFormat, "text"),
		},
		Tracing: TracingConfig{
			Enabled:     l.bool(EnvTracingEnabled, false),
			Exporter:    strings.ToLower(l.string(EnvTracingExporter, "stdout")),
			Endpoint:    l.string(EnvOTLPEndpoint, ""),
			ServiceName: l.string(EnvTracingService, "orbitsim"),
			FrameEvery:  l.int(EnvTracingFrameEvery, defaultFrameRate),
		},
		StdinControls: l.bool(EnvStdinControls, false),
	}
	cfg.Control.RateLimit.Enabled = cfg.Control.RateLimit.RequestsPerSecond > 0

	if err := errors.Join(l.errs...); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. It is called by Load and again by callers
// that override fields from flags.
func (c *Config) Validate() error {
	var errs []error
	if c.Frame.Interval <= 0 {
		errs = append(errs, fmt.Errorf("frame interval must be positive, got %s", c.Frame.Interval))
	}
	if c.Frame.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Frame.Duration))
	}
	if _, err := timectrl.PresetIndex(c.Scene.Speed); err != nil {
		errs = append(errs, err)
	}
	if rl := c.Control.RateLimit; rl.Enabled && rl.BurstSize < 1 {
		errs = append(errs, fmt.Errorf("rate limit burst must be at least 1, got %d", rl.BurstSize))
	}
	if c.Control.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %v", c.Control.RateLimit.RequestsPerSecond))
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Errorf("tracing exporter must be stdout or otlp, got %q", c.Tracing.Exporter))
		}
	}
	if c.Tracing.FrameEvery < 1 {
		errs = append(errs, fmt.Errorf("tracing frame interval must be at least 1, got %d", c.Tracing.FrameEvery))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Logging.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		vals, err := godotenv.Read()
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		return vals, nil
	}
	vals, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("read env files %v: %w", files, err)
	}
	return vals, nil
}

type loader struct {
	file map[string]string
	errs []error
}

// lookup prefers a non-empty environment value; an empty one counts as
// unset and falls through to the env files.
func (l *loader) lookup(key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, true
	}
	v, ok := l.file[key]
	return strings.TrimSpace(v), ok
}

func (l *loader) string(key, def string) string {
	if v, ok := l.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (l *loader) bool(key string, def bool) bool {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (l *loader) int(key string, def int) int {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
