package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/orbitsim/internal/logging"
)

// FrameIndexKey is the span attribute carrying the frame number. Tick spans
// set it at start so the sampler can see it.
const FrameIndexKey = attribute.Key("frame.index")

// TracingConfig governs how tick tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp collector, default localhost:4317

	// FrameEvery keeps one tick span in every FrameEvery frames. Values
	// below 1 keep every frame.
	FrameEvery uint64

	// Scene describes the run; it is attached to the tracer resource.
	Scene SceneInfo

	// Writer receives stdout exporter output; defaults to os.Stdout.
	Writer io.Writer
}

// SceneInfo identifies what a trace was recorded against.
type SceneInfo struct {
	Source        string
	Satellites    int
	FrameMode     string
	FrameInterval time.Duration
	InitialSpeed  string
}

func (s SceneInfo) attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if s.Source != "" {
		attrs = append(attrs, attribute.String("orbitsim.scene.source", s.Source))
	}
	if s.Satellites > 0 {
		attrs = append(attrs, attribute.Int("orbitsim.scene.satellites", s.Satellites))
	}
	if s.FrameMode != "" {
		attrs = append(attrs, attribute.String("orbitsim.frame.mode", s.FrameMode))
	}
	if s.FrameInterval > 0 {
		attrs = append(attrs, attribute.Float64("orbitsim.frame.interval_seconds", s.FrameInterval.Seconds()))
	}
	if s.InitialSpeed != "" {
		attrs = append(attrs, attribute.String("orbitsim.clock.initial_speed", s.InitialSpeed))
	}
	return attrs
}

// InitTracing installs the global tracer provider. Disabled tracing installs
// a noop provider. The returned function flushes and stops the exporter.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service := cfg.ServiceName
	if service == "" {
		service = "orbitsim"
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", service),
		attribute.String("service.namespace", "orbitsim"),
	}, cfg.Scene.attributes()...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := NewFrameSampler(cfg.FrameEvery)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", service),
		logging.String("sampler", sampler.Description()),
	)

	return tp.Shutdown, nil
}

// FrameSampler keeps root spans whose frame index is a multiple of every.
// Spans without a frame index are always kept. Unlike a trace-ID ratio the
// choice is repeatable: an accelerated run samples the same frames each time.
type FrameSampler struct {
	every uint64
}

// NewFrameSampler returns a sampler keeping one frame in every; 0 keeps all.
func NewFrameSampler(every uint64) FrameSampler {
	if every < 1 {
		every = 1
	}
	return FrameSampler{every: every}
}

func (s FrameSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	decision := sdktrace.RecordAndSample
	for _, kv := range p.Attributes {
		if kv.Key == FrameIndexKey && uint64(kv.Value.AsInt64())%s.every != 0 {
			decision = sdktrace.Drop
			break
		}
	}
	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s FrameSampler) Description() string {
	return fmt.Sprintf("FrameSampler{every=%d}", s.every)
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout", "":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes pending spans, giving up after five seconds.
// Failures are logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
