package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orbitsim/internal/logging"
	"github.com/signalsfoundry/orbitsim/internal/observability"
	"github.com/signalsfoundry/orbitsim/internal/render"
	"github.com/signalsfoundry/orbitsim/kb"
	"github.com/signalsfoundry/orbitsim/model"
	"github.com/signalsfoundry/orbitsim/timectrl"
)

const tracerName = "github.com/signalsfoundry/orbitsim/core"

// axisMargin extends the drawn rotation axis beyond the central body's surface (km).
const axisMargin = 110.0

// MetricsRecorder receives per-tick measurements. It is satisfied by
// *observability.SimCollector.
type MetricsRecorder interface {
	ObserveFrame(d time.Duration, scaleSeconds float64)
	IncSpeedChange(direction string)
	IncPropagationError()
}

type noopMetrics struct{}

func (noopMetrics) ObserveFrame(time.Duration, float64) {}
func (noopMetrics) IncSpeedChange(string)               {}
func (noopMetrics) IncPropagationError()                {}

// SimulationEngine runs one tick per rendered frame: it applies queued input
// events to the clock, advances every body once and hands the resulting
// frame to the sink.
//
// Tick must be called from a single goroutine. Other goroutines interact only
// through Inputs() and whatever sink observes the published frames.
type SimulationEngine struct {
	registry   *kb.Registry
	clock      *timectrl.SimulationClock
	inputs     *InputQueue
	propagator *Propagator

	sink    render.Sink
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	frames     uint64
	lastStatus string
}

// EngineOption customises a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithSink sets the frame consumer.
func WithSink(s render.Sink) EngineOption {
	return func(e *SimulationEngine) { e.sink = s }
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *SimulationEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetricsRecorder wires per-tick metrics.
func WithMetricsRecorder(m MetricsRecorder) EngineOption {
	return func(e *SimulationEngine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithPropagator replaces the default propagator.
func WithPropagator(p *Propagator) EngineOption {
	return func(e *SimulationEngine) {
		if p != nil {
			e.propagator = p
		}
	}
}

// NewSimulationEngine constructs an engine over the bodies in reg. A nil
// clock selects the default preset.
func NewSimulationEngine(reg *kb.Registry, clock *timectrl.SimulationClock, opts ...EngineOption) *SimulationEngine {
	if clock == nil {
		clock = timectrl.NewSimulationClock()
	}
	e := &SimulationEngine{
		registry:   reg,
		clock:      clock,
		inputs:     &InputQueue{},
		propagator: NewPropagator(),
		log:        logging.Noop(),
		metrics:    noopMetrics{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Inputs returns the queue drained at the start of every tick.
func (e *SimulationEngine) Inputs() *InputQueue { return e.inputs }

// Clock returns the engine's clock. Only the ticking goroutine may use it.
func (e *SimulationEngine) Clock() *timectrl.SimulationClock { return e.clock }

// OnFrame adapts the engine to a timectrl.TimeController listener.
func (e *SimulationEngine) OnFrame(f timectrl.Frame) {
	if _, err := e.Tick(context.Background(), f.Delta); err != nil {
		e.log.Warn(context.Background(), "tick completed with errors",
			logging.Uint64("frame", f.Index),
			logging.Err(err),
		)
	}
}

// Tick advances the scene by delta real seconds and returns the frame that
// was submitted to the sink. Body failures do not stop the other bodies from
// updating; they are joined into the returned error.
func (e *SimulationEngine) Tick(ctx context.Context, delta float64) (*render.Frame, error) {
	start := time.Now()
	e.frames++

	ctx, span := e.tracer.Start(ctx, "engine.Tick",
		trace.WithAttributes(observability.FrameIndexKey.Int64(int64(e.frames))),
	)
	defer span.End()

	if clean := SanitizeDelta(delta); clean != delta {
		e.log.Debug(ctx, "clamped invalid frame delta",
			logging.Uint64("frame", e.frames),
			logging.Float64("delta", delta),
		)
		delta = clean
	}

	e.applyInputs(ctx)

	fc := FrameContext{
		Index:        e.frames,
		Delta:        delta,
		ScaleSeconds: e.clock.ScaleSeconds(),
	}
	span.SetAttributes(
		attribute.Float64("frame.delta", fc.Delta),
		attribute.Float64("clock.scale_seconds", fc.ScaleSeconds),
	)

	bodies := e.registry.ListBodies()
	frame := &render.Frame{
		Index:        fc.Index,
		Delta:        fc.Delta,
		ScaleIndex:   e.clock.ScaleIndex(),
		ScaleSeconds: fc.ScaleSeconds,
		Speed:        e.clock.Describe(),
		Status:       e.clock.StatusLine(),
		Bodies:       make([]render.BodyTransform, 0, len(bodies)),
	}

	var errs []error
	for _, b := range bodies {
		if err := e.updateBody(fc, b, frame); err != nil {
			e.metrics.IncPropagationError()
			errs = append(errs, err)
		}
	}

	if e.sink != nil {
		if err := e.sink.Submit(ctx, frame); err != nil {
			errs = append(errs, fmt.Errorf("submit frame %d: %w", fc.Index, err))
		}
	}

	e.metrics.ObserveFrame(time.Since(start), fc.ScaleSeconds)

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return frame, err
}

func (e *SimulationEngine) applyInputs(ctx context.Context) {
	for _, ev := range e.inputs.Drain() {
		var changed bool
		var direction string
		switch ev {
		case SpeedUp:
			changed, direction = e.clock.IncreaseSpeed(), "up"
		case SlowDown:
			changed, direction = e.clock.DecreaseSpeed(), "down"
		}
		if changed {
			e.metrics.IncSpeedChange(direction)
		}
	}

	if status := e.clock.StatusLine(); status != e.lastStatus {
		if e.lastStatus != "" {
			e.log.Info(ctx, "simulation speed changed",
				logging.String("speed", e.clock.Describe()),
				logging.Float64("scale_seconds", e.clock.ScaleSeconds()),
			)
		}
		e.lastStatus = status
	}
}

func (e *SimulationEngine) updateBody(fc FrameContext, b *model.Body, frame *render.Frame) error {
	mm, err := NewMotionModel(b, e.propagator)
	if err != nil {
		return err
	}
	poly, err := mm.Update(fc, b)
	if err != nil {
		return err
	}

	xf := render.BodyTransform{
		ID:       b.ID,
		Name:     b.Name,
		Kind:     b.Kind().String(),
		Position: b.Position,
	}
	switch v := b.Variant.(type) {
	case *model.CentralBody:
		xf.RotationAngle = v.Rotation.Angle
		frame.Axes = append(frame.Axes, rotationAxis(b.ID, v.Radius))
	case *model.OrbitingBody:
		xf.Phase = v.State.Angle
	}
	frame.Bodies = append(frame.Bodies, xf)

	if poly != nil && len(poly.Vertices) > 0 {
		frame.Traces = append(frame.Traces, *poly)
	}
	return nil
}

// rotationAxis is the central body's spin axis along Y, drawn slightly
// longer than its diameter.
func rotationAxis(id model.BodyID, radius float64) render.Polyline {
	half := radius + axisMargin
	color := render.WithAlpha(render.AxisColor, 1)
	return render.Polyline{
		BodyID: id,
		Vertices: []render.Vertex{
			{Position: model.Vec3{Y: -half}, Color: color},
			{Position: model.Vec3{Y: half}, Color: color},
		},
	}
}
