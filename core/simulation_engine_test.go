package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/orbitsim/internal/render"
	"github.com/signalsfoundry/orbitsim/kb"
	"github.com/signalsfoundry/orbitsim/model"
	"github.com/signalsfoundry/orbitsim/timectrl"
)

type fakeMetrics struct {
	mu         sync.Mutex
	frames     int
	lastScale  float64
	changes    map[string]int
	propErrors int
}

func (f *fakeMetrics) ObserveFrame(_ time.Duration, scale float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.lastScale = scale
}

func (f *fakeMetrics) IncSpeedChange(direction string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.changes == nil {
		f.changes = make(map[string]int)
	}
	f.changes[direction]++
}

func (f *fakeMetrics) IncPropagationError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.propErrors++
}

func newDefaultEngine(t *testing.T, opts ...EngineOption) (*SimulationEngine, *kb.Registry, *Scene) {
	t.Helper()
	reg := kb.NewRegistry()
	scene, err := BuildScene(reg, DefaultScene())
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	return NewSimulationEngine(reg, nil, opts...), reg, scene
}

func satellitePhases(t *testing.T, reg *kb.Registry, ids []model.BodyID) []float64 {
	t.Helper()
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		b, err := reg.Body(id)
		if err != nil {
			t.Fatalf("Body(%d): %v", id, err)
		}
		out = append(out, orbitState(t, b).State.Angle)
	}
	return out
}

func TestEngineTick_ProducesFrame(t *testing.T) {
	var latest render.Latest
	e, _, scene := newDefaultEngine(t, WithSink(&latest))

	frame, err := e.Tick(context.Background(), 1.0/60)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if latest.Load() != frame {
		t.Fatalf("sink did not receive the returned frame")
	}
	if frame.Index != 1 {
		t.Fatalf("frame index = %d, want 1", frame.Index)
	}
	if len(frame.Bodies) != 1+len(scene.Satellites) {
		t.Fatalf("frame has %d bodies, want %d", len(frame.Bodies), 1+len(scene.Satellites))
	}
	if len(frame.Traces) != len(scene.Satellites) {
		t.Fatalf("frame has %d traces, want %d", len(frame.Traces), len(scene.Satellites))
	}
	for _, tr := range frame.Traces {
		if len(tr.Vertices) != OrbitResolution+1 {
			t.Fatalf("trace for body %d has %d vertices", tr.BodyID, len(tr.Vertices))
		}
	}
	if len(frame.Axes) != 1 {
		t.Fatalf("frame has %d axes, want 1", len(frame.Axes))
	}
	axis := frame.Axes[0]
	if axis.BodyID != scene.Central || len(axis.Vertices) != 2 {
		t.Fatalf("unexpected axis %+v", axis)
	}
	if axis.Vertices[0].Position.Y != -(EarthRadiusKm+axisMargin) || axis.Vertices[1].Position.Y != EarthRadiusKm+axisMargin {
		t.Fatalf("axis endpoints = %+v", axis.Vertices)
	}
	if frame.Speed != "1 hour" || frame.Status != "1 second = 1 hour" {
		t.Fatalf("speed = %q status = %q", frame.Speed, frame.Status)
	}
}

func TestEngineTick_InputsAppliedBeforeUpdate(t *testing.T) {
	metrics := &fakeMetrics{}
	e, reg, scene := newDefaultEngine(t, WithMetricsRecorder(metrics))
	before := satellitePhases(t, reg, scene.Satellites)

	e.Inputs().Push(SpeedUp)
	frame, err := e.Tick(context.Background(), 1.0/60)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if frame.ScaleSeconds != 86400 || frame.Speed != "1 day" {
		t.Fatalf("frame scale = %v (%s), want 1 day", frame.ScaleSeconds, frame.Speed)
	}

	// Every satellite in the default scene shares radius and speed, so all
	// of them must advance by the step computed at the new scale.
	radius := EarthRadiusKm + DefaultAltitudeKm
	want := AngleDelta(86400, DefaultAngularSpeed, 1.0/60, radius)
	after := satellitePhases(t, reg, scene.Satellites)
	for i := range after {
		step := WrapAngle(after[i] - before[i])
		if !scalar.EqualWithinAbs(step, want, 1e-9) {
			t.Fatalf("satellite %d advanced %v, want %v", i, step, want)
		}
	}

	if metrics.changes["up"] != 1 {
		t.Fatalf("speed changes = %v, want one up", metrics.changes)
	}
	if metrics.frames != 1 || metrics.lastScale != 86400 {
		t.Fatalf("frames = %d scale = %v", metrics.frames, metrics.lastScale)
	}
}

func TestEngineTick_ClampedInputNotCounted(t *testing.T) {
	metrics := &fakeMetrics{}
	clock, err := timectrl.NewSimulationClockAt("1 second")
	if err != nil {
		t.Fatalf("NewSimulationClockAt: %v", err)
	}
	reg := kb.NewRegistry()
	if _, err := BuildScene(reg, DefaultScene()); err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	e := NewSimulationEngine(reg, clock, WithMetricsRecorder(metrics))

	e.Inputs().Push(SlowDown)
	if _, err := e.Tick(context.Background(), 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(metrics.changes) != 0 {
		t.Fatalf("clamped decrease should not count, got %v", metrics.changes)
	}
	if e.Clock().ScaleIndex() != 0 {
		t.Fatalf("scale index = %d, want 0", e.Clock().ScaleIndex())
	}
}

func TestEngineTick_InvalidDeltaFreezesScene(t *testing.T) {
	e, reg, scene := newDefaultEngine(t)
	before := satellitePhases(t, reg, scene.Satellites)

	for _, d := range []float64{math.NaN(), -1, math.Inf(1), 0} {
		frame, err := e.Tick(context.Background(), d)
		if err != nil {
			t.Fatalf("Tick(%v): %v", d, err)
		}
		if frame.Delta != 0 {
			t.Fatalf("Tick(%v): frame delta = %v, want 0", d, frame.Delta)
		}
	}

	after := satellitePhases(t, reg, scene.Satellites)
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("satellite %d moved on invalid delta: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestEngineTick_BodyErrorDoesNotStopOthers(t *testing.T) {
	metrics := &fakeMetrics{}
	e, reg, scene := newDefaultEngine(t, WithMetricsRecorder(metrics))

	// A satellite collapsed onto the origin cannot be propagated.
	if _, err := reg.AddBody(&model.Body{Name: "broken", Variant: &model.OrbitingBody{}}); err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	before := satellitePhases(t, reg, scene.Satellites)

	frame, err := e.Tick(context.Background(), 1.0/60)
	if !errors.Is(err, ErrDegenerateOrbit) {
		t.Fatalf("expected ErrDegenerateOrbit, got %v", err)
	}
	if metrics.propErrors != 1 {
		t.Fatalf("propagation errors = %d, want 1", metrics.propErrors)
	}
	if len(frame.Traces) != len(scene.Satellites) {
		t.Fatalf("healthy satellites should still publish traces, got %d", len(frame.Traces))
	}
	after := satellitePhases(t, reg, scene.Satellites)
	for i := range before {
		if after[i] == before[i] {
			t.Fatalf("satellite %d did not move", i)
		}
	}
}

func TestEngineTick_SinkErrorReturned(t *testing.T) {
	boom := errors.New("boom")
	e, _, _ := newDefaultEngine(t, WithSink(render.SinkFunc(func(context.Context, *render.Frame) error {
		return boom
	})))
	if _, err := e.Tick(context.Background(), 1.0/60); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestEngineTick_CentralBodyRotates(t *testing.T) {
	e, reg, scene := newDefaultEngine(t)
	if _, err := e.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	b, err := reg.Body(scene.Central)
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	c, _ := b.Central()
	// One real second at one hour per second is 1/24 of a turn.
	if !scalar.EqualWithinAbs(c.Rotation.Angle, TwoPi/24, 1e-12) {
		t.Fatalf("rotation = %v, want %v", c.Rotation.Angle, TwoPi/24)
	}
}

func TestEngine_OnFrameAdvances(t *testing.T) {
	var latest render.Latest
	e, _, _ := newDefaultEngine(t, WithSink(&latest))

	tc := timectrl.NewTimeController(time.Millisecond, timectrl.Accelerated)
	tc.AddListener(e.OnFrame)
	tc.Advance(500 * time.Millisecond)
	tc.Advance(500 * time.Millisecond)

	f := latest.Load()
	if f == nil || f.Index != 2 {
		t.Fatalf("expected two frames published, got %+v", f)
	}
}
