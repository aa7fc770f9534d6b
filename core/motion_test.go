package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/orbitsim/model"
)

func TestRotate_ZeroDeltaNoChange(t *testing.T) {
	rot := model.Rotation{Angle: 1.25, PeriodSeconds: EarthRotationPeriodSeconds}
	Rotate(&rot, FrameContext{Delta: 0, ScaleSeconds: 86400})
	if rot.Angle != 1.25 {
		t.Fatalf("zero delta should not rotate, got %v", rot.Angle)
	}
}

func TestRotate_QuarterDay(t *testing.T) {
	rot := model.Rotation{PeriodSeconds: EarthRotationPeriodSeconds}
	// One real second at the 1-hour preset, six times: 6 simulated hours.
	for i := 0; i < 6; i++ {
		Rotate(&rot, FrameContext{Delta: 1, ScaleSeconds: 3600})
	}
	if !scalar.EqualWithinAbs(rot.Angle, math.Pi/2, tol) {
		t.Fatalf("angle after 6h = %v, want π/2", rot.Angle)
	}
}

func TestRotate_WrapsAfterFullTurn(t *testing.T) {
	rot := model.Rotation{PeriodSeconds: EarthRotationPeriodSeconds}
	Rotate(&rot, FrameContext{Delta: 1.5, ScaleSeconds: 86400})
	if !scalar.EqualWithinAbs(rot.Angle, math.Pi, 1e-9) {
		t.Fatalf("angle after 1.5 days = %v, want π", rot.Angle)
	}
}

func TestRotate_IgnoresNonPositivePeriod(t *testing.T) {
	rot := model.Rotation{Angle: 0.5}
	Rotate(&rot, FrameContext{Delta: 1, ScaleSeconds: 60})
	if rot.Angle != 0.5 {
		t.Fatalf("expected unchanged angle, got %v", rot.Angle)
	}
}

func TestRotationModel_Update(t *testing.T) {
	b := &model.Body{
		ID:      1,
		Variant: &model.CentralBody{Radius: EarthRadiusKm, Rotation: model.Rotation{PeriodSeconds: 100}},
	}
	poly, err := RotationModel{}.Update(FrameContext{Delta: 25, ScaleSeconds: 1}, b)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if poly != nil {
		t.Fatalf("rotation model should not emit a trace")
	}
	c, _ := b.Central()
	if !scalar.EqualWithinAbs(c.Rotation.Angle, math.Pi/2, tol) {
		t.Fatalf("angle = %v, want π/2", c.Rotation.Angle)
	}
	if b.Position != (model.Vec3{}) {
		t.Fatalf("central body must stay at the origin, got %+v", b.Position)
	}
}

func TestRotationModel_RejectsOrbitingBody(t *testing.T) {
	b := &model.Body{ID: 2, Variant: &model.OrbitingBody{}}
	if _, err := (RotationModel{}).Update(FrameContext{Delta: 1, ScaleSeconds: 1}, b); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewMotionModel_SelectsByVariant(t *testing.T) {
	p := NewPropagator()

	mm, err := NewMotionModel(&model.Body{Variant: &model.CentralBody{}}, p)
	if err != nil {
		t.Fatalf("central: %v", err)
	}
	if _, ok := mm.(RotationModel); !ok {
		t.Fatalf("central body got %T, want RotationModel", mm)
	}

	mm, err = NewMotionModel(&model.Body{Variant: &model.OrbitingBody{}}, p)
	if err != nil {
		t.Fatalf("orbiting: %v", err)
	}
	om, ok := mm.(OrbitalMotionModel)
	if !ok {
		t.Fatalf("orbiting body got %T, want OrbitalMotionModel", mm)
	}
	if om.Propagator != p {
		t.Fatalf("orbital model should share the propagator")
	}

	if _, err := NewMotionModel(&model.Body{}, p); err == nil {
		t.Fatalf("expected error for body without variant")
	}
}

func TestOrbitalMotionModel_ReturnsTrace(t *testing.T) {
	b := newTestSatellite(t, model.OrbitalElements{}, 6771, 7.67)
	poly, err := OrbitalMotionModel{Propagator: NewPropagator()}.Update(FrameContext{Delta: 1.0 / 60, ScaleSeconds: 60}, b)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if poly == nil || len(poly.Vertices) != OrbitResolution+1 {
		t.Fatalf("expected a full trace, got %+v", poly)
	}
}

func TestSanitizeDelta(t *testing.T) {
	cases := map[string]struct {
		in, want float64
	}{
		"positive": {0.016, 0.016},
		"zero":     {0, 0},
		"negative": {-1, 0},
		"nan":      {math.NaN(), 0},
		"+inf":     {math.Inf(1), 0},
		"-inf":     {math.Inf(-1), 0},
	}
	for name, tc := range cases {
		if got := SanitizeDelta(tc.in); got != tc.want {
			t.Errorf("%s: SanitizeDelta(%v) = %v, want %v", name, tc.in, got, tc.want)
		}
	}
}

func TestFrameContext_SimulatedSeconds(t *testing.T) {
	fc := FrameContext{Delta: 0.5, ScaleSeconds: 3600}
	if got := fc.SimulatedSeconds(); got != 1800 {
		t.Fatalf("SimulatedSeconds = %v, want 1800", got)
	}
}
