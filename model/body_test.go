package model

import (
	"math"
	"testing"
)

func TestBodyClone_DeepCopiesVariant(t *testing.T) {
	b := &Body{
		ID:       2,
		Name:     "sat-1",
		Position: Vec3{X: 6771},
		Variant:  &OrbitingBody{State: OrbitState{AngularSpeed: 7.67, Angle: 1}},
	}
	cp := b.Clone()

	o, _ := cp.Orbiting()
	o.State.Angle = 2
	cp.Position.X = 0

	orig, _ := b.Orbiting()
	if orig.State.Angle != 1 || b.Position.X != 6771 {
		t.Fatalf("clone shares state with the original")
	}
}

func TestBodyKind(t *testing.T) {
	if (&Body{Variant: &CentralBody{}}).Kind() != KindCentral {
		t.Fatalf("central kind")
	}
	if (&Body{Variant: &OrbitingBody{}}).Kind() != KindOrbiting {
		t.Fatalf("orbiting kind")
	}
	if got := (&Body{}).Kind(); got.String() != "unknown" {
		t.Fatalf("kind without variant = %s", got)
	}
	var nilBody *Body
	if nilBody.Clone() != nil {
		t.Fatalf("nil clone")
	}
}

func TestVec3(t *testing.T) {
	a := Vec3{X: 3, Y: 4}
	if a.Norm() != 5 {
		t.Fatalf("norm = %v", a.Norm())
	}
	if d := a.DistanceTo(Vec3{X: 3, Y: 4, Z: 12}); d != 12 {
		t.Fatalf("distance = %v", d)
	}
	if a.Add(a).Sub(a) != a || a.Scale(2).Dot(a) != 50 {
		t.Fatalf("vector arithmetic")
	}
	if !a.IsFinite() || (Vec3{Y: math.NaN()}).IsFinite() || (Vec3{Z: math.Inf(1)}).IsFinite() {
		t.Fatalf("IsFinite")
	}
}
