package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/orbitsim/model"
)

const tol = 1e-9

func TestWrapAngle(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{1, 1},
		{TwoPi, 0},
		{TwoPi + 0.5, 0.5},
		{-0.5, TwoPi - 0.5},
		{-3*TwoPi + 1, 1},
	}
	for _, tc := range cases {
		got := WrapAngle(tc.in)
		if !scalar.EqualWithinAbs(got, tc.want, tol) {
			t.Errorf("WrapAngle(%v) = %v, want %v", tc.in, got, tc.want)
		}
		if got < 0 || got >= TwoPi {
			t.Errorf("WrapAngle(%v) = %v, outside [0, 2π)", tc.in, got)
		}
	}
}

func TestWrapAngle_TinyNegativeStaysInRange(t *testing.T) {
	got := WrapAngle(-1e-18)
	if got < 0 || got >= TwoPi {
		t.Fatalf("WrapAngle(-1e-18) = %v, outside [0, 2π)", got)
	}
}

func TestOrbitPath_EquatorialStaysInPlane(t *testing.T) {
	const r = 6771.0
	path := OrbitPath(model.OrbitalElements{}, r)

	for _, phase := range []float64{0, 0.3, math.Pi / 2, 2, math.Pi, 4.5} {
		p := path(phase)
		if p.Y != 0 {
			t.Fatalf("phase %v: Y = %v, want exactly 0", phase, p.Y)
		}
		if !scalar.EqualWithinAbs(p.Norm(), r, 1e-6) {
			t.Fatalf("phase %v: |P| = %v, want %v", phase, p.Norm(), r)
		}
	}

	// Phase π/2 lies on +X, phase 0 on +Z.
	px := path(math.Pi / 2)
	if !scalar.EqualWithinAbs(px.X, r, 1e-6) || !scalar.EqualWithinAbs(px.Z, 0, 1e-6) {
		t.Fatalf("P(π/2) = %+v, want (%v, 0, 0)", px, r)
	}
	pz := path(0)
	if !scalar.EqualWithinAbs(pz.Z, r, 1e-6) || !scalar.EqualWithinAbs(pz.X, 0, 1e-6) {
		t.Fatalf("P(0) = %+v, want (0, 0, %v)", pz, r)
	}
}

func TestOrbitPath_PolarTiltsIntoY(t *testing.T) {
	const r = 7000.0
	path := OrbitPath(model.OrbitalElements{Inclination: math.Pi / 2}, r)

	p := path(0)
	if !scalar.EqualWithinAbs(p.Y, -r, 1e-6) {
		t.Fatalf("polar orbit P(0) = %+v, want Y = %v", p, -r)
	}
	if !scalar.EqualWithinAbs(p.X, 0, 1e-6) || !scalar.EqualWithinAbs(p.Z, 0, 1e-6) {
		t.Fatalf("polar orbit P(0) = %+v, want on the Y axis", p)
	}
}

func TestOrbitPath_RadiusPreservedForAnyPlane(t *testing.T) {
	const r = 6771.0
	for _, incl := range []float64{0, 0.4, math.Pi / 4, -math.Pi / 3, math.Pi, 3 * math.Pi / 2} {
		for _, node := range []float64{0, -math.Pi / 4, 1, math.Pi} {
			path := OrbitPath(model.OrbitalElements{Inclination: incl, AscendingNodeLongitude: node}, r)
			for phase := 0.0; phase < TwoPi; phase += 0.37 {
				if got := path(phase).Norm(); !scalar.EqualWithinRel(got, r, tol) {
					t.Fatalf("i=%v Ω=%v phase=%v: |P| = %v, want %v", incl, node, phase, got, r)
				}
			}
		}
	}
}

func TestPlaneBasis_Orthonormal(t *testing.T) {
	b := newPlaneBasis(model.OrbitalElements{Inclination: 0.7, AscendingNodeLongitude: -1.2})
	if !scalar.EqualWithinAbs(b.u.Norm(), 1, tol) || !scalar.EqualWithinAbs(b.w.Norm(), 1, tol) {
		t.Fatalf("basis not unit length: |u|=%v |w|=%v", b.u.Norm(), b.w.Norm())
	}
	if !scalar.EqualWithinAbs(b.u.Dot(b.w), 0, tol) {
		t.Fatalf("basis not orthogonal: u·w=%v", b.u.Dot(b.w))
	}
}
