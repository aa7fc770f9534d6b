package core

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/orbitsim/model"
)

// EarthRadiusKm is the mean Earth radius (kilometres).
const EarthRadiusKm = 6371.0

// TwoPi is one full turn in radians.
const TwoPi = 2 * math.Pi

// WrapAngle reduces a into [0, 2π) by whole turns.
func WrapAngle(a float64) float64 {
	if a >= 0 && a < TwoPi {
		return a
	}
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	// -ε + 2π can round up to exactly 2π.
	if a >= TwoPi {
		a = 0
	}
	return a
}

// rotX is the right-handed rotation about +X.
func rotX(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// rotY is the right-handed rotation about +Y.
func rotY(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

// orbitOrientation returns R_y(Ω)·R_x(i), the rotation taking the reference
// XZ plane onto the orbital plane.
func orbitOrientation(el model.OrbitalElements) *mat.Dense {
	var m mat.Dense
	m.Mul(rotY(el.AscendingNodeLongitude), rotX(el.Inclination))
	return &m
}

// planeBasis is the orbital plane spanned by the images of +X and +Z.
type planeBasis struct {
	u, w model.Vec3
}

func newPlaneBasis(el model.OrbitalElements) planeBasis {
	m := orbitOrientation(el)
	col := func(j int) model.Vec3 {
		c := mat.Col(nil, j, m)
		return model.Vec3{X: c[0], Y: c[1], Z: c[2]}
	}
	return planeBasis{u: col(0), w: col(2)}
}

// PathFunc maps a phase angle to a world position.
type PathFunc func(t float64) model.Vec3

// path returns P(t) = radius · (sin t · u + cos t · w).
func (b planeBasis) path(radius float64) PathFunc {
	u := b.u.Scale(radius)
	w := b.w.Scale(radius)
	return func(t float64) model.Vec3 {
		s, c := math.Sincos(t)
		return u.Scale(s).Add(w.Scale(c))
	}
}

// OrbitPath returns the circular path of radius r in the plane described by
// el: P(t) = R_y(Ω)·R_x(i)·(r·[sin t, 0, cos t]).
func OrbitPath(el model.OrbitalElements, radius float64) PathFunc {
	return newPlaneBasis(el).path(radius)
}
