package model

// BodyID is the stable identifier of a body in the registry arena. IDs are
// assigned in insertion order starting at 1; the zero value means "unassigned".
type BodyID uint32

// Kind distinguishes the two body variants.
type Kind int

const (
	KindCentral Kind = iota
	KindOrbiting
)

func (k Kind) String() string {
	switch k {
	case KindCentral:
		return "central"
	case KindOrbiting:
		return "orbiting"
	default:
		return "unknown"
	}
}

// Variant is the per-kind payload of a Body. It is implemented only by
// *CentralBody and *OrbitingBody.
type Variant interface {
	Kind() Kind
	clone() Variant
}

// Rotation is a body's self-rotation phase.
type Rotation struct {
	Angle         float64 // radians, kept in [0, 2π)
	PeriodSeconds float64 // simulated seconds per full turn
}

// CentralBody is the planet at the origin. It rotates but does not orbit.
type CentralBody struct {
	Radius   float64 // km
	Rotation Rotation
}

func (*CentralBody) Kind() Kind { return KindCentral }

func (c *CentralBody) clone() Variant {
	cp := *c
	return &cp
}

// OrbitalElements are the static orbit parameters of an orbiting body.
// Only Inclination and AscendingNodeLongitude drive propagation; the
// remaining elements are carried for eccentric orbit support and are
// currently ignored.
type OrbitalElements struct {
	Inclination            float64 // i, radians
	AscendingNodeLongitude float64 // Ω, radians

	ArgumentOfPeriapsis float64 // ω, radians
	Eccentricity        float64
	SemiMajorAxis       float64 // km
	MeanAnomaly         float64 // radians
}

// OrbitState is the dynamic part of an orbit.
type OrbitState struct {
	// AngularSpeed is a distance-independent speed constant (km/s); the
	// propagator divides it by the orbital radius to obtain an angular rate.
	AngularSpeed float64
	// Angle is the current phase in [0, 2π).
	Angle float64
}

// OrbitingBody is a satellite on a circular orbit around the origin.
type OrbitingBody struct {
	Elements OrbitalElements
	State    OrbitState
}

func (*OrbitingBody) Kind() Kind { return KindOrbiting }

func (o *OrbitingBody) clone() Variant {
	cp := *o
	return &cp
}

// Body is a record in the scene arena.
type Body struct {
	ID       BodyID
	Name     string
	Position Vec3 // km, world frame
	Variant  Variant
}

// Kind returns the variant kind, or -1 when no variant is set.
func (b *Body) Kind() Kind {
	if b == nil || b.Variant == nil {
		return Kind(-1)
	}
	return b.Variant.Kind()
}

// Central returns the central-body payload, if b is one.
func (b *Body) Central() (*CentralBody, bool) {
	c, ok := b.Variant.(*CentralBody)
	return c, ok
}

// Orbiting returns the orbit payload, if b is an orbiting body.
func (b *Body) Orbiting() (*OrbitingBody, bool) {
	o, ok := b.Variant.(*OrbitingBody)
	return o, ok
}

// Clone returns a deep copy of b.
func (b *Body) Clone() *Body {
	if b == nil {
		return nil
	}
	cp := *b
	if b.Variant != nil {
		cp.Variant = b.Variant.clone()
	}
	return &cp
}
