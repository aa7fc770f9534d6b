package core

import (
	"errors"
	"fmt"
	"math"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/orbitsim/internal/render"
	"github.com/signalsfoundry/orbitsim/model"
)

// OrbitResolution is the number of segments in a drawn orbit trace.
const OrbitResolution = 1000

// ErrDegenerateOrbit reports an orbit whose radius is zero or not finite.
var ErrDegenerateOrbit = errors.New("degenerate orbit radius")

// AngleDelta converts the body's speed constant into a phase increment:
// scaleSeconds · angularSpeed · delta / radius.
//
// The speed constant is divided by the radius without unit reconciliation,
// so farther bodies turn more slowly for the same constant. This is a visual
// model and not Keplerian motion.
func AngleDelta(scaleSeconds, angularSpeed, delta, radius float64) float64 {
	return scaleSeconds * angularSpeed * delta / radius
}

// ValidRadius reports whether r can describe a circular orbit.
func ValidRadius(r float64) bool {
	return r > 0 && !math.IsInf(r, 0)
}

// Propagator advances orbiting bodies and samples their traces.
type Propagator struct {
	// Resolution is the number of trace segments; values < 1 disable traces.
	Resolution int
	// TraceColor is the trace colour at full opacity.
	TraceColor colorful.Color

	mu    sync.Mutex
	bases map[*model.OrbitingBody]planeBasis
}

// NewPropagator returns a propagator with the default resolution and colour.
func NewPropagator() *Propagator {
	return &Propagator{
		Resolution: OrbitResolution,
		TraceColor: render.TraceColor,
		bases:      make(map[*model.OrbitingBody]planeBasis),
	}
}

// basis caches the plane orientation; orbital elements never change after spawn.
func (p *Propagator) basis(o *model.OrbitingBody) planeBasis {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bases == nil {
		p.bases = make(map[*model.OrbitingBody]planeBasis)
	}
	b, ok := p.bases[o]
	if !ok {
		b = newPlaneBasis(o.Elements)
		p.bases[o] = b
	}
	return b
}

// Propagate advances b by one frame and returns the trace of its orbit,
// starting at the new position and fading out one revolution ahead.
//
// The radius is re-derived from the current position every frame. With a
// zero delta neither the phase nor the position is touched.
func (p *Propagator) Propagate(fc FrameContext, b *model.Body) (render.Polyline, error) {
	o, ok := b.Orbiting()
	if !ok {
		return render.Polyline{}, fmt.Errorf("propagate body %d: not an orbiting body", b.ID)
	}

	radius := b.Position.Norm()
	if !ValidRadius(radius) {
		return render.Polyline{}, fmt.Errorf("propagate body %d (%q): radius %v: %w", b.ID, b.Name, radius, ErrDegenerateOrbit)
	}

	path := p.basis(o).path(radius)

	delta := AngleDelta(fc.ScaleSeconds, o.State.AngularSpeed, fc.Delta, radius)
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return render.Polyline{}, fmt.Errorf("propagate body %d (%q): non-finite phase step %v", b.ID, b.Name, delta)
	}
	if delta != 0 {
		o.State.Angle = WrapAngle(o.State.Angle + delta)
		b.Position = path(o.State.Angle)
	}

	return render.Polyline{
		BodyID:   b.ID,
		Vertices: SampleTrace(path, o.State.Angle, p.Resolution, p.TraceColor),
	}, nil
}

// SampleTrace samples path at resolution+1 evenly spaced phases covering one
// revolution from start. Alpha falls linearly from 1 at start to 0 one
// revolution ahead.
func SampleTrace(path PathFunc, start float64, resolution int, base colorful.Color) []render.Vertex {
	if resolution < 1 {
		return nil
	}
	out := make([]render.Vertex, 0, resolution+1)
	for n := 0; n <= resolution; n++ {
		f := float64(n) / float64(resolution)
		out = append(out, render.Vertex{
			Position: path(start + f*TwoPi),
			Color:    render.WithAlpha(base, 1-f),
		})
	}
	return out
}
