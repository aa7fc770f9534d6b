package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/orbitsim/internal/render"
	"github.com/signalsfoundry/orbitsim/model"
)

// FrameContext carries the values every body update in one tick must agree
// on. It is built once per tick after input events have been applied.
type FrameContext struct {
	Index uint64
	// Delta is the real time since the previous frame in seconds (>= 0).
	Delta float64
	// ScaleSeconds is the simulated seconds per real second.
	ScaleSeconds float64
}

// SimulatedSeconds is the simulated time covered by this frame.
func (fc FrameContext) SimulatedSeconds() float64 {
	return fc.ScaleSeconds * fc.Delta
}

// SanitizeDelta clamps negative, NaN and infinite frame deltas to zero.
func SanitizeDelta(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return d
}

// MotionModel advances one body by one frame. It may return a trace to draw.
type MotionModel interface {
	Update(fc FrameContext, b *model.Body) (*render.Polyline, error)
}

// RotationModel spins central bodies about +Y.
type RotationModel struct{}

// Update advances the body's self-rotation.
func (RotationModel) Update(fc FrameContext, b *model.Body) (*render.Polyline, error) {
	c, ok := b.Central()
	if !ok {
		return nil, fmt.Errorf("rotation model: body %d is %s", b.ID, b.Kind())
	}
	Rotate(&c.Rotation, fc)
	return nil, nil
}

// Rotate advances rot by (2π/period)·scale·delta and wraps it into [0, 2π).
// A zero delta leaves the angle untouched.
func Rotate(rot *model.Rotation, fc FrameContext) {
	if fc.Delta == 0 || rot.PeriodSeconds <= 0 {
		return
	}
	rate := TwoPi / rot.PeriodSeconds
	rot.Angle = WrapAngle(rot.Angle + rate*fc.ScaleSeconds*fc.Delta)
}

// OrbitalMotionModel moves orbiting bodies along their circular path.
type OrbitalMotionModel struct {
	Propagator *Propagator
}

// Update propagates the body and returns its orbit trace.
func (m OrbitalMotionModel) Update(fc FrameContext, b *model.Body) (*render.Polyline, error) {
	trace, err := m.Propagator.Propagate(fc, b)
	if err != nil {
		return nil, err
	}
	return &trace, nil
}

// NewMotionModel chooses the MotionModel for a body's variant.
func NewMotionModel(b *model.Body, p *Propagator) (MotionModel, error) {
	switch b.Variant.(type) {
	case *model.CentralBody:
		return RotationModel{}, nil
	case *model.OrbitingBody:
		return OrbitalMotionModel{Propagator: p}, nil
	default:
		return nil, fmt.Errorf("no motion model for body %d (%s)", b.ID, b.Kind())
	}
}
