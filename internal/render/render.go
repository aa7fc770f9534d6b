// Package render holds the per-frame output handed to the external renderer:
// body transforms, coloured polylines and the status text.
package render

import (
	"context"
	"errors"
	"sync/atomic"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/orbitsim/model"
)

var (
	// TraceColor is the base colour of orbit traces (CSS dark slate grey).
	TraceColor = mustHex("#2f4f4f")
	// AxisColor is used for the central body's rotation axis.
	AxisColor = colorful.Color{R: 1, G: 1, B: 1}
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// RGBA is a straight (non-premultiplied) colour with components in [0, 1].
type RGBA struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// WithAlpha combines c with an alpha value clamped to [0, 1].
func WithAlpha(c colorful.Color, alpha float64) RGBA {
	c = c.Clamped()
	switch {
	case alpha < 0:
		alpha = 0
	case alpha > 1:
		alpha = 1
	}
	return RGBA{R: c.R, G: c.G, B: c.B, A: alpha}
}

// Hex returns the colour without alpha as #rrggbb.
func (c RGBA) Hex() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Hex()
}

// Vertex is one point of a polyline.
type Vertex struct {
	Position model.Vec3 `json:"position"`
	Color    RGBA       `json:"color"`
}

// Polyline is a strip of line segments attributed to a body.
type Polyline struct {
	BodyID   model.BodyID `json:"body_id"`
	Vertices []Vertex     `json:"vertices"`
}

// BodyTransform is the renderer-facing state of one body.
type BodyTransform struct {
	ID       model.BodyID `json:"id"`
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Position model.Vec3   `json:"position"`
	// RotationAngle is the self-rotation about +Y (central bodies).
	RotationAngle float64 `json:"rotation_angle"`
	// Phase is the orbital phase angle (orbiting bodies).
	Phase float64 `json:"phase"`
}

// Frame is everything produced by one simulation tick.
type Frame struct {
	Index        uint64          `json:"index"`
	Delta        float64         `json:"delta"`
	ScaleIndex   int             `json:"scale_index"`
	ScaleSeconds float64         `json:"scale_seconds"`
	Speed        string          `json:"speed"`
	Status       string          `json:"status"`
	Bodies       []BodyTransform `json:"bodies"`
	Traces       []Polyline      `json:"traces,omitempty"`
	Axes         []Polyline      `json:"axes,omitempty"`
}

// WithoutGeometry returns a shallow copy of f with traces and axes dropped.
func (f *Frame) WithoutGeometry() *Frame {
	cp := *f
	cp.Traces = nil
	cp.Axes = nil
	return &cp
}

// Sink consumes frames. Frames are immutable once submitted.
type Sink interface {
	Submit(ctx context.Context, f *Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, f *Frame) error

func (fn SinkFunc) Submit(ctx context.Context, f *Frame) error { return fn(ctx, f) }

// MultiSink fans a frame out to several sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) Submit(ctx context.Context, f *Frame) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Submit(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest keeps the most recently submitted frame for concurrent readers.
type Latest struct {
	frame atomic.Pointer[Frame]
}

func (l *Latest) Submit(_ context.Context, f *Frame) error {
	l.frame.Store(f)
	return nil
}

// Load returns the last frame, or nil before the first tick.
func (l *Latest) Load() *Frame {
	return l.frame.Load()
}
