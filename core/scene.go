package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orbitsim/kb"
	"github.com/signalsfoundry/orbitsim/model"
)

// ErrInvalidScene marks configuration errors detected while building a scene.
var ErrInvalidScene = errors.New("invalid scene")

const (
	// DefaultAltitudeKm is the demonstration satellites' altitude above the surface.
	DefaultAltitudeKm = 400.0
	// DefaultAngularSpeed is the demonstration speed constant (km/s).
	DefaultAngularSpeed = 7.67
	// EarthRotationPeriodSeconds is one solar day.
	EarthRotationPeriodSeconds = 24 * 60 * 60
	// DefaultInitialPhase puts an untilted satellite on +X.
	DefaultInitialPhase = math.Pi / 2
)

// CentralConfig describes the planet at the origin.
type CentralConfig struct {
	Name                  string
	RadiusKm              float64
	RotationPeriodSeconds float64
}

// SatelliteConfig describes one orbiting body.
type SatelliteConfig struct {
	Name         string
	AltitudeKm   float64 // above the central body's surface
	AngularSpeed float64
	Elements     model.OrbitalElements
	// InitialPhase overrides DefaultInitialPhase when set.
	InitialPhase *float64
	// TLE, when set, supplies the elements and the orbital radius; AltitudeKm
	// and Elements are ignored.
	TLE *TLE
}

// SceneConfig is the full startup description of a scene.
type SceneConfig struct {
	// Epoch is the instant TLE-sourced satellites are propagated to. When
	// zero, each TLE's own epoch is used.
	Epoch      time.Time
	Central    CentralConfig
	Satellites []SatelliteConfig
}

// Scene lists the IDs of the bodies BuildScene created.
type Scene struct {
	Central    model.BodyID
	Satellites []model.BodyID
}

// DefaultScene is Earth with four low orbiters sharing one altitude and speed
// but tilted into distinct planes.
func DefaultScene() SceneConfig {
	planes := []struct{ incl, node float64 }{
		{0, 0},
		{math.Pi / 4, -math.Pi / 4},
		{-math.Pi / 3, 0},
		{3 * math.Pi / 2, 0},
	}
	sats := make([]SatelliteConfig, 0, len(planes))
	for i, p := range planes {
		sats = append(sats, SatelliteConfig{
			Name:         fmt.Sprintf("sat-%d", i+1),
			AltitudeKm:   DefaultAltitudeKm,
			AngularSpeed: DefaultAngularSpeed,
			Elements: model.OrbitalElements{
				Inclination:            p.incl,
				AscendingNodeLongitude: p.node,
			},
		})
	}
	return SceneConfig{
		Central: CentralConfig{
			Name:                  "earth",
			RadiusKm:              EarthRadiusKm,
			RotationPeriodSeconds: EarthRotationPeriodSeconds,
		},
		Satellites: sats,
	}
}

// BuildScene validates cfg and registers its bodies in reg. Configuration
// errors wrap ErrInvalidScene; zero-radius orbits additionally wrap
// ErrDegenerateOrbit. Nothing is registered when validation fails.
func BuildScene(reg *kb.Registry, cfg SceneConfig) (*Scene, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: registry is nil", ErrInvalidScene)
	}

	central, err := newCentralBody(cfg.Central)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{central.Name: true}
	sats := make([]*model.Body, 0, len(cfg.Satellites))
	for i, sc := range cfg.Satellites {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("sat-%d", i+1)
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("%w: duplicate body name %q", ErrInvalidScene, sc.Name)
		}
		seen[sc.Name] = true
		b, err := NewSatellite(sc, cfg.Central.RadiusKm, cfg.Epoch)
		if err != nil {
			return nil, err
		}
		sats = append(sats, b)
	}

	scene := &Scene{Satellites: make([]model.BodyID, 0, len(sats))}
	if scene.Central, err = reg.AddBody(central); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}
	for _, b := range sats {
		id, err := reg.AddBody(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
		}
		scene.Satellites = append(scene.Satellites, id)
	}
	return scene, nil
}

func newCentralBody(cfg CentralConfig) (*model.Body, error) {
	if !ValidRadius(cfg.RadiusKm) {
		return nil, fmt.Errorf("%w: central body %q radius %v", ErrInvalidScene, cfg.Name, cfg.RadiusKm)
	}
	if !(cfg.RotationPeriodSeconds > 0) || math.IsInf(cfg.RotationPeriodSeconds, 0) {
		return nil, fmt.Errorf("%w: central body %q rotation period %v", ErrInvalidScene, cfg.Name, cfg.RotationPeriodSeconds)
	}
	return &model.Body{
		Name: cfg.Name,
		Variant: &model.CentralBody{
			Radius:   cfg.RadiusKm,
			Rotation: model.Rotation{PeriodSeconds: cfg.RotationPeriodSeconds},
		},
	}, nil
}

// NewSatellite builds an orbiting body placed on its path at the initial
// phase. The orbital radius is centralRadius + AltitudeKm, or the SGP4
// radius at epoch for TLE-sourced satellites.
func NewSatellite(cfg SatelliteConfig, centralRadius float64, epoch time.Time) (*model.Body, error) {
	elements := cfg.Elements
	radius := centralRadius + cfg.AltitudeKm

	if cfg.TLE != nil {
		var err error
		if elements, err = cfg.TLE.Elements(); err != nil {
			return nil, fmt.Errorf("%w: satellite %q: %w", ErrInvalidScene, cfg.Name, err)
		}
		at := epoch
		if at.IsZero() {
			if at, err = cfg.TLE.Epoch(); err != nil {
				return nil, fmt.Errorf("%w: satellite %q: %w", ErrInvalidScene, cfg.Name, err)
			}
		}
		if radius, err = cfg.TLE.RadiusAt(at); err != nil {
			return nil, fmt.Errorf("%w: satellite %q: %w", ErrInvalidScene, cfg.Name, err)
		}
	}

	if !ValidRadius(radius) {
		return nil, fmt.Errorf("%w: satellite %q radius %v: %w", ErrInvalidScene, cfg.Name, radius, ErrDegenerateOrbit)
	}
	for name, v := range map[string]float64{
		"angular speed":  cfg.AngularSpeed,
		"inclination":    elements.Inclination,
		"ascending node": elements.AscendingNodeLongitude,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: satellite %q %s is not finite", ErrInvalidScene, cfg.Name, name)
		}
	}

	phase := DefaultInitialPhase
	if cfg.InitialPhase != nil {
		if math.IsNaN(*cfg.InitialPhase) || math.IsInf(*cfg.InitialPhase, 0) {
			return nil, fmt.Errorf("%w: satellite %q initial phase is not finite", ErrInvalidScene, cfg.Name)
		}
		phase = WrapAngle(*cfg.InitialPhase)
	}

	return &model.Body{
		Name:     cfg.Name,
		Position: OrbitPath(elements, radius)(phase),
		Variant: &model.OrbitingBody{
			Elements: elements,
			State: model.OrbitState{
				AngularSpeed: cfg.AngularSpeed,
				Angle:        phase,
			},
		},
	}, nil
}
