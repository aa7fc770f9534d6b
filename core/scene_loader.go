package core

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"
)

// internal file shapes – keep them unexported so we're free to evolve them.
type sceneFile struct {
	Epoch      string          `mapstructure:"epoch"`
	Central    centralFile     `mapstructure:"central"`
	Satellites []satelliteFile `mapstructure:"satellites"`
}

type centralFile struct {
	Name                  string  `mapstructure:"name"`
	RadiusKm              float64 `mapstructure:"radius_km"`
	RotationPeriodSeconds float64 `mapstructure:"rotation_period_seconds"`
}

type satelliteFile struct {
	Name             string   `mapstructure:"name"`
	AltitudeKm       *float64 `mapstructure:"altitude_km"`
	AngularSpeed     *float64 `mapstructure:"angular_speed"`
	InclinationDeg   float64  `mapstructure:"inclination_deg"`
	AscendingNodeDeg float64  `mapstructure:"ascending_node_deg"`
	InitialPhaseDeg  *float64 `mapstructure:"initial_phase_deg"`
	TLE              []string `mapstructure:"tle"` // [line1, line2]
}

// LoadScene reads a scene description from a yaml, json or toml file.
func LoadScene(path string) (SceneConfig, error) {
	v := newSceneViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return SceneConfig{}, fmt.Errorf("LoadScene: read %q: %w", path, err)
	}
	return decodeScene(v)
}

// ReadScene reads a scene description in the given format ("yaml", "json", "toml").
func ReadScene(r io.Reader, format string) (SceneConfig, error) {
	v := newSceneViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return SceneConfig{}, fmt.Errorf("ReadScene: decode %s: %w", format, err)
	}
	return decodeScene(v)
}

func newSceneViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("central.name", "earth")
	v.SetDefault("central.radius_km", EarthRadiusKm)
	v.SetDefault("central.rotation_period_seconds", EarthRotationPeriodSeconds)
	return v
}

func decodeScene(v *viper.Viper) (SceneConfig, error) {
	var payload sceneFile
	if err := v.Unmarshal(&payload); err != nil {
		return SceneConfig{}, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}

	cfg := SceneConfig{
		Central: CentralConfig{
			Name:                  payload.Central.Name,
			RadiusKm:              payload.Central.RadiusKm,
			RotationPeriodSeconds: payload.Central.RotationPeriodSeconds,
		},
		Satellites: make([]SatelliteConfig, 0, len(payload.Satellites)),
	}
	if payload.Epoch != "" {
		epoch, err := time.Parse(time.RFC3339, payload.Epoch)
		if err != nil {
			return SceneConfig{}, fmt.Errorf("%w: epoch: %w", ErrInvalidScene, err)
		}
		cfg.Epoch = epoch
	}

	for i, s := range payload.Satellites {
		sc := SatelliteConfig{
			Name:         s.Name,
			AltitudeKm:   DefaultAltitudeKm,
			AngularSpeed: DefaultAngularSpeed,
		}
		if s.AltitudeKm != nil {
			sc.AltitudeKm = *s.AltitudeKm
		}
		if s.AngularSpeed != nil {
			sc.AngularSpeed = *s.AngularSpeed
		}
		sc.Elements.Inclination = deg2rad(s.InclinationDeg)
		sc.Elements.AscendingNodeLongitude = deg2rad(s.AscendingNodeDeg)
		if s.InitialPhaseDeg != nil {
			phase := deg2rad(*s.InitialPhaseDeg)
			sc.InitialPhase = &phase
		}
		switch len(s.TLE) {
		case 0:
		case 2:
			sc.TLE = &TLE{Line1: s.TLE[0], Line2: s.TLE[1]}
		default:
			return SceneConfig{}, fmt.Errorf("%w: satellite %d: tle needs exactly two lines, got %d", ErrInvalidScene, i, len(s.TLE))
		}
		cfg.Satellites = append(cfg.Satellites, sc)
	}
	return cfg, nil
}
