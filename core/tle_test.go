package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

var issTLE = TLE{
	Line1: "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927",
	Line2: "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
}

func TestTLE_Elements(t *testing.T) {
	el, err := issTLE.Elements()
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	rad := math.Pi / 180
	checks := []struct {
		name      string
		got, want float64
		tol       float64
	}{
		{"inclination", el.Inclination, 51.6416 * rad, 1e-12},
		{"ascending node", el.AscendingNodeLongitude, 247.4627 * rad, 1e-12},
		{"eccentricity", el.Eccentricity, 0.0006703, 1e-12},
		{"argument of periapsis", el.ArgumentOfPeriapsis, 130.5360 * rad, 1e-12},
		{"mean anomaly", el.MeanAnomaly, 325.0288 * rad, 1e-12},
		{"semi-major axis", el.SemiMajorAxis, 6730.96, 0.05},
	}
	for _, c := range checks {
		if !scalar.EqualWithinAbs(c.got, c.want, c.tol) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestTLE_Epoch(t *testing.T) {
	got, err := issTLE.Epoch()
	if err != nil {
		t.Fatalf("Epoch: %v", err)
	}
	want := time.Date(2008, time.September, 20, 12, 25, 40, 104_000_000, time.UTC)
	if d := got.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Fatalf("epoch = %s, want %s", got, want)
	}
}

func TestTLE_RadiusAtEpoch(t *testing.T) {
	epoch, err := issTLE.Epoch()
	if err != nil {
		t.Fatalf("Epoch: %v", err)
	}
	r, err := issTLE.RadiusAt(epoch)
	if err != nil {
		t.Fatalf("RadiusAt: %v", err)
	}
	if r < 6500 || r > 7000 {
		t.Fatalf("ISS radius at epoch = %v km, want low Earth orbit", r)
	}
}

func TestTLE_Malformed(t *testing.T) {
	bad := []TLE{
		{},
		{Line1: "1 short", Line2: issTLE.Line2},
		{Line1: issTLE.Line2, Line2: issTLE.Line1},
		{Line1: withColumns(issTLE.Line1, 53, "-1160X-4"), Line2: issTLE.Line2},
		{Line1: withColumns(issTLE.Line1, 44, " 0000?-0"), Line2: issTLE.Line2},
		{Line1: withColumns(issTLE.Line1, 33, "-.0000x182"), Line2: issTLE.Line2},
		{Line1: withColumns(issTLE.Line1, 2, "2554A"), Line2: issTLE.Line2},
		{Line1: withColumns(issTLE.Line1, 18, " 8"), Line2: issTLE.Line2},
		{Line1: issTLE.Line1, Line2: withColumns(issTLE.Line2, 26, "00 6703")},
	}
	for i, tle := range bad {
		if _, err := tle.Elements(); err == nil {
			t.Errorf("case %d: expected Elements error", i)
		}
		if _, err := tle.RadiusAt(time.Now()); err == nil {
			t.Errorf("case %d: expected RadiusAt error", i)
		}
	}
}

// withColumns overwrites line starting at column lo with s.
func withColumns(line string, lo int, s string) string {
	return line[:lo] + s + line[lo+len(s):]
}

func TestNewSatellite_CorruptTLEIsInvalidScene(t *testing.T) {
	tle := TLE{Line1: withColumns(issTLE.Line1, 53, "-1160X-4"), Line2: issTLE.Line2}
	_, err := NewSatellite(SatelliteConfig{Name: "iss", TLE: &tle}, EarthRadiusKm, time.Time{})
	if !errors.Is(err, ErrInvalidScene) {
		t.Fatalf("expected ErrInvalidScene, got %v", err)
	}
}
