package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orbitsim/model"
)

// earthMuKm3PerS2 is Earth's standard gravitational parameter (WGS-72).
const earthMuKm3PerS2 = 398600.8

// TLE is a NORAD two-line element set.
type TLE struct {
	Line1 string
	Line2 string
}

func (t TLE) validate() error {
	l1 := strings.TrimRight(t.Line1, " \r\n")
	l2 := strings.TrimRight(t.Line2, " \r\n")
	if len(l1) < 64 || l1[0] != '1' {
		return fmt.Errorf("tle line 1 malformed: %q", t.Line1)
	}
	if len(l2) < 63 || l2[0] != '2' {
		return fmt.Errorf("tle line 2 malformed: %q", t.Line2)
	}
	return t.checkSGP4Fields()
}

// checkSGP4Fields parses every column the SGP4 initialiser reads, built
// the same way it builds them. The library exits the process on a parse
// failure, so the element set must be known good before it is handed over.
func (t TLE) checkSGP4Fields() error {
	l1, l2 := t.Line1, t.Line2
	squeeze := func(s string) string { return strings.Replace(s, " ", "", 2) }

	ints := []struct{ name, value string }{
		{"satellite number", strings.TrimSpace(l1[2:7])},
		{"epoch year", l1[18:20]},
	}
	for _, f := range ints {
		if _, err := strconv.Atoi(f.value); err != nil {
			return fmt.Errorf("tle %s %q: %w", f.name, f.value, err)
		}
	}

	floatFields := []struct{ name, value string }{
		{"epoch day", l1[20:32]},
		{"first derivative of mean motion", squeeze(l1[33:43])},
		{"second derivative of mean motion", squeeze(l1[44:45] + "." + l1[45:50] + "e" + l1[50:52])},
		{"bstar", squeeze(l1[53:54] + "." + l1[54:59] + "e" + l1[59:61])},
		{"inclination", squeeze(l2[8:16])},
		{"right ascension", squeeze(l2[17:25])},
		{"eccentricity", "." + l2[26:33]},
		{"argument of perigee", squeeze(l2[34:42])},
		{"mean anomaly", squeeze(l2[43:51])},
		{"mean motion", squeeze(l2[52:63])},
	}
	for _, f := range floatFields {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("tle %s %q: %w", f.name, f.value, err)
		}
	}
	return nil
}

// Elements extracts the mean orbital elements from line 2. Angles are
// converted to radians; the semi-major axis is derived from the mean motion.
func (t TLE) Elements() (model.OrbitalElements, error) {
	if err := t.validate(); err != nil {
		return model.OrbitalElements{}, err
	}
	l2 := t.Line2

	field := func(name string, lo, hi int) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(l2[lo:hi]), 64)
		if err != nil {
			return 0, fmt.Errorf("tle %s: %w", name, err)
		}
		return v, nil
	}

	incl, err := field("inclination", 8, 16)
	if err != nil {
		return model.OrbitalElements{}, err
	}
	raan, err := field("right ascension", 17, 25)
	if err != nil {
		return model.OrbitalElements{}, err
	}
	ecc, err := strconv.ParseFloat("0."+strings.TrimSpace(l2[26:33]), 64)
	if err != nil {
		return model.OrbitalElements{}, fmt.Errorf("tle eccentricity: %w", err)
	}
	argp, err := field("argument of perigee", 34, 42)
	if err != nil {
		return model.OrbitalElements{}, err
	}
	mo, err := field("mean anomaly", 43, 51)
	if err != nil {
		return model.OrbitalElements{}, err
	}
	revsPerDay, err := field("mean motion", 52, 63)
	if err != nil {
		return model.OrbitalElements{}, err
	}
	if revsPerDay <= 0 {
		return model.OrbitalElements{}, fmt.Errorf("tle mean motion must be positive, got %v", revsPerDay)
	}

	n := revsPerDay * TwoPi / 86400 // rad/s
	return model.OrbitalElements{
		Inclination:            deg2rad(incl),
		AscendingNodeLongitude: deg2rad(raan),
		ArgumentOfPeriapsis:    deg2rad(argp),
		Eccentricity:           ecc,
		SemiMajorAxis:          math.Cbrt(earthMuKm3PerS2 / (n * n)),
		MeanAnomaly:            deg2rad(mo),
	}, nil
}

// Epoch parses the element set epoch from line 1.
func (t TLE) Epoch() (time.Time, error) {
	if err := t.validate(); err != nil {
		return time.Time{}, err
	}
	yy, err := strconv.Atoi(strings.TrimSpace(t.Line1[18:20]))
	if err != nil {
		return time.Time{}, fmt.Errorf("tle epoch year: %w", err)
	}
	doy, err := strconv.ParseFloat(strings.TrimSpace(t.Line1[20:32]), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("tle epoch day: %w", err)
	}
	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((doy - 1) * 24 * float64(time.Hour))), nil
}

// RadiusAt propagates the element set with SGP4 and returns the distance
// from Earth's centre at the given time, in kilometres.
func (t TLE) RadiusAt(at time.Time) (float64, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}
	sat := satellite.TLEToSat(t.Line1, t.Line2, satellite.GravityWGS72)

	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)

	r := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if !ValidRadius(r) {
		return 0, fmt.Errorf("sgp4 at %s: radius %v: %w", at.Format(time.RFC3339), r, ErrDegenerateOrbit)
	}
	return r, nil
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
