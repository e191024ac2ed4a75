// Package solar computes low-precision sun positions and rise/set times.
//
// The model is the mean-anomaly plus equation-of-center approximation:
// good to about a minute near sunrise and sunset, which is enough for
// planning outdoor light but not for precision astronomy.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const (
	rad = math.Pi / 180.0

	j2000 = 2451545.0 // JD of 2000-01-01 12:00 TT
	j0    = 0.0009    // mean solar transit correction, days

	obliquity  = 23.4397 * rad // mean obliquity of the ecliptic
	perihelion = 102.9372 * rad

	// Sun's upper limb touching the horizon, refraction included.
	sunriseAltitudeDeg = -0.833
)

// GeoCoordinate is a position on Earth in decimal degrees.
type GeoCoordinate struct {
	Latitude  float64 `yaml:"latitude" json:"lat"`  // +north
	Longitude float64 `yaml:"longitude" json:"lon"` // +east
}

// daysSinceJ2000 converts an instant to days relative to the J2000 epoch.
func daysSinceJ2000(t time.Time) float64 {
	return julian.TimeToJD(t.UTC()) - j2000
}

// jdToTime converts a Julian date back to an instant in loc.
func jdToTime(jd float64, loc *time.Location) time.Time {
	return julian.JDToTime(jd).In(loc)
}

func solarMeanAnomaly(d float64) float64 {
	return rad * (357.5291 + 0.98560028*d)
}

// equationOfCenter is the true-minus-mean anomaly correction.
func equationOfCenter(m float64) float64 {
	return rad * (1.9148*math.Sin(m) + 0.02*math.Sin(2*m) + 0.0003*math.Sin(3*m))
}

func eclipticLongitude(m float64) float64 {
	return m + equationOfCenter(m) + perihelion + math.Pi
}

func declination(l float64) float64 {
	return math.Asin(math.Sin(obliquity) * math.Sin(l))
}

func rightAscension(l float64) float64 {
	return math.Atan2(math.Sin(l)*math.Cos(obliquity), math.Cos(l))
}

// siderealTime is the local sidereal angle; lw is west longitude in radians.
func siderealTime(d, lw float64) float64 {
	return rad*(280.16+360.9856235*d) - lw
}

func julianCycle(d, lw float64) float64 {
	return math.Round(d - j0 - lw/(2*math.Pi))
}

// approxTransit returns days since J2000 of the transit offset by hour
// angle ht in cycle n.
func approxTransit(ht, lw, n float64) float64 {
	return j0 + (ht+lw)/(2*math.Pi) + n
}

// solarTransitJ refines an approximate transit into a Julian date.
func solarTransitJ(ds, m, l float64) float64 {
	return j2000 + ds + 0.0053*math.Sin(m) - 0.0069*math.Sin(2*l)
}

// hourAngle solves for the hour angle at which the sun reaches altitude
// h0. It reports false when the sun never reaches h0 that day.
func hourAngle(h0, phi, dec float64) (float64, bool) {
	x := (math.Sin(h0) - math.Sin(phi)*math.Sin(dec)) / (math.Cos(phi) * math.Cos(dec))
	if !(x >= -1 && x <= 1) {
		return 0, false
	}
	return math.Acos(x), true
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
