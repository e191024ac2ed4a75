package solar

import (
	"fmt"
	"math"
	"time"
)

// SunPathSample is the sun's apparent position at one instant.
type SunPathSample struct {
	Time     time.Time `json:"time"`
	Azimuth  float64   `json:"azimuth_deg"`  // compass bearing, 0 = north, 90 = east
	Altitude float64   `json:"altitude_deg"` // above the horizon, negative below
}

// Validate checks that the coordinate lies on the globe.
func (c GeoCoordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %g", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %g", c.Longitude)
	}
	return nil
}

// Position returns the sun's azimuth and altitude seen from c at t.
func Position(c GeoCoordinate, t time.Time) SunPathSample {
	lw := rad * -c.Longitude
	phi := rad * c.Latitude
	d := daysSinceJ2000(t)

	m := solarMeanAnomaly(d)
	l := eclipticLongitude(m)
	dec := declination(l)
	ra := rightAscension(l)

	h := siderealTime(d, lw) - ra
	altitude := math.Asin(math.Sin(phi)*math.Sin(dec) + math.Cos(phi)*math.Cos(dec)*math.Cos(h))
	// Measured from south, westward; shifted to a north-referenced bearing below.
	azimuth := math.Atan2(math.Sin(h), math.Cos(h)*math.Sin(phi)-math.Tan(dec)*math.Cos(phi))

	return SunPathSample{
		Time:     t,
		Azimuth:  normalizeDegrees(azimuth/rad + 180),
		Altitude: altitude / rad,
	}
}
