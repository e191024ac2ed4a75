package solar

import (
	"math"
	"time"
)

// SunTimes holds the rise, transit and set instants of one day.
type SunTimes struct {
	Sunrise   time.Time `json:"sunrise"`
	SolarNoon time.Time `json:"solar_noon"`
	Sunset    time.Time `json:"sunset"`
}

// DayLength is the time between sunrise and sunset.
func (s SunTimes) DayLength() time.Duration {
	return s.Sunset.Sub(s.Sunrise)
}

// Window is an interval of time.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Golden-hour band of sun altitudes, degrees.
const (
	goldenLowDeg  = -4.0
	goldenHighDeg = 6.0
)

// GoldenHours are the warm-light windows around sunrise and sunset.
type GoldenHours struct {
	Morning Window `json:"morning"`
	Evening Window `json:"evening"`
}

// transit holds the per-day quantities shared by every altitude crossing.
type transit struct {
	loc   *time.Location
	lw    float64
	phi   float64
	n     float64
	m     float64
	l     float64
	dec   float64
	jnoon float64
}

// newTransit resolves day to a calendar date in loc and computes that
// date's solar transit. Local noon is used as the reference instant so
// the Julian cycle lands on the requested date rather than its eve.
func newTransit(c GeoCoordinate, day time.Time, loc *time.Location) transit {
	if loc == nil {
		loc = time.UTC
	}
	y, mo, dd := day.In(loc).Date()
	ref := time.Date(y, mo, dd, 12, 0, 0, 0, loc)

	lw := rad * -c.Longitude
	d := daysSinceJ2000(ref)
	n := julianCycle(d, lw)
	ds := approxTransit(0, lw, n)

	m := solarMeanAnomaly(ds)
	l := eclipticLongitude(m)

	return transit{
		loc:   loc,
		lw:    lw,
		phi:   rad * c.Latitude,
		n:     n,
		m:     m,
		l:     l,
		dec:   declination(l),
		jnoon: solarTransitJ(ds, m, l),
	}
}

// setJ returns the Julian date at which the descending sun crosses
// altitudeDeg, or false if it never does.
func (t transit) setJ(altitudeDeg float64) (float64, bool) {
	w, ok := hourAngle(rad*altitudeDeg, t.phi, t.dec)
	if !ok {
		return 0, false
	}
	return solarTransitJ(approxTransit(w, t.lw, t.n), t.m, t.l), true
}

// riseJ mirrors setJ about solar noon.
func (t transit) riseJ(setJ float64) float64 {
	return t.jnoon - (setJ - t.jnoon)
}

func (t transit) time(jd float64) time.Time {
	return jdToTime(jd, t.loc)
}

// SunTimesOn returns sunrise, solar noon and sunset at c on the calendar
// day containing day in loc (nil means UTC). It reports false on polar day
// or polar night, when the sun does not cross the horizon.
func SunTimesOn(c GeoCoordinate, day time.Time, loc *time.Location) (SunTimes, bool) {
	tr := newTransit(c, day, loc)

	jset, ok := tr.setJ(sunriseAltitudeDeg)
	if !ok {
		return SunTimes{}, false
	}
	return SunTimes{
		Sunrise:   tr.time(tr.riseJ(jset)),
		SolarNoon: tr.time(tr.jnoon),
		Sunset:    tr.time(jset),
	}, true
}

// SolarNoonOn returns the transit instant, which exists even on polar days.
func SolarNoonOn(c GeoCoordinate, day time.Time, loc *time.Location) time.Time {
	tr := newTransit(c, day, loc)
	return tr.time(tr.jnoon)
}

// GoldenHoursOn returns the intervals where the sun sits between -4 and +6
// degrees of altitude. It reports false when the sun does not cross both
// altitudes that day.
func GoldenHoursOn(c GeoCoordinate, day time.Time, loc *time.Location) (GoldenHours, bool) {
	tr := newTransit(c, day, loc)

	low, okLow := tr.setJ(goldenLowDeg)
	high, okHigh := tr.setJ(goldenHighDeg)
	if !okLow || !okHigh {
		return GoldenHours{}, false
	}
	return GoldenHours{
		Morning: Window{Start: tr.time(tr.riseJ(low)), End: tr.time(tr.riseJ(high))},
		Evening: Window{Start: tr.time(high), End: tr.time(low)},
	}, true
}

// MaxAltitude is the sun's altitude at transit, in degrees.
func MaxAltitude(c GeoCoordinate, day time.Time, loc *time.Location) float64 {
	tr := newTransit(c, day, loc)
	return 90 - math.Abs(tr.phi-tr.dec)/rad
}
