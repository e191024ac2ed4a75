package solar

import "time"

// DefaultCadence is the sun-path sampling interval used when none is given.
const DefaultCadence = 30 * time.Minute

// MinCadence bounds the number of samples a path can hold.
const MinCadence = time.Minute

// Path samples the sun's position from times.Sunrise to times.Sunset.
func Path(c GeoCoordinate, times SunTimes, cadence time.Duration) []SunPathSample {
	return PathBetween(c, times.Sunrise, times.Sunset, cadence)
}

// PathBetween samples positions every cadence starting at rise. The last
// sample is always taken at set, even off the cadence grid. It returns nil
// when rise is not before set. cadence <= 0 selects DefaultCadence.
func PathBetween(c GeoCoordinate, rise, set time.Time, cadence time.Duration) []SunPathSample {
	if !rise.Before(set) {
		return nil
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	cadence = max(cadence, MinCadence)

	samples := make([]SunPathSample, 0, int(set.Sub(rise)/cadence)+2)
	for t := rise; t.Before(set); t = t.Add(cadence) {
		samples = append(samples, Position(c, t))
	}
	return append(samples, Position(c, set))
}
