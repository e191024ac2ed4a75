package scout

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/ScoutCam/internal/debug"
	"github.com/cjeanneret/ScoutCam/internal/logic/solar"
)

// MaxPlanDays bounds the length of a sun calendar.
const MaxPlanDays = 31

// Day conditions reported in SunDay.Condition.
const (
	ConditionNormal     = "normal"
	ConditionPolarDay   = "polar_day"
	ConditionPolarNight = "polar_night"
)

// SunDay gathers the solar data of one calendar day at one place.
type SunDay struct {
	Date           string                `json:"date"` // YYYY-MM-DD in the requested zone
	Condition      string                `json:"condition"`
	Polar          bool                  `json:"polar"`
	SolarNoon      time.Time             `json:"solar_noon"`
	MaxAltitudeDeg float64               `json:"max_altitude_deg"`
	Times          *solar.SunTimes       `json:"times,omitempty"`
	DayLengthMin   float64               `json:"day_length_min"`
	Golden         *solar.GoldenHours    `json:"golden_hours,omitempty"`
	Path           []solar.SunPathSample `json:"path,omitempty"`
}

type dayKey struct {
	lat, lon float64
	date     string
	zone     string
	cadence  time.Duration
}

// SunDay computes sun times, golden hours and the sun path of the calendar
// day containing day in loc (nil = configured zone). cadence <= 0 selects
// the configured cadence. Results are cached; the returned Path is shared
// and must not be modified.
func (s *Service) SunDay(c solar.GeoCoordinate, day time.Time, loc *time.Location, cadence time.Duration) (SunDay, error) {
	if err := c.Validate(); err != nil {
		return SunDay{}, err
	}
	if loc == nil {
		loc = s.cfg.TimeLocation()
	}
	if cadence <= 0 {
		cadence = s.cadence
	}
	cadence = max(cadence, solar.MinCadence)

	key := dayKey{
		lat:     c.Latitude,
		lon:     c.Longitude,
		date:    day.In(loc).Format(time.DateOnly),
		zone:    loc.String(),
		cadence: cadence,
	}
	if v, ok := s.days.Get(key); ok {
		debug.Trace("Sun cache hit: %s at %.4f,%.4f", key.date, key.lat, key.lon)
		return v.(SunDay), nil
	}

	sd := computeSunDay(c, day, loc, cadence)
	sd.Date = key.date
	s.days.Add(key, sd)
	return sd, nil
}

func computeSunDay(c solar.GeoCoordinate, day time.Time, loc *time.Location, cadence time.Duration) SunDay {
	sd := SunDay{
		SolarNoon:      solar.SolarNoonOn(c, day, loc),
		MaxAltitudeDeg: solar.MaxAltitude(c, day, loc),
	}

	times, ok := solar.SunTimesOn(c, day, loc)
	if !ok {
		sd.Polar = true
		sd.Condition = ConditionPolarNight
		if sd.MaxAltitudeDeg > 0 {
			sd.Condition = ConditionPolarDay
		}
		debug.Info("Sun does not rise or set (%s)", sd.Condition)
		return sd
	}

	debug.SunTimes(times.Sunrise, times.SolarNoon, times.Sunset)
	sd.Condition = ConditionNormal
	sd.Times = &times
	sd.DayLengthMin = times.DayLength().Minutes()
	if golden, ok := solar.GoldenHoursOn(c, day, loc); ok {
		sd.Golden = &golden
	}
	sd.Path = solar.Path(c, times, cadence)
	debug.Trace("Sun path: %d samples every %v", len(sd.Path), cadence)
	return sd
}

// Plan computes days consecutive sun days starting at from, in day order.
// Days are computed concurrently, at most planner_workers at a time. Plan
// entries carry no path.
func (s *Service) Plan(ctx context.Context, c solar.GeoCoordinate, from time.Time, days int, loc *time.Location) ([]SunDay, error) {
	if days < 1 || days > MaxPlanDays {
		return nil, fmt.Errorf("days must be between 1 and %d, got %d", MaxPlanDays, days)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = s.cfg.TimeLocation()
	}

	debug.Section(fmt.Sprintf("Sun plan: %d days", days))
	y, m, d := from.In(loc).Date()
	out := make([]SunDay, days)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range days {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			day := time.Date(y, m, d+i, 12, 0, 0, 0, loc)
			sd, err := s.SunDay(c, day, loc, 0)
			if err != nil {
				return err
			}
			sd.Path = nil
			out[i] = sd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SunAt returns the sun position at c at instant t.
func (s *Service) SunAt(c solar.GeoCoordinate, t time.Time) (solar.SunPathSample, error) {
	if err := c.Validate(); err != nil {
		return solar.SunPathSample{}, err
	}
	return solar.Position(c, t), nil
}

// Location returns the configured default coordinate and time zone.
func (s *Service) Location() (solar.GeoCoordinate, *time.Location) {
	return s.cfg.Coordinate(), s.cfg.TimeLocation()
}
