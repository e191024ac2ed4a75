// Package matching picks the device camera module and zoom factor that best
// reproduce a reference horizontal field of view.
package matching

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/cjeanneret/ScoutCam/internal/logic/optics"
)

// DeviceCameraModule is one capture module of the scouting device, as
// listed by the device catalog.
type DeviceCameraModule struct {
	Role          string  `yaml:"role" json:"role"`                       // e.g., "ultra", "main", "tele"
	NativeHFOVDeg float64 `yaml:"native_hfov_deg" json:"native_hfov_deg"` // manufacturer nominal, uncalibrated
	MinZoom       float64 `yaml:"min_zoom" json:"min_zoom"`
	MaxZoom       float64 `yaml:"max_zoom" json:"max_zoom"`
}

// Validate checks the catalog invariants the matcher relies on.
// MatchModule itself does not call it.
func (m DeviceCameraModule) Validate() error {
	if m.Role == "" {
		return fmt.Errorf("module role is required")
	}
	if !(m.NativeHFOVDeg > 0 && m.NativeHFOVDeg < 180) {
		return fmt.Errorf("module %q: native_hfov_deg must be in (0, 180), got %g", m.Role, m.NativeHFOVDeg)
	}
	if !(m.MinZoom > 0) || math.IsInf(m.MaxZoom, 0) || math.IsNaN(m.MaxZoom) {
		return fmt.Errorf("module %q: invalid zoom range %g-%g", m.Role, m.MinZoom, m.MaxZoom)
	}
	if m.MinZoom > m.MaxZoom {
		return fmt.Errorf("module %q: min_zoom %g > max_zoom %g", m.Role, m.MinZoom, m.MaxZoom)
	}
	return nil
}

// Lookup returns the calibration multiplier for a module role.
// Implementations return 1.0 for roles without an override.
type Lookup interface {
	Multiplier(role string) float64
}

// Multipliers is a point-in-time calibration snapshot. Absent roles map to 1.0.
type Multipliers map[string]float64

// Multiplier implements Lookup.
func (m Multipliers) Multiplier(role string) float64 {
	if v, ok := m[role]; ok {
		return v
	}
	return 1.0
}

// MatchResult is the module and zoom chosen for a target FOV.
type MatchResult struct {
	Role        string  `json:"role"`
	Zoom        float64 `json:"zoom"`         // clamped into the module's range
	ErrorRad    float64 `json:"error_rad"`    // |achieved - target|
	AchievedRad float64 `json:"achieved_rad"` // HFOV at Zoom
}

// MatchModule returns the candidate whose calibrated FOV, at a zoom
// clamped into its operable range, is closest to targetHFOVRad. Ties keep
// the earlier candidate. The boolean is false when modules is empty or
// targetHFOVRad <= 0. A nil lookup means no calibration.
func MatchModule(targetHFOVRad float64, modules []DeviceCameraModule, lookup Lookup) (MatchResult, bool) {
	if lookup == nil {
		lookup = Multipliers(nil)
	}

	var (
		best  MatchResult
		found bool
	)
	for _, m := range modules {
		if !(targetHFOVRad > 0) {
			continue
		}
		calibrated := optics.DegreesToRadians(m.NativeHFOVDeg * lookup.Multiplier(m.Role))

		zoom := clamp(calibrated/targetHFOVRad, m.MinZoom, m.MaxZoom)
		achieved := calibrated / zoom
		errRad := math.Abs(achieved - targetHFOVRad)

		if !found || errRad < best.ErrorRad {
			best = MatchResult{Role: m.Role, Zoom: zoom, ErrorRad: errRad, AchievedRad: achieved}
			found = true
		}
	}
	return best, found
}

// EquivalentFocal returns the focal length that would give the achieved
// HFOV of r on the reference sensor.
func EquivalentFocal(r MatchResult, sensor optics.SensorGeometry, squeeze float64) float64 {
	return optics.FocalForHorizontalFOV(sensor.WidthMm, r.AchievedRad, squeeze)
}

// clamp bounds v to [lo, hi]. When lo > hi the result is lo; malformed
// ranges are the catalog's to reject.
func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
