package optics

import (
	"fmt"
	"math"
)

// SensorGeometry is the physical sensor size of a reference camera body.
type SensorGeometry struct {
	WidthMm  float64 `yaml:"width_mm" json:"width_mm"`   // e.g., 28.25 for ARRI Alexa Mini open gate
	HeightMm float64 `yaml:"height_mm" json:"height_mm"` // e.g., 18.17
}

// Validate checks that both dimensions are positive and finite.
func (s SensorGeometry) Validate() error {
	if !positive(s.WidthMm) {
		return fmt.Errorf("sensor width_mm must be > 0, got %g", s.WidthMm)
	}
	if !positive(s.HeightMm) {
		return fmt.Errorf("sensor height_mm must be > 0, got %g", s.HeightMm)
	}
	return nil
}

// LensSpec describes a reference lens. A prime lens has MinFocalMm equal
// to MaxFocalMm.
type LensSpec struct {
	Name         string  `yaml:"name" json:"name"`
	MinFocalMm   float64 `yaml:"min_focal_mm" json:"min_focal_mm"`
	MaxFocalMm   float64 `yaml:"max_focal_mm" json:"max_focal_mm"`
	MaxApertureT float64 `yaml:"max_aperture_t" json:"max_aperture_t"` // T-stop
	Squeeze      float64 `yaml:"squeeze" json:"squeeze"`               // 1.0 spherical, 1.33/1.8/2.0 anamorphic
}

// Prime returns a spherical prime lens spec.
func Prime(name string, focalMm, tStop float64) LensSpec {
	return LensSpec{Name: name, MinFocalMm: focalMm, MaxFocalMm: focalMm, MaxApertureT: tStop, Squeeze: 1.0}
}

// Validate checks the lens invariants: positive focal range with
// min <= max, and a positive squeeze factor.
func (l LensSpec) Validate() error {
	if !positive(l.MinFocalMm) {
		return fmt.Errorf("lens %q: min focal length must be > 0, got %g", l.Name, l.MinFocalMm)
	}
	if !positive(l.MaxFocalMm) {
		return fmt.Errorf("lens %q: max focal length must be > 0, got %g", l.Name, l.MaxFocalMm)
	}
	if l.MinFocalMm > l.MaxFocalMm {
		return fmt.Errorf("lens %q: min focal %g > max focal %g", l.Name, l.MinFocalMm, l.MaxFocalMm)
	}
	if !positive(l.Squeeze) {
		return fmt.Errorf("lens %q: squeeze must be > 0, got %g", l.Name, l.Squeeze)
	}
	return nil
}

// IsZoom reports whether the lens covers a focal range.
func (l LensSpec) IsZoom() bool {
	return l.MaxFocalMm > l.MinFocalMm
}

// IsAnamorphic reports whether the lens squeezes the image horizontally.
func (l LensSpec) IsAnamorphic() bool {
	return l.Squeeze > 1.0
}

// FocalAt resolves the focal length to use. Primes always return their
// fixed focal. Zoom lenses return requestedMm when it lies in range,
// the wide end when requestedMm is 0, and an error otherwise.
func (l LensSpec) FocalAt(requestedMm float64) (float64, error) {
	if !l.IsZoom() {
		return l.MinFocalMm, nil
	}
	if requestedMm == 0 {
		return l.MinFocalMm, nil
	}
	if math.IsNaN(requestedMm) || requestedMm < l.MinFocalMm || requestedMm > l.MaxFocalMm {
		return 0, fmt.Errorf("lens %q: focal %g outside range %g-%g mm", l.Name, requestedMm, l.MinFocalMm, l.MaxFocalMm)
	}
	return requestedMm, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
