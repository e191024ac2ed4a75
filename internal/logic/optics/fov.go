package optics

import "math"

// FieldOfView holds the angular coverage of a sensor/lens pair, in radians.
type FieldOfView struct {
	Horizontal float64 `json:"horizontal"` // desqueezed for anamorphic lenses
	Vertical   float64 `json:"vertical"`
	Diagonal   float64 `json:"diagonal"`
}

// HorizontalFOV calculates the horizontal field of view in radians.
// Formula: FOV = 2 × arctan((sensor_width × squeeze) / (2 × focal_length))
// For spherical lenses squeeze is 1.0.
func HorizontalFOV(sensorWidthMm, focalLengthMm, squeeze float64) float64 {
	return 2.0 * math.Atan((sensorWidthMm*squeeze)/(2.0*focalLengthMm))
}

// VerticalFOV calculates the vertical field of view in radians.
// Formula: FOV = 2 × arctan(sensor_height / (2 × focal_length))
func VerticalFOV(sensorHeightMm, focalLengthMm float64) float64 {
	return 2.0 * math.Atan(sensorHeightMm/(2.0*focalLengthMm))
}

// DiagonalFOV calculates the diagonal field of view in radians.
func DiagonalFOV(sensorWidthMm, sensorHeightMm, focalLengthMm float64) float64 {
	return 2.0 * math.Atan(math.Hypot(sensorWidthMm, sensorHeightMm)/(2.0*focalLengthMm))
}

// FocalForHorizontalFOV is the inverse of HorizontalFOV: the focal length
// that gives hfovRad on a sensor of the given width.
func FocalForHorizontalFOV(sensorWidthMm, hfovRad, squeeze float64) float64 {
	return (sensorWidthMm * squeeze) / (2.0 * math.Tan(hfovRad/2.0))
}

// DegreesToRadians converts an angle from degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadiansToDegrees converts an angle from radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Frame returns the full field of view for a sensor and lens at the given
// focal length. Inputs are assumed validated.
func Frame(sensor SensorGeometry, lens LensSpec, focalLengthMm float64) FieldOfView {
	return FieldOfView{
		Horizontal: HorizontalFOV(sensor.WidthMm, focalLengthMm, lens.Squeeze),
		Vertical:   VerticalFOV(sensor.HeightMm, focalLengthMm),
		Diagonal:   DiagonalFOV(sensor.WidthMm*lens.Squeeze, sensor.HeightMm, focalLengthMm),
	}
}

// TargetFOV computes the reference horizontal field of view in radians for
// a camera body and lens. focalLengthMm selects the focal on a zoom lens
// (0 = widest end) and is ignored for primes.
func TargetFOV(sensor SensorGeometry, lens LensSpec, focalLengthMm float64) (float64, error) {
	if err := sensor.Validate(); err != nil {
		return 0, err
	}
	if err := lens.Validate(); err != nil {
		return 0, err
	}
	focal, err := lens.FocalAt(focalLengthMm)
	if err != nil {
		return 0, err
	}
	return HorizontalFOV(sensor.WidthMm, focal, lens.Squeeze), nil
}
