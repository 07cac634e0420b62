// Package units provides shared constants and conversions for speed units.
package units

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544 // m/s to mph
	case KMPH, KPH:
		return speedMPS * 3.6 // m/s to km/h
	default:
		return speedMPS
	}
}

// PixelSpeedToMPS converts an image-plane speed in pixels/second to
// metres/second using the camera calibration. perspectiveScale corrects
// for foreshortening and is 1.0 for an unscaled view.
func PixelSpeedToMPS(pxPerSecond, metersPerPixel, perspectiveScale float64) float64 {
	return pxPerSecond * metersPerPixel * perspectiveScale
}

// PixelSpeedToKmph converts pixels/second straight to km/h.
func PixelSpeedToKmph(pxPerSecond, metersPerPixel, perspectiveScale float64) float64 {
	return ConvertSpeed(PixelSpeedToMPS(pxPerSecond, metersPerPixel, perspectiveScale), KMPH)
}
