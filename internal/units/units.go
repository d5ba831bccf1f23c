// Package units provides shared constants and conversion for angle units.
// Tables store rotations in radians.
package units

import "math"

// Unit constants
const (
	Rad = "rad"
	Deg = "deg"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Rad, Deg}

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
	return "rad, deg"
}

// ConvertAngle converts an angle from radians to the target units.
// Unknown units leave the value in radians.
func ConvertAngle(rad float64, targetUnits string) float64 {
	if targetUnits == Deg {
		return rad * 180 / math.Pi
	}
	return rad
}

// ToRadians converts an angle given in units to radians.
// Unknown units are taken as radians.
func ToRadians(v float64, units string) float64 {
	if units == Deg {
		return v * math.Pi / 180
	}
	return v
}
