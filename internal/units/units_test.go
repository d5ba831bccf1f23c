package units

import (
	"math"
	"testing"
)

func TestConvertAngle(t *testing.T) {
	tests := []struct {
		name     string
		rad      float64
		units    string
		expected float64
	}{
		{"pi to deg", math.Pi, Deg, 180},
		{"quarter turn to deg", -math.Pi / 2, Deg, -90},
		{"fov threshold to deg", math.Pi / 12, Deg, 15},
		{"rad unchanged", 0.2, Rad, 0.2},
		{"unknown units default to rad", 0.2, "grad", 0.2},
		{"zero", 0, Deg, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertAngle(tt.rad, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertAngle(%f, %s) = %f, want %f", tt.rad, tt.units, result, tt.expected)
			}
		})
	}
}

func TestToRadians_RoundTrip(t *testing.T) {
	for _, u := range ValidUnits {
		for _, v := range []float64{-3, -0.5, 0, 0.2, 3.1} {
			got := ConvertAngle(ToRadians(v, u), u)
			if math.Abs(got-v) > 1e-9 {
				t.Errorf("round trip of %f %s = %f", v, u, got)
			}
		}
	}
	if got := ToRadians(15, Deg); math.Abs(got-math.Pi/12) > 1e-12 {
		t.Errorf("ToRadians(15, deg) = %f", got)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid rad", Rad, true},
		{"valid deg", Deg, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "DEG", false},
		{"case sensitive", "Rad", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "rad, deg" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}
