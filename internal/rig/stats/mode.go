// Package stats holds the statistics shared by the correspondence tables:
// linear and circular means, histogram outlier rejection and a seeded RANSAC
// single-value estimator.
package stats

import "fmt"

// Mode selects how values are aggregated.
type Mode int

const (
	// Rotation aggregates angles in radians through cosine/sine sums.
	Rotation Mode = 0
	// Translation aggregates scalar magnitudes arithmetically.
	Translation Mode = 1
)

func (m Mode) String() string {
	switch m {
	case Rotation:
		return "rotation"
	case Translation:
		return "translation"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Circular reports whether values wrap around ±π.
func (m Mode) Circular() bool { return m == Rotation }

// ParseMode accepts "rotation"/"rot" and "translation"/"trans".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rotation", "rot":
		return Rotation, nil
	case "translation", "trans":
		return Translation, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want rotation or translation)", s)
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	if m != Rotation && m != Translation {
		return nil, fmt.Errorf("cannot marshal %v", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts any name ParseMode does.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
