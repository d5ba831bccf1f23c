// Package match defines the correspondence sets produced by a feature matcher
// and the displacement estimates that accompany them during training.
package match

import "github.com/banshee-data/rigmodel/internal/rig/stats"

// Feature is a point observed by one sensor, in image pixels.
type Feature struct {
	Sensor int     `json:"sensor"`
	Col    float64 `json:"col"`
	Row    float64 `json:"row"`
}

// Candidate is one destination proposed for a source feature.
type Candidate struct {
	Dst  Feature `json:"dst"`
	Dist float64 `json:"dist"`
}

// Match is a source feature with its ranked destination candidates.
type Match struct {
	Src        Feature     `json:"src"`
	Candidates []Candidate `json:"candidates"`
}

// Set is an ordered correspondence set for one frame.
type Set []Match

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, m := range s {
		out[i] = Match{Src: m.Src, Candidates: append([]Candidate(nil), m.Candidates...)}
	}
	return out
}

// Candidates returns the total number of destination candidates in s.
func (s Set) Candidates() int {
	n := 0
	for _, m := range s {
		n += len(m.Candidates)
	}
	return n
}

// Estimate is a displacement estimate: the rig transform observed between
// two frames, or the value predicted for one correspondence.
type Estimate struct {
	Angle      float64    `json:"angle"`
	Trans      float64    `json:"trans"`
	AngleError float64    `json:"angle_error"`
	TransError float64    `json:"trans_error"`
	Weight     float64    `json:"weight"`
	Sensor     int        `json:"sensor"`
	Mode       stats.Mode `json:"mode"`
	Utime      int64      `json:"utime,omitempty"`
}

// Value returns the component of e selected by mode.
func (e Estimate) Value(mode stats.Mode) float64 {
	if mode.Circular() {
		return e.Angle
	}
	return e.Trans
}

// Error returns the error component of e selected by mode.
func (e Estimate) Error(mode stats.Mode) float64 {
	if mode.Circular() {
		return e.AngleError
	}
	return e.TransError
}

// WithValue returns a copy of e with the mode component and its error set.
func (e Estimate) WithValue(mode stats.Mode, value, errv float64) Estimate {
	e.Mode = mode
	if mode.Circular() {
		e.Angle, e.AngleError = value, errv
	} else {
		e.Trans, e.TransError = value, errv
	}
	return e
}

// Values extracts the mode component of every estimate.
func Values(list []Estimate, mode stats.Mode) []float64 {
	out := make([]float64, len(list))
	for i, e := range list {
		out[i] = e.Value(mode)
	}
	return out
}
