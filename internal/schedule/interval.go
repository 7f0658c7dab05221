// Package schedule holds the interval arithmetic behind reservation
// admission. Everything here is pure: no storage, no clock.
package schedule

// Interval is a half-open [Start, End) range in hour units.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Valid reports whether the interval has strictly positive duration.
func (i Interval) Valid() bool {
	return i.End > i.Start
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Overlaps reports whether two half-open intervals share any point.
// Back-to-back intervals ([3,5) and [5,7)) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// IsAdmissible reports whether candidate can be inserted next to existing
// without violating the non-overlap invariant. An empty or inverted
// candidate is never admissible, regardless of the existing set.
func IsAdmissible(candidate Interval, existing []Interval) bool {
	if !candidate.Valid() {
		return false
	}
	for _, other := range existing {
		if Overlaps(candidate, other) {
			return false
		}
	}
	return true
}
