package chapters

import "math"

// CountPolicy caps requested chapters by estimated video duration:
// PerThirtyMinutes chapters for each started half hour, never below Floor.
type CountPolicy struct {
	PerThirtyMinutes int
	Floor            int
}

// DefaultCountPolicy allows three chapters per half hour with a floor of three.
var DefaultCountPolicy = CountPolicy{PerThirtyMinutes: 3, Floor: 3}

// Limit returns the chapter ceiling for a video of durationSeconds, or 0 when
// the duration is unknown.
func (p CountPolicy) Limit(durationSeconds float64) int {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return 0
	}
	halfHours := int(math.Ceil(durationSeconds / 1800))
	limit := halfHours * p.PerThirtyMinutes
	if limit < p.Floor {
		limit = p.Floor
	}
	return limit
}
