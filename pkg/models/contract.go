package models

import (
	"time"
)

// ContractSegment binds one delivery contract to the calendar range it is
// held over. Start and End are inclusive UTC midnights; consecutive segments
// are contiguous (End + 1 day == next Start).
type ContractSegment struct {
	Symbol       string
	Start        time.Time
	End          time.Time
	ContractSize float64
}

// Contains reports whether day falls inside the segment.
func (s ContractSegment) Contains(day time.Time) bool {
	return !day.Before(s.Start) && !day.After(s.End)
}
