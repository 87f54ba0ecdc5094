package trader

import (
	"time"
)

// Clock abstracts wall-clock pacing so tests can drive the executor without
// real sleeps while keeping exact tick count and ordering.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the real wall clock.
func SystemClock() Clock {
	return systemClock{}
}
