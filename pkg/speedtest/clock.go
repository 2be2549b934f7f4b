package speedtest

import "time"

// Clock yields timestamps for probe timing.
//
// Now must be monotonic within a session: Go's time.Time carries a
// monotonic reading, so subtracting two values from the same Clock is
// immune to wall-clock adjustments. Wall time is read only once, when the
// completed record is stamped.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
