package application

import "time"

// Clock so time-dependent code stays testable
type Clock interface {
	Now() time.Time
}

// SystemClock is the default, backed by time.Now
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
