package ports

import "time"

// Clock supplies the current time. It is injected rather than read globally
// so expiry logic is deterministically testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
