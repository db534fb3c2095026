package clock

import (
	"fmt"
	"time"
)

// Clock supplies the current instant in the configured time zone. All
// temporal comparisons in the engine go through it so tests can inject a
// fixed time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock loads the given IANA timezone name, defaulting to UTC when
// empty.
func NewSystemClock(timezone string) (*SystemClock, error) {
	if timezone == "" {
		return &SystemClock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &SystemClock{loc: loc}, nil
}

// Now returns the current time in the configured location.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Fixed is a Clock pinned to a single instant, for tests.
type Fixed struct {
	T time.Time
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.T
}
