package infrastructure

import (
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// SystemClock implements ClockPort using system time in UTC, truncated to
// the microsecond precision the stores persist.
type SystemClock struct{}

// NewSystemClock creates a new SystemClock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current time.
func (c *SystemClock) Now() domain.Timestamp {
	return domain.Timestamp(time.Now().UTC().Truncate(time.Microsecond))
}
