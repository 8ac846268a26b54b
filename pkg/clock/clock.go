// Package clock abstracts time so that waits can be driven by tests.
//
// Production code uses Real(). Tests use NewFakeClock() and advance time
// explicitly, or NewFakeClockAuto() to let every wait complete immediately.
package clock

import "time"

// Clock provides the time operations used by the runner.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)

	// After waits for the duration to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time
}
