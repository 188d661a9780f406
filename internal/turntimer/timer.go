// Package turntimer schedules per-room turn deadlines.
//
// A Timer is never cancelled. Each Arm captures a generation number and the
// fire callback receives it back; the owner compares it with its live
// generation and drops fires that have been superseded.
package turntimer

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer fires fn(generation) once per Arm after a fixed duration.
type Timer struct {
	clock    clockwork.Clock
	duration time.Duration
	fire     func(generation uint64)
}

func New(clock clockwork.Clock, d time.Duration, fire func(generation uint64)) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{clock: clock, duration: d, fire: fire}
}

// Arm schedules a fire for generation and returns the deadline.
func (t *Timer) Arm(generation uint64) time.Time {
	deadline := t.clock.Now().Add(t.duration)
	t.clock.AfterFunc(t.duration, func() { t.fire(generation) })
	return deadline
}

func (t *Timer) Duration() time.Duration { return t.duration }
