package clock

import (
	"time"

	"sentrec/internal/ports"
)

// System schedules callbacks on the runtime timer wheel.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

func (System) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}
