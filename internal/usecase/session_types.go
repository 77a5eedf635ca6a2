package usecase

import (
	"time"

	"sentrec/internal/ports"
)

// Config controls recording-session behavior.
type Config struct {
	Audio             ports.AudioConfig
	ChunkSize         int
	CountdownSteps    int
	CountdownInterval time.Duration
	AutoStartDelay    time.Duration
	DevicePolicy      ports.DevicePolicy
}

// sessionTimers tracks the scheduled tasks tied to navigation. Bumping the
// generation invalidates callbacks that already fired but have not yet
// acquired the controller lock.
type sessionTimers struct {
	countdown  ports.Timer
	autoStart  ports.Timer
	generation uint64
}

func (t *sessionTimers) cancel() {
	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}
	if t.autoStart != nil {
		t.autoStart.Stop()
		t.autoStart = nil
	}
	t.generation++
}
