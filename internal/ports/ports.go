package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"sentrec/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// BytesPerSecond is the PCM byte rate for s16le audio in this config.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * 2
}

// ErrDeviceDenied marks an AudioCapture failure caused by the user or the
// system refusing microphone access.
var ErrDeviceDenied = errors.New("microphone access denied")

// AudioSession is a live microphone stream.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture grants microphone streams.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// DevicePolicy decides what happens to the microphone when the sentence
// index changes.
type DevicePolicy string

const (
	// DevicePolicyPersistent keeps one stream for the whole session.
	DevicePolicyPersistent DevicePolicy = "persistent"
	// DevicePolicyRebuild tears down and re-acquires the stream on every
	// index change.
	DevicePolicyRebuild DevicePolicy = "rebuild"
)

// SegmentStore holds completed segments keyed by sentence index.
type SegmentStore interface {
	Put(index int, segment domain.Segment)
	Get(index int) (domain.Segment, bool)
	All() []domain.Segment
	Len() int
	Clear()
}

// ConcatEngine joins container files without re-encoding. Files live in an
// engine-owned working area addressed by bare names.
type ConcatEngine interface {
	Load(ctx context.Context) error
	WriteFile(ctx context.Context, name string, data []byte) error
	Concat(ctx context.Context, manifest string, output string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Close() error
}

// ArtifactSink presents a finished file to the user as a save action.
type ArtifactSink interface {
	Save(ctx context.Context, artifact domain.Artifact) (string, error)
}

// SentenceSetProvider supplies named sentence sets.
type SentenceSetProvider interface {
	Names() []string
	Get(name string) (domain.SentenceSet, error)
}

// Player plays a single audio blob until it ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, data []byte) error
}

// Timer is a cancellable scheduled task.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Callbacks run on their own goroutine.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(status domain.Status, reason domain.SessionStateReason)
	CountdownTick(remaining int)
	SegmentStored(index int, bytes int)
	SessionError(code domain.ErrorCode, detail string)
}
