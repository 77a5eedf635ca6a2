package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"sentrec/internal/domain"
	"sentrec/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	err      error
	started  []*fakeAudioSession
	startErr []error
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.startErr) > 0 {
		err := f.startErr[0]
		f.startErr = f.startErr[1:]
		if err != nil {
			return nil, err
		}
	} else if f.err != nil {
		return nil, f.err
	}
	session := newFakeAudioSession()
	f.started = append(f.started, session)
	return session, nil
}

func (f *fakeAudioCapture) sessions() []*fakeAudioSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeAudioSession, len(f.started))
	copy(out, f.started)
	return out
}

func (f *fakeAudioCapture) last(t *testing.T) *fakeAudioSession {
	t.Helper()
	sessions := f.sessions()
	if len(sessions) == 0 {
		t.Fatalf("no audio session was started")
	}
	return sessions[len(sessions)-1]
}

// fakeAudioSession hands out fed chunks one Read at a time.
type fakeAudioSession struct {
	chunks chan []byte
	closed chan struct{}

	mu        sync.Mutex
	stopCalls int
	stopErr   error
	once      sync.Once
}

func newFakeAudioSession() *fakeAudioSession {
	return &fakeAudioSession{chunks: make(chan []byte), closed: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	select {
	case chunk := <-f.chunks:
		return copy(p, chunk), nil
	case <-f.closed:
		return 0, io.EOF
	}
}

func (f *fakeAudioSession) feed(t *testing.T, chunk []byte) {
	t.Helper()
	select {
	case f.chunks <- chunk:
	case <-time.After(time.Second):
		t.Fatalf("audio pump did not read chunk")
	}
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	err := f.stopErr
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
	return err
}

func (f *fakeAudioSession) stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls > 0
}

// end simulates the device disappearing underneath the session.
func (f *fakeAudioSession) end() {
	f.once.Do(func() { close(f.closed) })
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *fakeClock) Now() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// pending returns the delays of timers that have not fired or been stopped.
func (c *fakeClock) pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, timer := range c.timers {
		if !timer.fired && !timer.stopped {
			out = append(out, timer.delay)
		}
	}
	return out
}

// fire runs the oldest live timer and reports whether one existed.
func (c *fakeClock) fire() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, timer := range c.timers {
		if !timer.fired && !timer.stopped {
			next = timer
			break
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.fired = true
	c.mu.Unlock()
	next.fn()
	return true
}

func (c *fakeClock) fireN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !c.fire() {
			t.Fatalf("expected timer %d of %d to be pending", i+1, n)
		}
	}
}

type stateEvent struct {
	status domain.Status
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu sync.Mutex

	states []stateEvent
	ticks  []int
	stored []int
	errors []errEvent
}

func (f *fakeEventSink) SessionStateChanged(status domain.Status, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{status: status, reason: reason})
}

func (f *fakeEventSink) CountdownTick(remaining int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, remaining)
}

func (f *fakeEventSink) SegmentStored(index int, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, index)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotTicks() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.ticks))
	copy(out, f.ticks)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) lastReason() domain.SessionStateReason {
	states := f.snapshotStates()
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1].reason
}

func (f *fakeEventSink) hasError(code domain.ErrorCode) bool {
	for _, e := range f.snapshotErrors() {
		if e.code == code {
			return true
		}
	}
	return false
}

type fakeArtifactSink struct {
	mu    sync.Mutex
	saved []domain.Artifact
	err   error
}

func (f *fakeArtifactSink) Save(_ context.Context, artifact domain.Artifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, artifact)
	return "/downloads/" + artifact.Name, nil
}

func (f *fakeArtifactSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type failingEngine struct {
	loadErr   error
	concatErr error
	loads     int
	closed    bool
}

func (f *failingEngine) Load(context.Context) error {
	f.loads++
	return f.loadErr
}

func (f *failingEngine) WriteFile(context.Context, string, []byte) error { return nil }

func (f *failingEngine) Concat(context.Context, string, string) error {
	if f.concatErr != nil {
		return f.concatErr
	}
	return errors.New("concat unavailable")
}

func (f *failingEngine) ReadFile(context.Context, string) ([]byte, error) { return nil, nil }

func (f *failingEngine) Close() error {
	f.closed = true
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
