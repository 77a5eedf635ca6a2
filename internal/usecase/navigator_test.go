package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sentrec/internal/audio"
	"sentrec/internal/domain"
	"sentrec/internal/ports"
	"sentrec/internal/store"
)

type navigatorHarness struct {
	nav    *Navigator
	mic    *fakeAudioCapture
	clock  *fakeClock
	events *fakeEventSink
	store  *store.RecordingStore
}

func newHarness(t *testing.T, mic *fakeAudioCapture, policy ports.DevicePolicy) *navigatorHarness {
	t.Helper()
	h := &navigatorHarness{
		mic:    mic,
		clock:  &fakeClock{},
		events: &fakeEventSink{},
		store:  store.NewRecordingStore(),
	}
	h.nav = NewNavigator(mic, h.store, h.events, h.clock, nil, Config{
		Audio:             ports.AudioConfig{SampleRate: 16000, Channels: 1},
		ChunkSize:         512,
		CountdownSteps:    3,
		CountdownInterval: time.Second,
		AutoStartDelay:    500 * time.Millisecond,
		DevicePolicy:      policy,
	})
	t.Cleanup(h.nav.Close)
	return h
}

func threeSentences() domain.SentenceSet {
	return domain.SentenceSet{Name: "pangrams", Sentences: []string{
		"The quick brown fox jumps over the lazy dog.",
		"Pack my box with five dozen liquor jugs.",
		"How vexingly quick daft zebras jump!",
	}}
}

// record feeds pcm into the live device and waits until it is buffered.
func (h *navigatorHarness) record(t *testing.T, pcm []byte) {
	t.Helper()
	if !h.nav.Status().Recording {
		t.Fatalf("expected to be recording at index %d", h.nav.Status().Index)
	}
	before := bufferedLen(h.nav.capture)
	h.mic.last(t).feed(t, pcm)
	waitFor(t, "buffered audio", func() bool { return bufferedLen(h.nav.capture) == before+len(pcm) })
}

func (h *navigatorHarness) pcmAt(t *testing.T, index int) []byte {
	t.Helper()
	segment, ok := h.store.Get(index)
	if !ok {
		t.Fatalf("no segment at index %d", index)
	}
	_, pcm, err := audio.DecodeWAV(segment.Data)
	if err != nil {
		t.Fatalf("decode segment %d: %v", index, err)
	}
	return pcm
}

func TestNavigatorFirstRecordingRunsCountdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := h.nav.ToggleMic(); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	status := h.nav.Status()
	if status.State != domain.SessionStateCountdown || status.Countdown != 3 {
		t.Fatalf("expected countdown from 3, got %+v", status)
	}
	if status.ShowMicToggle() || status.Recording {
		t.Fatalf("mic toggle must be hidden and recording off during countdown")
	}
	if err := h.nav.ToggleMic(); !errors.Is(err, ErrCountdownActive) {
		t.Fatalf("expected ErrCountdownActive, got %v", err)
	}
	if pending := h.clock.pending(); len(pending) != 1 || pending[0] != time.Second {
		t.Fatalf("expected one 1s countdown tick pending, got %v", pending)
	}

	h.clock.fireN(t, 3)

	ticks := h.events.snapshotTicks()
	if len(ticks) != 4 || ticks[0] != 3 || ticks[1] != 2 || ticks[2] != 1 || ticks[3] != 0 {
		t.Fatalf("unexpected countdown ticks: %v", ticks)
	}
	status = h.nav.Status()
	if status.State != domain.SessionStateRecording || !status.Recording || status.FirstRecording {
		t.Fatalf("expected recording after countdown, got %+v", status)
	}
	if h.events.lastReason() != domain.SessionReasonRecordingStarted {
		t.Fatalf("unexpected last reason %s", h.events.lastReason())
	}
	if len(h.clock.pending()) != 0 {
		t.Fatalf("no timers should remain after countdown")
	}
}

func TestNavigatorRecordsEverySentenceInOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	set := threeSentences()
	if err := h.nav.Begin(context.Background(), set); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{1, 0})

	for i := 1; i < set.Len(); i++ {
		if err := h.nav.Next(); err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if _, ok := h.store.Get(i - 1); !ok {
			t.Fatalf("segment %d must be stored before the index moves on", i-1)
		}
		status := h.nav.Status()
		if status.Index != i || status.Recording {
			t.Fatalf("expected stopped at index %d, got %+v", i, status)
		}
		if pending := h.clock.pending(); len(pending) != 1 || pending[0] != 500*time.Millisecond {
			t.Fatalf("expected 500ms auto-start, got %v", pending)
		}
		h.clock.fireN(t, 1)
		h.record(t, []byte{byte(i + 1), 0})
	}

	status, err := h.nav.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if !status.Finished || status.Completed != set.Len() {
		t.Fatalf("unexpected finish status: %+v", status)
	}
	if h.store.Len() != set.Len() {
		t.Fatalf("expected %d segments, got %d", set.Len(), h.store.Len())
	}
	for i := 0; i < set.Len(); i++ {
		if pcm := h.pcmAt(t, i); !bytes.Equal(pcm, []byte{byte(i + 1), 0}) {
			t.Fatalf("segment %d has wrong audio %v", i, pcm)
		}
	}
	if len(h.mic.sessions()) != 1 {
		t.Fatalf("persistent policy must open one device, got %d", len(h.mic.sessions()))
	}
	if !h.mic.last(t).stopped() {
		t.Fatalf("finish must release the microphone")
	}
	if h.events.lastReason() != domain.SessionReasonSessionFinished {
		t.Fatalf("unexpected last reason %s", h.events.lastReason())
	}
	if err := h.nav.Next(); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished after finish, got %v", err)
	}
}

func TestNavigatorPreviousReRecordReplacesOnlyThatIndex(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{1, 0})
	_ = h.nav.Next()
	h.clock.fireN(t, 1)
	h.record(t, []byte{2, 0})
	_ = h.nav.Next()
	h.clock.fireN(t, 1)
	h.record(t, []byte{3, 0})
	_ = h.nav.ToggleMic()

	if err := h.nav.Previous(); err != nil {
		t.Fatalf("previous failed: %v", err)
	}
	status := h.nav.Status()
	if status.Index != 1 || !status.HasSegment {
		t.Fatalf("expected index 1 with an existing segment, got %+v", status)
	}
	h.clock.fireN(t, 1)
	h.record(t, []byte{7, 7})
	_ = h.nav.ToggleMic()

	if h.store.Len() != 3 {
		t.Fatalf("re-recording must replace, got %d segments", h.store.Len())
	}
	if pcm := h.pcmAt(t, 1); !bytes.Equal(pcm, []byte{7, 7}) {
		t.Fatalf("index 1 should hold the new take, got %v", pcm)
	}
	if pcm := h.pcmAt(t, 2); !bytes.Equal(pcm, []byte{3, 0}) {
		t.Fatalf("index 2 must be untouched, got %v", pcm)
	}
}

func TestNavigatorBoundsAndArrowKeys(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	if err := h.nav.HandleKey(KeyArrowLeft); err != nil {
		t.Fatalf("previous at first sentence failed: %v", err)
	}
	if h.nav.Status().Index != 0 || len(h.clock.pending()) != 0 {
		t.Fatalf("previous at first sentence must do nothing")
	}

	_ = h.nav.HandleKey(KeyRight)
	_ = h.nav.HandleKey(KeyArrowRight)
	_ = h.nav.HandleKey(KeyRight)
	if h.nav.Status().Index != 2 {
		t.Fatalf("expected to stop at the last sentence, got %d", h.nav.Status().Index)
	}
	if pending := h.clock.pending(); len(pending) != 1 {
		t.Fatalf("only the latest auto-start should be pending, got %v", pending)
	}

	_ = h.nav.HandleKey(KeyLeft)
	if h.nav.Status().Index != 1 {
		t.Fatalf("expected index 1, got %d", h.nav.Status().Index)
	}
	_ = h.nav.HandleKey("x")
	if h.nav.Status().Index != 1 {
		t.Fatalf("unknown keys must be ignored")
	}

	_ = h.nav.Previous()
	if pending := h.clock.pending(); len(pending) != 0 {
		t.Fatalf("returning to the first sentence must not auto-start, got %v", pending)
	}
}

func TestNavigatorNextCancelsCountdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 1)

	_ = h.nav.Next()
	status := h.nav.Status()
	if status.State != domain.SessionStateStopped || status.Countdown != 0 {
		t.Fatalf("countdown should be cancelled, got %+v", status)
	}
	if pending := h.clock.pending(); len(pending) != 1 || pending[0] != 500*time.Millisecond {
		t.Fatalf("only the auto-start should be pending, got %v", pending)
	}

	h.clock.fireN(t, 1)
	status = h.nav.Status()
	if status.Index != 1 || !status.Recording {
		t.Fatalf("expected direct recording at index 1 without countdown, got %+v", status)
	}
	if _, ok := h.store.Get(0); ok {
		t.Fatalf("nothing was recorded at index 0")
	}
}

func TestNavigatorToggleMicCancelsAutoStart(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{1, 0})

	_ = h.nav.Next()
	if pending := h.clock.pending(); len(pending) != 1 {
		t.Fatalf("expected the auto-start to be pending, got %v", pending)
	}

	if err := h.nav.ToggleMic(); err != nil {
		t.Fatalf("manual start failed: %v", err)
	}
	if len(h.clock.pending()) != 0 {
		t.Fatalf("a manual start must cancel the pending auto-start")
	}
	h.record(t, []byte{2, 0})
	if err := h.nav.ToggleMic(); err != nil {
		t.Fatalf("manual stop failed: %v", err)
	}

	if h.clock.fire() {
		t.Fatalf("no timer may remain after the manual take")
	}
	status := h.nav.Status()
	if status.Recording || status.State != domain.SessionStateStopped {
		t.Fatalf("expected to stay stopped, got %+v", status)
	}
	if pcm := h.pcmAt(t, 1); !bytes.Equal(pcm, []byte{2, 0}) {
		t.Fatalf("unexpected pcm at index 1: %v", pcm)
	}
}

func TestNavigatorLostMicrophoneMidRecording(t *testing.T) {
	t.Parallel()

	mic := &fakeAudioCapture{}
	h := newHarness(t, mic, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{7, 0})

	mic.last(t).end()
	waitFor(t, "stream error event", func() bool { return h.events.hasError(domain.ErrorCodeAudioStream) })

	status := h.nav.Status()
	if status.Recording || status.State != domain.SessionStateStopped || status.MicAvailable {
		t.Fatalf("expected a stopped session without microphone, got %+v", status)
	}
	if h.events.lastReason() != domain.SessionReasonMicUnavailable {
		t.Fatalf("expected mic unavailable reason, got %s", h.events.lastReason())
	}
	if pcm := h.pcmAt(t, 0); !bytes.Equal(pcm, []byte{7, 0}) {
		t.Fatalf("the interrupted take must be kept, got %v", pcm)
	}
	if len(h.clock.pending()) != 0 {
		t.Fatalf("no timers may remain after the device is lost")
	}
	if err := h.nav.ToggleMic(); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestNavigatorMicrophoneDenied(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{err: fmt.Errorf("NotAllowedError: %w", ports.ErrDeviceDenied)}, ports.DevicePolicyPersistent)
	err := h.nav.Begin(context.Background(), threeSentences())
	if !errors.Is(err, ErrDeviceDenied) {
		t.Fatalf("expected ErrDeviceDenied, got %v", err)
	}
	if !h.events.hasError(domain.ErrorCodeDeviceDenied) {
		t.Fatalf("denial must be reported")
	}
	if h.nav.Status().MicAvailable {
		t.Fatalf("mic must be unavailable")
	}

	if err := h.nav.ToggleMic(); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	_ = h.nav.Next()
	h.clock.fireN(t, 1)
	if h.nav.Status().Recording {
		t.Fatalf("must not record without a device")
	}

	status, err := h.nav.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if status.Completed != 0 || h.store.Len() != 0 {
		t.Fatalf("no segment may be stored, got %d", h.store.Len())
	}
	if h.events.lastReason() != domain.SessionReasonNoRecordings {
		t.Fatalf("expected no recordings reason, got %s", h.events.lastReason())
	}
}

func TestNavigatorRetryMicrophoneAfterDenial(t *testing.T) {
	t.Parallel()

	mic := &fakeAudioCapture{startErr: []error{ports.ErrDeviceDenied, nil}}
	h := newHarness(t, mic, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); !errors.Is(err, ErrDeviceDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
	if err := h.nav.RetryMicrophone(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !h.nav.Status().MicAvailable {
		t.Fatalf("mic should be available after retry")
	}
}

func TestNavigatorFinishMidRecordingStoresSegment(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{5, 0})

	status, err := h.nav.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if status.Completed != 1 || !status.Finished || status.Recording {
		t.Fatalf("unexpected status %+v", status)
	}
	if pcm := h.pcmAt(t, 0); !bytes.Equal(pcm, []byte{5, 0}) {
		t.Fatalf("unexpected pcm %v", pcm)
	}

	states := h.events.snapshotStates()
	var stoppedAt, finishedAt = -1, -1
	for i, s := range states {
		switch s.reason {
		case domain.SessionReasonRecordingStopped:
			stoppedAt = i
		case domain.SessionReasonSessionFinished:
			finishedAt = i
		}
	}
	if stoppedAt < 0 || finishedAt < stoppedAt {
		t.Fatalf("recording must stop before the session finishes: %v", states)
	}
}

func TestNavigatorSingleSentenceFinishWhileRecording(t *testing.T) {
	t.Parallel()

	mic := &fakeAudioCapture{}
	h := newHarness(t, mic, ports.DevicePolicyPersistent)
	set := domain.SentenceSet{Name: "one", Sentences: []string{"Only this."}}
	if err := h.nav.Begin(context.Background(), set); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{9, 0})

	status, err := h.nav.Finish()
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if status.Completed != 1 || status.Total != 1 || !status.Finished || status.Recording {
		t.Fatalf("unexpected status %+v", status)
	}
	if h.events.lastReason() != domain.SessionReasonSessionFinished {
		t.Fatalf("expected session finished reason, got %s", h.events.lastReason())
	}
	if pcm := h.pcmAt(t, 0); !bytes.Equal(pcm, []byte{9, 0}) {
		t.Fatalf("unexpected pcm %v", pcm)
	}
	if !mic.last(t).stopped() {
		t.Fatalf("finish must release the microphone")
	}
}

func TestNavigatorRebuildPolicyReacquiresPerIndex(t *testing.T) {
	t.Parallel()

	mic := &fakeAudioCapture{}
	h := newHarness(t, mic, ports.DevicePolicyRebuild)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	h.record(t, []byte{1, 0})

	_ = h.nav.Next()
	sessions := mic.sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected a rebuilt device, got %d sessions", len(sessions))
	}
	if !sessions[0].stopped() || sessions[1].stopped() {
		t.Fatalf("old device must be released and new one live")
	}
	if _, ok := h.store.Get(0); !ok {
		t.Fatalf("segment must be stored before the device is rebuilt")
	}

	h.clock.fireN(t, 1)
	h.record(t, []byte{2, 0})
	_, _ = h.nav.Finish()
	if pcm := h.pcmAt(t, 1); !bytes.Equal(pcm, []byte{2, 0}) {
		t.Fatalf("unexpected pcm on rebuilt device %v", pcm)
	}
}

func TestNavigatorHomeClearsStoreAndReleases(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	_ = h.nav.Next()

	h.nav.Home()

	if h.store.Len() != 0 {
		t.Fatalf("home must clear the store")
	}
	if !h.mic.last(t).stopped() {
		t.Fatalf("home must release the microphone")
	}
	if len(h.clock.pending()) != 0 {
		t.Fatalf("home must cancel timers")
	}
	if err := h.nav.Next(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	h.nav.Home()
}

func TestNavigatorBeginRejectsEmptySet(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), domain.SentenceSet{Name: "empty"}); !errors.Is(err, ErrEmptySentenceSet) {
		t.Fatalf("expected ErrEmptySentenceSet, got %v", err)
	}
}

func TestNavigatorBeginClearsPreviousSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeAudioCapture{}, ports.DevicePolicyPersistent)
	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_ = h.nav.ToggleMic()
	h.clock.fireN(t, 3)
	_ = h.nav.ToggleMic()
	first := h.nav.Status().SessionID

	if err := h.nav.Begin(context.Background(), threeSentences()); err != nil {
		t.Fatalf("second begin failed: %v", err)
	}
	status := h.nav.Status()
	if status.SessionID == first || status.Completed != 0 || !status.FirstRecording {
		t.Fatalf("expected a fresh session, got %+v", status)
	}
}
