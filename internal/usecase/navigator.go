package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sentrec/internal/domain"
	"sentrec/internal/ports"
)

var (
	ErrNoSession        = errors.New("no recording session")
	ErrEmptySentenceSet = errors.New("sentence set has no sentences")
	ErrCountdownActive  = errors.New("countdown in progress")
	ErrSessionFinished  = errors.New("recording session already finished")
)

// Key names accepted by HandleKey.
const (
	KeyLeft       = "left"
	KeyRight      = "right"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
)

// Navigator walks the user through a sentence set. It drives the capture
// session on every transition: stop before the index moves, start again
// after AutoStartDelay, and a countdown before the very first recording.
//
// All methods and timer callbacks are serialized on one mutex. The event
// sink is called with that mutex held and must not call back in.
type Navigator struct {
	capture *CaptureSession
	store   ports.SegmentStore
	events  ports.EventSink
	clock   ports.Clock
	base    *zap.Logger
	cfg     Config

	mu             sync.Mutex
	ctx            context.Context
	mounted        bool
	sessionID      string
	logger         *zap.Logger
	set            domain.SentenceSet
	state          domain.SessionState
	index          int
	firstRecording bool
	countdown      int
	finished       bool
	timers         sessionTimers
}

func NewNavigator(
	audio ports.AudioCapture,
	store ports.SegmentStore,
	events ports.EventSink,
	clock ports.Clock,
	logger *zap.Logger,
	cfg Config,
) *Navigator {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.CountdownSteps < 0 {
		cfg.CountdownSteps = 0
	}
	if cfg.DevicePolicy == "" {
		cfg.DevicePolicy = ports.DevicePolicyPersistent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Navigator{
		capture: NewCaptureSession(audio, store, events, logger, cfg.Audio, cfg.ChunkSize),
		store:   store,
		events:  events,
		clock:   clock,
		base:    logger.Named("navigator"),
		logger:  logger.Named("navigator"),
		cfg:     cfg,
		state:   domain.SessionStateIdle,
	}
	n.capture.onLost = n.deviceLost
	return n
}

// Begin mounts a new session for set: the store is cleared, the index
// returns to the first sentence and the microphone is acquired. A denied
// microphone is returned but leaves the session mounted without capture.
func (n *Navigator) Begin(ctx context.Context, set domain.SentenceSet) error {
	if set.Len() == 0 {
		return ErrEmptySentenceSet
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.teardownLocked()
	n.store.Clear()

	n.ctx = ctx
	n.mounted = true
	n.sessionID = uuid.NewString()
	n.set = set
	n.state = domain.SessionStateIdle
	n.index = 0
	n.firstRecording = true
	n.countdown = 0
	n.finished = false

	n.logger = n.base.With(zap.String("session_id", n.sessionID))
	n.logger.Info("session started", zap.String("set", set.Name), zap.Int("sentences", set.Len()))
	n.emitLocked(domain.SessionReasonSetSelected)

	n.capture.Bind(0)
	if err := n.capture.Acquire(ctx); err != nil {
		n.emitLocked(domain.SessionReasonMicUnavailable)
		return err
	}
	n.emitLocked(domain.SessionReasonMicReady)
	return nil
}

// RetryMicrophone re-requests the device after a denial.
func (n *Navigator) RetryMicrophone() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireActiveLocked(); err != nil {
		return err
	}
	if err := n.capture.Acquire(n.ctx); err != nil {
		n.emitLocked(domain.SessionReasonMicUnavailable)
		return err
	}
	n.emitLocked(domain.SessionReasonMicReady)
	return nil
}

// ToggleMic is the mic control: it stops an active recording or starts a
// new one for the current sentence. It is rejected during the countdown.
func (n *Navigator) ToggleMic() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireActiveLocked(); err != nil {
		return err
	}
	if n.state == domain.SessionStateCountdown {
		return ErrCountdownActive
	}
	// A manual toggle overrides the pending auto-start.
	n.timers.cancel()
	if n.capture.Recording() {
		n.stopLocked()
		return nil
	}
	return n.startLocked()
}

// Next stops any capture and advances one sentence, unless already at the
// last one. Recording resumes automatically after AutoStartDelay.
func (n *Navigator) Next() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireActiveLocked(); err != nil {
		return err
	}
	n.firstRecording = false
	if n.index >= n.set.Len()-1 {
		return nil
	}
	n.moveLocked(n.index + 1)
	return nil
}

// Previous stops any capture and goes back one sentence, unless already at
// the first one.
func (n *Navigator) Previous() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireActiveLocked(); err != nil {
		return err
	}
	if n.index == 0 {
		return nil
	}
	n.moveLocked(n.index - 1)
	return nil
}

// HandleKey maps arrow keys to Previous and Next. Other keys are ignored.
func (n *Navigator) HandleKey(key string) error {
	switch key {
	case KeyLeft, KeyArrowLeft:
		return n.Previous()
	case KeyRight, KeyArrowRight:
		return n.Next()
	default:
		return nil
	}
}

// Finish stops capture, storing the in-flight segment, releases the
// microphone and marks the session complete.
func (n *Navigator) Finish() (domain.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireActiveLocked(); err != nil {
		return n.statusLocked(), err
	}

	n.timers.cancel()
	n.countdown = 0
	n.stopLocked()
	n.capture.Release()
	n.finished = true
	n.state = domain.SessionStateFinished

	reason := domain.SessionReasonSessionFinished
	if n.store.Len() == 0 {
		reason = domain.SessionReasonNoRecordings
	}
	n.logger.Info("session finished", zap.Int("segments", n.store.Len()))
	n.emitLocked(reason)
	return n.statusLocked(), nil
}

// Home abandons the session: timers are cancelled, the microphone is
// released and every stored segment is dropped.
func (n *Navigator) Home() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.mounted {
		return
	}
	n.teardownLocked()
	n.store.Clear()
	n.mounted = false
	n.finished = false
	n.set = domain.SentenceSet{}
	n.index = 0
	n.state = domain.SessionStateIdle
	n.logger.Info("returned home")
	n.emitLocked(domain.SessionReasonReturnedHome)
}

// Close releases timers and the microphone without touching the store.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teardownLocked()
}

// Status returns a snapshot of the session.
func (n *Navigator) Status() domain.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.statusLocked()
}

func (n *Navigator) requireActiveLocked() error {
	if !n.mounted {
		return ErrNoSession
	}
	if n.finished {
		return ErrSessionFinished
	}
	return nil
}

// moveLocked is the shared Next/Previous transition. The stop completes and
// the segment is stored before the new index is bound or a restart is
// scheduled.
func (n *Navigator) moveLocked(index int) {
	n.timers.cancel()
	n.countdown = 0
	n.stopLocked()

	n.index = index
	n.bindLocked(index)
	n.state = domain.SessionStateStopped
	n.emitLocked(domain.SessionReasonNavigated)

	if index > 0 {
		n.scheduleAutoStartLocked()
	}
}

// bindLocked points the capture session at index, rebuilding the device
// first when the policy asks for it.
func (n *Navigator) bindLocked(index int) {
	if n.cfg.DevicePolicy != ports.DevicePolicyRebuild {
		n.capture.Bind(index)
		return
	}
	n.capture.Release()
	n.capture.Bind(index)
	if err := n.capture.Acquire(n.ctx); err != nil {
		n.emitLocked(domain.SessionReasonMicUnavailable)
		return
	}
	n.emitLocked(domain.SessionReasonDeviceReacquired)
}

func (n *Navigator) startLocked() error {
	if n.capture.Recording() {
		return nil
	}
	if !n.capture.Available() {
		n.logger.Warn("start ignored without microphone", zap.Int("index", n.index))
		return ErrNoDevice
	}
	if n.firstRecording && n.cfg.CountdownSteps > 0 {
		n.beginCountdownLocked()
		return nil
	}
	return n.beginRecordingLocked()
}

func (n *Navigator) beginRecordingLocked() error {
	if err := n.capture.Start(); err != nil {
		n.state = domain.SessionStateStopped
		n.logger.Warn("recording not started", zap.Int("index", n.index), zap.Error(err))
		n.emitLocked(domain.SessionReasonMicUnavailable)
		return err
	}
	n.firstRecording = false
	n.state = domain.SessionStateRecording
	n.emitLocked(domain.SessionReasonRecordingStarted)
	return nil
}

func (n *Navigator) stopLocked() {
	if _, stopped := n.capture.Stop(); !stopped {
		return
	}
	n.state = domain.SessionStateStopped
	n.emitLocked(domain.SessionReasonRecordingStopped)
}

func (n *Navigator) beginCountdownLocked() {
	n.timers.cancel()
	n.state = domain.SessionStateCountdown
	n.countdown = n.cfg.CountdownSteps
	n.emitLocked(domain.SessionReasonCountdownStarted)
	n.events.CountdownTick(n.countdown)
	n.scheduleTickLocked(n.timers.generation)
}

func (n *Navigator) scheduleTickLocked(generation uint64) {
	n.timers.countdown = n.clock.AfterFunc(n.cfg.CountdownInterval, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.timers.generation != generation || n.state != domain.SessionStateCountdown {
			return
		}
		n.countdown--
		n.events.CountdownTick(n.countdown)
		if n.countdown > 0 {
			n.scheduleTickLocked(generation)
			return
		}
		n.timers.countdown = nil
		_ = n.beginRecordingLocked()
	})
}

func (n *Navigator) scheduleAutoStartLocked() {
	generation := n.timers.generation
	n.timers.autoStart = n.clock.AfterFunc(n.cfg.AutoStartDelay, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.timers.generation != generation || !n.mounted || n.finished {
			return
		}
		n.timers.autoStart = nil
		if err := n.startLocked(); err != nil {
			n.logger.Debug("auto-start skipped", zap.Error(err))
		}
	})
}

// deviceLost runs when the microphone stream ends by itself. Whatever was
// recorded has already been stored by the capture session.
func (n *Navigator) deviceLost() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.mounted || n.finished {
		return
	}
	n.timers.cancel()
	n.countdown = 0
	if n.state == domain.SessionStateRecording || n.state == domain.SessionStateCountdown {
		n.state = domain.SessionStateStopped
	}
	n.logger.Warn("microphone lost", zap.Int("index", n.index))
	n.emitLocked(domain.SessionReasonMicUnavailable)
}

func (n *Navigator) teardownLocked() {
	n.timers.cancel()
	n.countdown = 0
	n.capture.Stop()
	n.capture.Release()
}

func (n *Navigator) statusLocked() domain.Status {
	status := domain.Status{
		SessionID:      n.sessionID,
		SetName:        n.set.Name,
		State:          n.state,
		Index:          n.index,
		Total:          n.set.Len(),
		Recording:      n.state == domain.SessionStateRecording,
		Countdown:      n.countdown,
		FirstRecording: n.firstRecording,
		MicAvailable:   n.capture.Available(),
		Completed:      n.store.Len(),
		Finished:       n.finished,
	}
	if n.index < len(n.set.Sentences) {
		status.Sentence = n.set.Sentences[n.index]
	}
	if _, ok := n.store.Get(n.index); ok {
		status.HasSegment = true
	}
	return status
}

func (n *Navigator) emitLocked(reason domain.SessionStateReason) {
	n.events.SessionStateChanged(n.statusLocked(), reason)
}
