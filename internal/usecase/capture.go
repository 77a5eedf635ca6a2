package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"sentrec/internal/domain"
	"sentrec/internal/ports"
)

var (
	ErrDeviceDenied = ports.ErrDeviceDenied
	ErrNoDevice     = errors.New("no microphone acquired")
)

// CaptureSession owns one microphone stream and the recorder state bound to
// it. Stopping a recording turns the buffered audio into a segment for the
// bound sentence index and puts it in the store.
type CaptureSession struct {
	capture   ports.AudioCapture
	store     ports.SegmentStore
	events    ports.EventSink
	logger    *zap.Logger
	cfg       ports.AudioConfig
	chunkSize int

	// onLost runs after a stream that ended on its own has been dropped.
	onLost func()

	mu        sync.Mutex
	device    *liveDevice
	recording bool
	index     int
	buffer    segmentBuffer
}

type liveDevice struct {
	session  ports.AudioSession
	cancel   context.CancelFunc
	done     chan error
	stopping atomic.Bool
}

func NewCaptureSession(
	capture ports.AudioCapture,
	store ports.SegmentStore,
	events ports.EventSink,
	logger *zap.Logger,
	cfg ports.AudioConfig,
	chunkSize int,
) *CaptureSession {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureSession{
		capture:   capture,
		store:     store,
		events:    events,
		logger:    logger.Named("capture"),
		cfg:       cfg,
		chunkSize: chunkSize,
	}
}

// Acquire opens the microphone. It is a no-op while a device is held. A
// refusal is reported as device_denied and stays ErrDeviceDenied; any other
// failure is reported as audio_stream and returned as ErrNoDevice.
func (c *CaptureSession) Acquire(ctx context.Context) error {
	c.mu.Lock()
	if c.device != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	deviceCtx, cancel := context.WithCancel(ctx)
	session, err := c.capture.Start(deviceCtx, c.cfg)
	if err != nil {
		cancel()
		c.logger.Warn("microphone unavailable", zap.Error(err))
		if errors.Is(err, ErrDeviceDenied) {
			c.events.SessionError(domain.ErrorCodeDeviceDenied, err.Error())
			return fmt.Errorf("acquire microphone: %w", err)
		}
		c.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}

	dev := &liveDevice{session: session, cancel: cancel, done: make(chan error, 1)}

	c.mu.Lock()
	if c.device != nil {
		// Lost a race with another Acquire; keep the first device.
		c.mu.Unlock()
		dev.stopping.Store(true)
		_ = session.Stop()
		cancel()
		return nil
	}
	c.device = dev
	c.mu.Unlock()

	go pumpAudioChunks(session, c.chunkSize, c.appendChunk, dev.done)
	go c.watchDevice(dev)

	c.logger.Debug("microphone acquired")
	return nil
}

// Available reports whether a microphone is currently held.
func (c *CaptureSession) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}

// Bind sets the sentence index that the next finalized segment is tagged with.
func (c *CaptureSession) Bind(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = index
}

func (c *CaptureSession) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *CaptureSession) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Start clears any buffered audio and begins recording. It does nothing
// when a recording is already active.
func (c *CaptureSession) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording {
		return nil
	}
	if c.device == nil {
		return ErrNoDevice
	}
	c.buffer.Reset()
	c.recording = true
	c.logger.Debug("recording started", zap.Int("index", c.index))
	return nil
}

// Stop finalizes the active recording into the store. The returned bool is
// false when nothing was recording.
func (c *CaptureSession) Stop() (domain.Segment, bool) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return domain.Segment{}, false
	}
	segment, pcmBytes := c.finalizeLocked()
	c.mu.Unlock()

	c.storeSegment(segment, pcmBytes)
	return segment, true
}

func (c *CaptureSession) finalizeLocked() (domain.Segment, int) {
	c.recording = false
	pcmBytes := c.buffer.Len()
	return c.buffer.Finalize(c.index, c.cfg), pcmBytes
}

func (c *CaptureSession) storeSegment(segment domain.Segment, pcmBytes int) {
	c.store.Put(segment.Index, segment)
	if pcmBytes == 0 {
		c.logger.Info("empty capture stored", zap.Int("index", segment.Index))
	} else {
		c.logger.Debug("segment stored", zap.Int("index", segment.Index), zap.Int("pcm_bytes", pcmBytes))
	}
	c.events.SegmentStored(segment.Index, len(segment.Data))
}

// Release stops the microphone stream. Buffered audio that was not stopped
// first is discarded. Safe to call repeatedly.
func (c *CaptureSession) Release() {
	c.mu.Lock()
	dev := c.device
	c.device = nil
	c.recording = false
	c.buffer.Reset()
	c.mu.Unlock()

	if dev == nil {
		return
	}
	dev.stopping.Store(true)
	if err := dev.session.Stop(); err != nil {
		c.logger.Warn("microphone stop failed", zap.Error(err))
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	dev.cancel()
	c.logger.Debug("microphone released")
}

func (c *CaptureSession) appendChunk(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording {
		c.buffer.Append(chunk)
	}
}

// watchDevice drops a device whose stream ended on its own so the session
// reports no capture capability instead of recording silence forever. A take
// in progress keeps what was captured up to the loss.
func (c *CaptureSession) watchDevice(dev *liveDevice) {
	err := <-dev.done
	if dev.stopping.Load() {
		return
	}

	c.mu.Lock()
	if c.device != dev {
		c.mu.Unlock()
		return
	}
	c.device = nil
	var (
		segment  domain.Segment
		pcmBytes int
		wasTake  = c.recording
	)
	if wasTake {
		segment, pcmBytes = c.finalizeLocked()
	}
	onLost := c.onLost
	c.mu.Unlock()
	dev.cancel()

	c.logger.Warn("microphone stream lost", zap.Error(err), zap.Bool("recording", wasTake))
	if wasTake {
		c.storeSegment(segment, pcmBytes)
	}
	if onLost != nil {
		onLost()
	}

	detail := "microphone stream ended"
	if err != nil {
		detail = fmt.Sprintf("audio capture error: %v", err)
	}
	c.events.SessionError(domain.ErrorCodeAudioStream, detail)
}
