package playback

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"sentrec/internal/domain"
	"sentrec/internal/ports"
)

// Status is a playlist snapshot for the UI.
type Status struct {
	Playing bool   `json:"playing"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
}

// Playlist plays a list of segments one after another. When the last one
// ends it stops and rewinds to the first. A one-item playlist is the
// single-recording player.
//
// Pausing stops the running handle; resuming replays the current segment
// from its start.
type Playlist struct {
	player   ports.Player
	logger   *zap.Logger
	onChange func(Status)

	mu         sync.Mutex
	segments   []domain.Segment
	index      int
	playing    bool
	lastErr    string
	cancel     context.CancelFunc
	generation uint64
}

// NewPlaylist builds a stopped playlist. onChange, if set, is called after
// every transition without the playlist lock held.
func NewPlaylist(player ports.Player, logger *zap.Logger, onChange func(Status)) *Playlist {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Playlist{player: player, logger: logger.Named("playback"), onChange: onChange}
}

// SetSource replaces the segment list. Any running playback is released and
// the position returns to the first segment.
func (p *Playlist) SetSource(segments []domain.Segment) {
	p.mu.Lock()
	p.releaseLocked()
	p.segments = append([]domain.Segment(nil), segments...)
	p.index = 0
	p.playing = false
	p.lastErr = ""
	status := p.statusLocked()
	p.mu.Unlock()
	p.notify(status)
}

// Toggle pauses a running playlist or starts it from the current position.
// An empty playlist stays stopped.
func (p *Playlist) Toggle(ctx context.Context) Status {
	p.mu.Lock()
	if p.playing {
		p.releaseLocked()
		p.playing = false
	} else if len(p.segments) > 0 {
		p.lastErr = ""
		p.playing = true
		p.playLocked(ctx)
	}
	status := p.statusLocked()
	p.mu.Unlock()
	p.notify(status)
	return status
}

// Stop releases the running handle and rewinds.
func (p *Playlist) Stop() {
	p.mu.Lock()
	p.releaseLocked()
	p.playing = false
	p.index = 0
	status := p.statusLocked()
	p.mu.Unlock()
	p.notify(status)
}

func (p *Playlist) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Playlist) playLocked(ctx context.Context) {
	p.generation++
	generation := p.generation
	playCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	segment := p.segments[p.index]

	go func() {
		err := p.player.Play(playCtx, segment.Data)
		cancel()
		p.ended(ctx, generation, err)
	}()
}

// ended advances after a handle finishes. Results from a released handle
// are ignored.
func (p *Playlist) ended(ctx context.Context, generation uint64, err error) {
	p.mu.Lock()
	if generation != p.generation || !p.playing {
		p.mu.Unlock()
		return
	}
	p.cancel = nil

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		p.logger.Warn("playback failed", zap.Int("index", p.index), zap.Error(err))
		p.lastErr = err.Error()
		p.playing = false
	case err != nil:
		p.playing = false
	case p.index < len(p.segments)-1:
		p.index++
		p.playLocked(ctx)
	default:
		p.playing = false
		p.index = 0
	}
	status := p.statusLocked()
	p.mu.Unlock()
	p.notify(status)
}

func (p *Playlist) releaseLocked() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Playlist) statusLocked() Status {
	return Status{Playing: p.playing, Index: p.index, Total: len(p.segments), Error: p.lastErr}
}

func (p *Playlist) notify(status Status) {
	if p.onChange != nil {
		p.onChange(status)
	}
}
