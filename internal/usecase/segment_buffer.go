package usecase

import (
	"sentrec/internal/audio"
	"sentrec/internal/domain"
	"sentrec/internal/ports"
)

// segmentBuffer accumulates PCM for the recording in progress. It is guarded
// by the owning CaptureSession's mutex.
type segmentBuffer struct {
	pcm []byte
}

func (b *segmentBuffer) Append(chunk []byte) {
	b.pcm = append(b.pcm, chunk...)
}

func (b *segmentBuffer) Reset() {
	b.pcm = nil
}

func (b *segmentBuffer) Len() int {
	return len(b.pcm)
}

// Finalize wraps the buffered PCM into a WAV segment and empties the buffer.
// The PCM is truncated to a whole frame so every segment stays aligned.
func (b *segmentBuffer) Finalize(index int, cfg ports.AudioConfig) domain.Segment {
	frame := cfg.Channels * 2
	if frame <= 0 {
		frame = 2
	}
	pcm := b.pcm[:len(b.pcm)-len(b.pcm)%frame]
	b.pcm = nil

	return domain.Segment{
		Index:       index,
		Data:        audio.EncodeWAV(pcm, cfg.SampleRate, cfg.Channels),
		ContentType: audio.ContentTypeWAV,
	}
}
