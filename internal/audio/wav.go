package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	wavPCMFormat      = 1
	wavBitsPerSample  = 16
	wavBytesPerSample = 2
	wavHeaderSize     = 44

	// ContentTypeWAV is the MIME type of every captured segment.
	ContentTypeWAV = "audio/wav"
)

var ErrInvalidWAV = errors.New("invalid wav data")

// Format describes the PCM layout of a WAV file.
type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// EncodeWAV wraps s16le PCM in a canonical 44-byte RIFF header. An empty
// PCM slice yields a valid, silent file. A trailing odd byte is dropped.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	samples := make([]int, len(pcm)/wavBytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*wavBytesPerSample:])))
	}

	out := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(out, sampleRate, wavBitsPerSample, channels, wavPCMFormat)
	// The writer is in memory and the bit depth is fixed, so neither call
	// can fail.
	_ = encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: wavBitsPerSample,
	})
	_ = encoder.Close()

	data, _ := io.ReadAll(out.Reader())
	return data
}

// DecodeWAV walks the RIFF chunks and returns the fmt description and the
// raw data chunk. Unknown chunks (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (Format, []byte, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if err := decoder.FwdToPCM(); err != nil {
		return Format{}, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if err := decoder.Err(); err != nil {
		return Format{}, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if decoder.NumChans == 0 {
		return Format{}, nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	if decoder.PCMChunk == nil {
		return Format{}, nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}

	// Streams written without a final size report the data chunk as larger
	// than the file; the limit reader stops at whatever is there.
	pcm, err := io.ReadAll(io.LimitReader(decoder.PCMChunk, int64(decoder.PCMSize)))
	if err != nil {
		return Format{}, nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	format := Format{
		AudioFormat:   decoder.WavAudioFormat,
		Channels:      decoder.NumChans,
		SampleRate:    decoder.SampleRate,
		BitsPerSample: decoder.BitDepth,
	}
	// Drop the RIFF pad byte of an odd-sized chunk.
	if block := int(format.Channels) * int(format.BitsPerSample) / 8; block > 0 {
		pcm = pcm[:len(pcm)-len(pcm)%block]
	}
	return format, pcm, nil
}
