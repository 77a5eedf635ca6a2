package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
)

// WAVConcat is an in-memory concat engine for PCM WAV segments. It reads
// the same manifest format as ffmpeg's concat demuxer and joins the data
// chunks sample-for-sample.
type WAVConcat struct {
	mu     sync.Mutex
	loaded bool
	files  map[string][]byte
}

func NewWAVConcat() *WAVConcat {
	return &WAVConcat{}
}

func (c *WAVConcat) Load(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.files = make(map[string][]byte)
		c.loaded = true
	}
	return nil
}

func (c *WAVConcat) WriteFile(_ context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrEngineNotLoaded
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.files[name] = buf
	return nil
}

func (c *WAVConcat) Concat(_ context.Context, manifest string, output string) error {
	if err := validateName(output); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrEngineNotLoaded
	}

	list, ok := c.files[manifest]
	if !ok {
		return fmt.Errorf("manifest %s not found", manifest)
	}
	names, err := ParseManifest(list)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("manifest %s lists no files", manifest)
	}

	var (
		format Format
		joined bytes.Buffer
	)
	for i, name := range names {
		data, ok := c.files[name]
		if !ok {
			return fmt.Errorf("%s: no such file", name)
		}
		f, pcm, err := DecodeWAV(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if f.AudioFormat != wavPCMFormat || f.BitsPerSample != wavBitsPerSample {
			return fmt.Errorf("%s: unsupported wav encoding (format=%d bits=%d)", name, f.AudioFormat, f.BitsPerSample)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return fmt.Errorf("%s: stream parameters differ from first input", name)
		}
		joined.Write(pcm)
	}

	c.files[output] = EncodeWAV(joined.Bytes(), int(format.SampleRate), int(format.Channels))
	return nil
}

func (c *WAVConcat) ReadFile(_ context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return nil, ErrEngineNotLoaded
	}
	data, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: no such file", name)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *WAVConcat) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = nil
	c.loaded = false
	return nil
}

// ParseManifest reads `file 'name'` lines. Blank lines and # comments are
// ignored.
func ParseManifest(data []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rest, ok := strings.CutPrefix(text, "file ")
		if !ok {
			return nil, fmt.Errorf("manifest line %d: unsupported directive %q", line, text)
		}
		rest = strings.TrimSpace(rest)
		if len(rest) >= 2 && rest[0] == '\'' && rest[len(rest)-1] == '\'' {
			rest = rest[1 : len(rest)-1]
		}
		if rest == "" {
			return nil, fmt.Errorf("manifest line %d: empty file name", line)
		}
		names = append(names, rest)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return names, nil
}
