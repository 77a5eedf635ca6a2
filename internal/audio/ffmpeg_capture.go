package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"sentrec/internal/ports"
)

// ErrDeviceDenied is returned when ffmpeg runs but cannot open the input.
var ErrDeviceDenied = ports.ErrDeviceDenied

const (
	defaultStartupWait = 250 * time.Millisecond
	stopGrace          = 1200 * time.Millisecond
)

// FFMPEGCapture records the microphone by running ffmpeg with raw s16le
// output on stdout. One process backs one AudioSession.
type FFMPEGCapture struct {
	command     string
	startupWait time.Duration
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, startupWait: defaultStartupWait}
}

// Start launches ffmpeg and waits startupWait for it to fail. A process
// that exits in that window could not open the device and is reported as
// ErrDeviceDenied; failing to launch at all is returned as is.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withDefaults(cfg)

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", c.command, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	select {
	case err := <-exited:
		return nil, deviceError(err, stderr.String())
	case <-time.After(c.startupWait):
	}

	return &ffmpegSession{stdout: stdout, stderr: stderr, process: cmd.Process, exited: exited}, nil
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// deviceError describes an ffmpeg that quit before delivering audio.
func deviceError(exitErr error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	switch {
	case exitErr != nil && detail != "":
		return fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s", ErrDeviceDenied, exitErr, detail)
	case exitErr != nil:
		return fmt.Errorf("%w: ffmpeg exited before capture started: %v", ErrDeviceDenied, exitErr)
	default:
		return fmt.Errorf("%w: ffmpeg exited before capture started", ErrDeviceDenied)
	}
}

func withDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

type ffmpegSession struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	exited  <-chan error

	once sync.Once
	err  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop sends SIGINT so ffmpeg flushes and lets go of the device, and kills
// it after stopGrace. A non-zero exit status is expected here and ignored.
func (s *ffmpegSession) Stop() error {
	s.once.Do(func() {
		_ = s.process.Signal(os.Interrupt)
		timer := time.NewTimer(stopGrace)
		defer timer.Stop()

		var waitErr error
		select {
		case waitErr = <-s.exited:
		case <-timer.C:
			_ = s.process.Kill()
			waitErr = <-s.exited
		}

		s.err = ignoreExitStatus(waitErr)
		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.err == nil {
			s.err = err
		}
		if s.err != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				s.err = fmt.Errorf("%w: %s", s.err, detail)
			}
		}
	})
	return s.err
}

func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
