package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrPlayerUnavailable is returned when the playback binary cannot be found.
var ErrPlayerUnavailable = errors.New("audio player unavailable")

// FFPlayPlayer plays audio blobs through a headless ffplay process fed on
// stdin. Each Play call owns its own process.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

// Play blocks until the audio ends or ctx is cancelled. Cancellation kills
// the process and returns ctx.Err().
func (p *FFPlayPlayer) Play(ctx context.Context, data []byte) error {
	if _, err := exec.LookPath(p.command); err != nil {
		return fmt.Errorf("%w: %v", ErrPlayerUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, p.command,
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		if detail := bytes.TrimSpace(stderr.Bytes()); len(detail) > 0 {
			return fmt.Errorf("ffplay: %w: %s", err, detail)
		}
		return fmt.Errorf("ffplay: %w", err)
	}
	return nil
}
