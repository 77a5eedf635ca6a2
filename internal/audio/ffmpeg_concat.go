package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrEngineNotLoaded = errors.New("concat engine is not loaded")
	ErrInvalidFileName = errors.New("invalid workspace file name")
)

// FFMPEGConcat joins segment files with ffmpeg's concat demuxer and stream
// copy. Files are staged in a private temporary directory.
type FFMPEGConcat struct {
	command string
	baseDir string

	mu  sync.Mutex
	dir string
}

func NewFFMPEGConcat(command string) *FFMPEGConcat {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGConcat{command: command}
}

// Load verifies the ffmpeg binary runs and creates the working directory.
// Calling Load again after success is a no-op.
func (c *FFMPEGConcat) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dir != "" {
		return nil
	}

	path, err := exec.LookPath(c.command)
	if err != nil {
		return fmt.Errorf("locate %s: %w", c.command, err)
	}
	var stderr bytes.Buffer
	versionCmd := exec.CommandContext(ctx, path, "-hide_banner", "-version")
	versionCmd.Stderr = &stderr
	if err := versionCmd.Run(); err != nil {
		return fmt.Errorf("run %s -version: %w: %s", c.command, err, strings.TrimSpace(stderr.String()))
	}

	dir, err := os.MkdirTemp(c.baseDir, "sentrec-export-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return fmt.Errorf("create export workspace: %w", err)
	}
	c.command = path
	c.dir = dir
	return nil
}

func (c *FFMPEGConcat) WriteFile(_ context.Context, name string, data []byte) error {
	path, err := c.resolve(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Concat runs `ffmpeg -f concat -safe 0 -i manifest -c copy output` inside
// the working directory. Bitexact flags keep the output reproducible.
func (c *FFMPEGConcat) Concat(ctx context.Context, manifest string, output string) error {
	if _, err := c.resolve(manifest); err != nil {
		return err
	}
	if _, err := c.resolve(output); err != nil {
		return err
	}

	c.mu.Lock()
	dir, command := c.dir, c.command
	c.mu.Unlock()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-fflags", "+bitexact",
		output,
	}
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *FFMPEGConcat) ReadFile(_ context.Context, name string) ([]byte, error) {
	path, err := c.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Close removes the working directory. The engine can be loaded again.
func (c *FFMPEGConcat) Close() error {
	c.mu.Lock()
	dir := c.dir
	c.dir = ""
	c.mu.Unlock()
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func (c *FFMPEGConcat) resolve(name string) (string, error) {
	c.mu.Lock()
	dir := c.dir
	c.mu.Unlock()
	if dir == "" {
		return "", ErrEngineNotLoaded
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `'\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}
