package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sentrec/internal/domain"
)

// FileSink writes every artifact to one fixed path, replacing what is there.
type FileSink struct {
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Save(ctx context.Context, artifact domain.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", s.path, err)
	}
	return s.path, nil
}
