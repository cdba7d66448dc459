package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes an artifact to the local filesystem.
//
// Writes go to a temporary file in the target directory that is renamed
// into place, so readers never see a partial artifact.
type FileSink struct {
	path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// String returns the target path.
func (s *FileSink) String() string {
	return s.path
}

// Put writes data to the target path atomically, creating parent
// directories as needed.
func (s *FileSink) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "write", Dest: s.path, Err: fmt.Errorf("create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return &Error{Op: "write", Dest: s.path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &Error{Op: "write", Dest: s.path, Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: "write", Dest: s.path, Err: fmt.Errorf("close temp file: %w", err)}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &Error{Op: "write", Dest: s.path, Err: fmt.Errorf("chmod temp file: %w", err)}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return &Error{Op: "write", Dest: s.path, Err: fmt.Errorf("rename temp file: %w", err)}
	}
	return nil
}

var _ Sink = (*FileSink)(nil)
