package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the document to a fixed path. The write is atomic: the
// body lands in a temp file in the same directory and is renamed over the
// destination, so a concurrent reader sees either the old document or the
// new one, never a partial write.
type FileSink struct {
	dir  string
	name string
}

// NewFileSink builds a FileSink writing to dir/name.
func NewFileSink(dir, name string) *FileSink {
	return &FileSink{dir: dir, name: name}
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file" }

// Path returns the destination path.
func (s *FileSink) Path() string { return filepath.Join(s.dir, s.name) }

// Publish implements Sink.
func (s *FileSink) Publish(_ context.Context, pub Publication) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, s.name+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(pub.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
