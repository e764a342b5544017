// Package sinks provides the progress sink implementations.
package sinks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwhitfield/jobhunter/internal/progress"
)

// FileSink overwrites a JSON snapshot file on every publish. Writes go
// through a temp file and rename so readers never observe a partial file.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path, creating parent directories as
// needed.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("progress file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create progress dir: %w", err)
		}
	}
	return &FileSink{path: path}, nil
}

// Publish atomically replaces the snapshot file.
func (f *FileSink) Publish(s progress.Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
