// Package artifacts persists rendered page snapshots for offline diagnosis
// of extraction failures.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store writes page snapshots under a base directory, one file per captured
// page.
type Store struct {
	baseDir string
}

// New creates a snapshot store rooted at baseDir, creating it if needed and
// verifying it is writable up front.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Store{baseDir: baseDir}, nil
}

// SavePage writes one page's rendered HTML. The file lands under
// <base>/<site>/<keyword-slug>/ with the page number and a timestamp in the
// name, and the full path is returned.
func (s *Store) SavePage(siteKey, keyword string, page int, html string) (string, error) {
	name := fmt.Sprintf("page-%03d-%s.html", page, time.Now().UTC().Format("20060102T150405"))
	rel := filepath.Join(slugify(siteKey), slugify(keyword), name)
	fullPath := filepath.Join(s.baseDir, rel)

	// Reject any slug that escapes the base directory.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create snapshot directories: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(html), 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return fullPath, nil
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "unnamed"
	}
	return out
}
