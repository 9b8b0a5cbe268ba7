// Package storage keeps the original uploaded files next to their imported
// layers.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Blobs writes objects by key.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with _.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Key is {userID}/{projectID}/{unixMillis}_{sanitized filename}.
func Key(userID, projectID, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", userID, projectID, now.UnixMilli(), SanitizeFilename(filename))
}

// Local stores objects under a directory.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) Put(_ context.Context, key string, data []byte, _ string) error {
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
