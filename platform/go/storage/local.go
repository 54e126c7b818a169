package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes blobs under a base directory on the server's filesystem.
// References take the form "/<public prefix>/<key>" so the API can serve them
// as static files.
type LocalStore struct {
	baseDir      string
	publicPrefix string
}

// NewLocalStore constructs a LocalStore rooted at baseDir. publicPrefix is the
// URL path segment references are built from (e.g. "uploads").
func NewLocalStore(baseDir, publicPrefix string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	prefix := strings.Trim(publicPrefix, "/")
	if prefix == "" {
		prefix = "uploads"
	}
	return &LocalStore{baseDir: baseDir, publicPrefix: prefix}, nil
}

// Save writes the blob to disk and returns its public path.
func (s *LocalStore) Save(_ context.Context, key, _ string, r io.Reader) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	// Keys are generated server-side from UUIDs; reject anything that walks out
	// of the base dir anyway.
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}

	target := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	return "/" + s.publicPrefix + "/" + key, nil
}
