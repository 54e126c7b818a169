// Package storage abstracts where visitor photos live. The core stores the
// returned reference verbatim and never interprets it.
package storage

import (
	"context"
	"io"
)

// BlobStore persists an uploaded blob under a caller-chosen key and returns an
// opaque reference for later retrieval (a local path or an object URL).
type BlobStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}
