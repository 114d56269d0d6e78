package ports

import (
	"context"
	"io"
)

// BlobStore holds uploaded file bytes. The grant subsystem never opens
// blobs itself; it only releases a resource handle for the caller to
// pass here.
type BlobStore interface {
	// Save writes the blob under name and returns the number of bytes
	// written.
	Save(ctx context.Context, name string, r io.Reader) (int64, error)

	// Open returns a reader over the blob's bytes. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes the blob.
	Remove(ctx context.Context, name string) error
}
