// Package storage abstracts the object stores that hold product photo
// assets.
//
// Two drivers are available out of the box:
//   - "local" — local filesystem (default; dev and tests)
//   - "s3"    — S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// Unlike a global singleton, the Manager is constructed explicitly at boot
// and injected into whatever needs a disk:
//
//	mgr, err := storage.New(storage.Config{...})
//	disk := mgr.Default()
//	disk.Put(ctx, "products/abc.jpg", data, "image/jpeg")
package storage

import (
	"context"
	"io"
)

// Disk is the object-store driver interface.
type Disk interface {
	// Put writes content to path with the given content type, creating any
	// parent prefixes as needed.
	Put(ctx context.Context, path string, content []byte, contentType string) error

	// Get returns the full content of the object at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// GetStream returns a ReadCloser for the object. Caller must close it.
	GetStream(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) bool

	// Size returns the byte size of the object.
	Size(ctx context.Context, path string) (int64, error)

	// Delete removes an object. Deleting an absent object is not an error.
	Delete(ctx context.Context, path string) error

	// URL returns the public URL for path.
	URL(path string) string
}
