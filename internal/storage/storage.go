// Package storage provides object storage access for remote table roots.
// The query path only ever reads, so the interface is download-only.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage abstracts read access to an object store. Implementations
// include S3 and the local filesystem for testing.
type ObjectStorage interface {
	// Download copies an object to a local file.
	// objectPath is the source path in object storage.
	// localPath is the destination path on the local filesystem.
	Download(ctx context.Context, objectPath, localPath string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
