package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// mirrorConcurrency bounds concurrent object downloads during a sync.
const mirrorConcurrency = 4

// Mirror syncs a remote table prefix into a local directory so the pruner
// and embedded backends can work against local files.
type Mirror struct {
	store    ObjectStorage
	cacheDir string
}

// NewMirror creates a mirror that downloads into cacheDir.
func NewMirror(store ObjectStorage, cacheDir string) *Mirror {
	return &Mirror{store: store, cacheDir: cacheDir}
}

// SyncTable downloads every object under the table prefix that is not
// already present locally and returns the local table root. Objects already
// on disk are kept as-is; table invalidation clears the directory instead.
func (m *Mirror) SyncTable(ctx context.Context, tablePrefix string) (string, error) {
	objects, err := m.store.ListObjects(ctx, tablePrefix)
	if err != nil {
		return "", err
	}

	localRoot := filepath.Join(m.cacheDir, filepath.FromSlash(tablePrefix))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(mirrorConcurrency)
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj, tablePrefix)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}
		localPath := filepath.Join(localRoot, filepath.FromSlash(rel))
		g.Go(func() error {
			if _, err := os.Stat(localPath); err == nil {
				return nil
			}
			return m.store.Download(ctx, obj, localPath)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return localRoot, nil
}

// Evict removes the local copy of a table, forcing the next sync to
// re-download.
func (m *Mirror) Evict(tablePrefix string) error {
	return os.RemoveAll(filepath.Join(m.cacheDir, filepath.FromSlash(tablePrefix)))
}
