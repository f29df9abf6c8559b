package pruner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

// discoverConcurrency bounds how many partition directories are scanned at
// once.
const discoverConcurrency = 8

// discover lists the Hive-style partitions under a table root. Immediate
// subdirectories named key=value become partitions; everything else is
// ignored. Partitions with no data files are dropped. A missing table root
// is the only hard failure.
func discover(ctx context.Context, tableRoot, table string) ([]types.PartitionInfo, error) {
	entries, err := os.ReadDir(tableRoot)
	if err != nil {
		return nil, errors.NewTableNotFound(table)
	}

	type slot struct {
		info types.PartitionInfo
		ok   bool
	}

	var candidates []os.DirEntry
	for _, e := range entries {
		if e.IsDir() && isPartitionDirName(e.Name()) {
			candidates = append(candidates, e)
		}
	}

	slots := make([]slot, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(discoverConcurrency)
	for i, e := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, ok := scanPartition(tableRoot, e.Name())
			slots[i] = slot{info: info, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// ReadDir sorts by name, so discovery order is deterministic.
	var partitions []types.PartitionInfo
	for _, s := range slots {
		if s.ok {
			partitions = append(partitions, s.info)
		}
	}
	return partitions, nil
}

func isPartitionDirName(name string) bool {
	idx := strings.Index(name, "=")
	return idx > 0 && idx < len(name)-1
}

// scanPartition stats the data files in one partition directory. Returns
// ok=false when the directory is unreadable or holds no data files.
func scanPartition(tableRoot, dirName string) (types.PartitionInfo, bool) {
	key, value, _ := strings.Cut(dirName, "=")
	dir := filepath.Join(tableRoot, dirName)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.PartitionInfo{}, false
	}

	info := types.PartitionInfo{
		Path:           dir,
		PartitionKey:   key,
		PartitionValue: value,
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !isDataFileName(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.SizeBytes += fi.Size()
		info.FileCount++
		info.DataFiles = append(info.DataFiles, filepath.Join(dir, e.Name()))
	}
	if info.FileCount == 0 {
		return types.PartitionInfo{}, false
	}

	info.RowCount, info.ColumnStats = loadSidecar(dir)
	return info, true
}

// isDataFileName excludes metadata and hidden files from the data set.
func isDataFileName(name string) bool {
	return !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, ".")
}
