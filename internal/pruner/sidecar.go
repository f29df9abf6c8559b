package pruner

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/irouter/irouter/pkg/types"
)

// SidecarName is the optional per-partition metadata file. When present it
// supplies row counts and per-column statistics for stats-based pruning.
const SidecarName = "_metadata.json"

type sidecarFile struct {
	RowCount int64                    `json:"row_count"`
	Columns  map[string]sidecarColumn `json:"columns"`
}

type sidecarColumn struct {
	Min           interface{} `json:"min"`
	Max           interface{} `json:"max"`
	NullCount     int64       `json:"null_count"`
	DistinctCount *int64      `json:"distinct_count,omitempty"`
}

// loadSidecar reads the metadata sidecar for a partition directory. A
// missing file is not an error; a corrupt one is ignored the same way, since
// statistics only ever narrow the scan.
func loadSidecar(dir string) (int64, map[string]types.ColumnStatistics) {
	data, err := os.ReadFile(filepath.Join(dir, SidecarName))
	if err != nil {
		return 0, nil
	}
	var sc sidecarFile
	if err := json.Unmarshal(data, &sc); err != nil {
		return 0, nil
	}
	if len(sc.Columns) == 0 {
		return sc.RowCount, nil
	}
	stats := make(map[string]types.ColumnStatistics, len(sc.Columns))
	for name, col := range sc.Columns {
		stats[name] = types.ColumnStatistics{
			ColumnName:    name,
			MinValue:      col.Min,
			MaxValue:      col.Max,
			NullCount:     col.NullCount,
			DistinctCount: col.DistinctCount,
		}
	}
	return sc.RowCount, stats
}
