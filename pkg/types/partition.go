package types

import (
	"fmt"
	"strings"
	"time"
)

// PartitionInfo describes a single discovered partition directory. It is an
// immutable snapshot of filesystem state at discovery time; a fresh prune
// always re-discovers.
type PartitionInfo struct {
	// Path is the partition directory (local path or object-storage prefix).
	Path string `json:"path"`

	// PartitionKey and PartitionValue come from the key=value directory name.
	// PartitionValue is the raw string; typing happens at evaluation time.
	PartitionKey   string `json:"partition_key"`
	PartitionValue string `json:"partition_value"`

	SizeBytes int64 `json:"size_bytes"`
	FileCount int   `json:"file_count"`

	// RowCount is populated from the metadata sidecar when present, else 0.
	RowCount int64 `json:"row_count,omitempty"`

	// DataFiles lists the data file paths inside the partition.
	DataFiles []string `json:"data_files,omitempty"`

	// ColumnStats holds per-column statistics from the sidecar, keyed by
	// column name. Empty when no sidecar exists.
	ColumnStats map[string]ColumnStatistics `json:"column_stats,omitempty"`
}

// SizeGB returns the partition size in gigabytes.
func (p PartitionInfo) SizeGB() float64 {
	return float64(p.SizeBytes) / (1 << 30)
}

// SizeMB returns the partition size in megabytes.
func (p PartitionInfo) SizeMB() float64 {
	return float64(p.SizeBytes) / (1 << 20)
}

// PruningResult is the outcome of one partition pruning pass.
type PruningResult struct {
	// PartitionsToScan is the selected subset, in discovery order.
	PartitionsToScan []PartitionInfo `json:"partitions_to_scan"`

	// TotalPartitions counts every discovered partition, selected or not,
	// so the ratio and speedup metrics stay meaningful.
	TotalPartitions int `json:"total_partitions"`

	// TotalSizeBytes and TotalFiles sum over the selected partitions only.
	TotalSizeBytes int64 `json:"total_size_bytes"`
	TotalFiles     int   `json:"total_files"`

	// PredicatesApplied lists the predicates actually consulted while
	// filtering (partition-key predicates plus stats-matched ones).
	PredicatesApplied []Predicate `json:"predicates_applied,omitempty"`

	// PruningTime is the wall-clock duration of the prune call. Diagnostic
	// only; it never feeds back into correctness.
	PruningTime time.Duration `json:"pruning_time"`
}

// PartitionsScanned returns the number of selected partitions.
func (r PruningResult) PartitionsScanned() int {
	return len(r.PartitionsToScan)
}

// PruningRatio returns the fraction of partitions eliminated, 0 when no
// partitions were discovered.
func (r PruningResult) PruningRatio() float64 {
	if r.TotalPartitions == 0 {
		return 0
	}
	return 1 - float64(r.PartitionsScanned())/float64(r.TotalPartitions)
}

// SpeedupEstimate returns total/scanned. When nothing is selected the
// estimate is 1.0: an empty scan is a degenerate case, not an infinite win.
func (r PruningResult) SpeedupEstimate() float64 {
	scanned := r.PartitionsScanned()
	if scanned == 0 {
		return 1.0
	}
	return float64(r.TotalPartitions) / float64(scanned)
}

// SizeGB returns the selected data volume in gigabytes.
func (r PruningResult) SizeGB() float64 {
	return float64(r.TotalSizeBytes) / (1 << 30)
}

// DataFilePaths returns every data file across the selected partitions, in
// partition order.
func (r PruningResult) DataFilePaths() []string {
	var files []string
	for _, p := range r.PartitionsToScan {
		files = append(files, p.DataFiles...)
	}
	return files
}

// Summary renders a human-readable pruning report for explain output.
func (r PruningResult) Summary() string {
	var sb strings.Builder
	sb.WriteString("Partition Pruning Results:\n")
	fmt.Fprintf(&sb, "  Partitions to scan: %d/%d\n", r.PartitionsScanned(), r.TotalPartitions)
	fmt.Fprintf(&sb, "  Data to scan: %.2f GB\n", r.SizeGB())
	fmt.Fprintf(&sb, "  Files to read: %d\n", r.TotalFiles)
	fmt.Fprintf(&sb, "  Data skipped: %.1f%%\n", r.PruningRatio()*100)
	fmt.Fprintf(&sb, "  Estimated speedup: %.1fx\n", r.SpeedupEstimate())
	fmt.Fprintf(&sb, "  Predicates applied: %d", len(r.PredicatesApplied))
	return sb.String()
}
