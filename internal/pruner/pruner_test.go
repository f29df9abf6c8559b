package pruner

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	routererrors "github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

// writePartition creates tableRoot/key=value with the given data files.
func writePartition(t *testing.T, tableRoot, dirName string, files map[string][]byte) string {
	t.Helper()
	dir := filepath.Join(tableRoot, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeSidecar(t *testing.T, dir string, sc sidecarFile) {
	t.Helper()
	data, err := json.Marshal(sc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, SidecarName), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPruneByYear(t *testing.T) {
	root := t.TempDir()
	for year := 2018; year <= 2024; year++ {
		writePartition(t, root, "year="+strconv.Itoa(year), map[string][]byte{
			"part-0.parquet": make([]byte, 1024),
		})
	}

	extraction := &types.ExtractionResult{
		TableName: "sales",
		Predicates: []types.Predicate{
			{Column: "year", Operator: types.OpGTE, Value: int64(2022), DeclaredType: "INT"},
		},
	}
	res, err := New(nil).Prune(context.Background(), root, extraction)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.TotalPartitions != 7 {
		t.Errorf("TotalPartitions = %d, want 7", res.TotalPartitions)
	}
	if res.PartitionsScanned() != 3 {
		t.Fatalf("PartitionsScanned = %d, want 3", res.PartitionsScanned())
	}
	if got := res.SpeedupEstimate(); math.Abs(got-7.0/3.0) > 1e-9 {
		t.Errorf("SpeedupEstimate = %v, want %v", got, 7.0/3.0)
	}
	if res.TotalSizeBytes != 3*1024 || res.TotalFiles != 3 {
		t.Errorf("totals must cover selected only: size=%d files=%d", res.TotalSizeBytes, res.TotalFiles)
	}
	if len(res.PredicatesApplied) != 1 {
		t.Errorf("PredicatesApplied = %d, want 1", len(res.PredicatesApplied))
	}
	for _, p := range res.PartitionsToScan {
		if p.PartitionValue < "2022" {
			t.Errorf("partition %s should have been pruned", p.Path)
		}
	}
}

func TestComplexExtractionScansAll(t *testing.T) {
	root := t.TempDir()
	for _, region := range []string{"east", "west", "north"} {
		writePartition(t, root, "region="+region, map[string][]byte{
			"data.parquet": {1, 2, 3},
		})
	}

	extraction := &types.ExtractionResult{TableName: "sales", IsComplex: true}
	res, err := New(nil).Prune(context.Background(), root, extraction)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.PartitionsScanned() != 3 || res.TotalPartitions != 3 {
		t.Errorf("complex query must scan all: %d/%d", res.PartitionsScanned(), res.TotalPartitions)
	}
	if len(res.PredicatesApplied) != 0 {
		t.Errorf("no predicates should apply, got %d", len(res.PredicatesApplied))
	}
}

func TestTableNotFound(t *testing.T) {
	_, err := New(nil).Prune(context.Background(), "/nonexistent/table/root",
		&types.ExtractionResult{TableName: "ghost"})
	if err == nil {
		t.Fatal("expected error for missing table root")
	}
	if routererrors.GetCode(err) != routererrors.CodeTableNotFound {
		t.Errorf("expected TABLE_NOT_FOUND, got %v", err)
	}
}

func TestHiddenAndMetadataFilesIgnored(t *testing.T) {
	root := t.TempDir()
	writePartition(t, root, "year=2024", map[string][]byte{
		"part-0.parquet": {1, 2, 3, 4},
		"_SUCCESS":       {},
		".hidden":        {9, 9},
	})

	res, err := New(nil).Prune(context.Background(), root, &types.ExtractionResult{TableName: "t"})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	p := res.PartitionsToScan[0]
	if p.FileCount != 1 || p.SizeBytes != 4 {
		t.Errorf("hidden files must be excluded: files=%d size=%d", p.FileCount, p.SizeBytes)
	}
}

func TestEmptyPartitionSkipped(t *testing.T) {
	root := t.TempDir()
	writePartition(t, root, "year=2023", map[string][]byte{"data.parquet": {1}})
	writePartition(t, root, "year=2024", map[string][]byte{"_SUCCESS": {}})
	if err := os.MkdirAll(filepath.Join(root, "not_a_partition"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := New(nil).Prune(context.Background(), root, &types.ExtractionResult{TableName: "t"})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.TotalPartitions != 1 {
		t.Errorf("TotalPartitions = %d, want 1", res.TotalPartitions)
	}
}

func TestStatsPruning(t *testing.T) {
	root := t.TempDir()
	lo := writePartition(t, root, "year=2024", map[string][]byte{"a.parquet": {1}})
	writeSidecar(t, lo, sidecarFile{
		RowCount: 100,
		Columns: map[string]sidecarColumn{
			"amount": {Min: float64(0), Max: float64(50)},
		},
	})
	hi := writePartition(t, root, "year=2023", map[string][]byte{"b.parquet": {1}})
	writeSidecar(t, hi, sidecarFile{
		RowCount: 200,
		Columns: map[string]sidecarColumn{
			"amount": {Min: float64(60), Max: float64(900)},
		},
	})

	extraction := &types.ExtractionResult{
		TableName: "sales",
		Predicates: []types.Predicate{
			{Column: "amount", Operator: types.OpGT, Value: float64(55), DeclaredType: "DOUBLE"},
		},
	}
	res, err := New(nil).Prune(context.Background(), root, extraction)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.PartitionsScanned() != 1 {
		t.Fatalf("expected 1 partition after stats pruning, got %d", res.PartitionsScanned())
	}
	if res.PartitionsToScan[0].PartitionValue != "2023" {
		t.Errorf("wrong partition survived: %+v", res.PartitionsToScan[0])
	}
	if res.PartitionsToScan[0].RowCount != 200 {
		t.Errorf("RowCount = %d, want 200", res.PartitionsToScan[0].RowCount)
	}
}

func TestUncomparableValueKeepsPartition(t *testing.T) {
	root := t.TempDir()
	writePartition(t, root, "year=not-a-number", map[string][]byte{"a.parquet": {1}})

	extraction := &types.ExtractionResult{
		TableName: "sales",
		Predicates: []types.Predicate{
			{Column: "year", Operator: types.OpGTE, Value: int64(2022), DeclaredType: "INT"},
		},
	}
	res, err := New(nil).Prune(context.Background(), root, extraction)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.PartitionsScanned() != 1 {
		t.Error("uncomparable partition value must be kept, not pruned")
	}
}

func TestCorruptSidecarIgnored(t *testing.T) {
	root := t.TempDir()
	dir := writePartition(t, root, "year=2024", map[string][]byte{"a.parquet": {1}})
	if err := os.WriteFile(filepath.Join(dir, SidecarName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := New(nil).Prune(context.Background(), root, &types.ExtractionResult{TableName: "t"})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.PartitionsScanned() != 1 {
		t.Error("corrupt sidecar must not drop the partition")
	}
	if len(res.PartitionsToScan[0].ColumnStats) != 0 {
		t.Error("corrupt sidecar must yield no stats")
	}
}
