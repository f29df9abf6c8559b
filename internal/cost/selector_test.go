package cost

import (
	"testing"

	routererrors "github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

func pruningOf(sizeBytes int64, files int) *types.PruningResult {
	return &types.PruningResult{
		TotalSizeBytes: sizeBytes,
		TotalFiles:     files,
	}
}

func TestSmallDataPrefersEmbedded(t *testing.T) {
	s := NewSelector(nil)
	// tiny scan: overhead dominates, remote's 1.5s dispatch loses
	best, all, err := s.Select(pruningOf(10<<20, 2), types.QueryFeatures{})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Backend == types.BackendRemote {
		t.Errorf("small query should stay local, chose %s", best.Backend)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 candidate estimates, got %d", len(all))
	}
}

func TestLargeDataPrefersRemote(t *testing.T) {
	s := NewSelector(nil)
	// 100 GB: throughput dominates overhead
	best, _, err := s.Select(pruningOf(100<<30, 200), types.QueryFeatures{})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Backend != types.BackendRemote {
		t.Errorf("large query should go remote, chose %s", best.Backend)
	}
}

func TestWindowFunctionExcludesSQLite(t *testing.T) {
	s := NewSelector(nil)
	features := types.QueryFeatures{WindowFunctions: true}
	_, all, err := s.Select(pruningOf(1<<30, 5), features)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	for _, est := range all {
		if est.Backend == types.BackendSQLite {
			t.Error("sqlite must be filtered out for window functions")
		}
	}
}

func TestNoCapableBackendIsUnsupported(t *testing.T) {
	profiles := []Profile{
		{
			Backend:      types.BackendSQLite,
			ScanGBPerSec: 1, ComputeBase: 1, MemoryAmplification: 1,
			Features: map[string]bool{types.FeatureWindowFunctions: false},
		},
	}
	s := NewSelector(profiles)
	_, _, err := s.Select(pruningOf(1<<30, 1), types.QueryFeatures{WindowFunctions: true})
	if err == nil {
		t.Fatal("expected unsupported query error")
	}
	if routererrors.GetCode(err) != routererrors.CodeUnsupportedQuery {
		t.Errorf("expected UNSUPPORTED_QUERY, got %v", err)
	}
}

func TestOverrideSkipsComparison(t *testing.T) {
	s := NewSelector(nil)
	est, err := s.SelectOverride(types.BackendSQLite, pruningOf(100<<30, 100), types.QueryFeatures{})
	if err != nil {
		t.Fatalf("SelectOverride() error = %v", err)
	}
	if est.Backend != types.BackendSQLite {
		t.Errorf("override must return the requested backend, got %s", est.Backend)
	}
}

func TestOverrideStillValidatesFeatures(t *testing.T) {
	s := NewSelector(nil)
	_, err := s.SelectOverride(types.BackendSQLite, pruningOf(1<<30, 1), types.QueryFeatures{WindowFunctions: true})
	if err == nil {
		t.Fatal("override onto an incapable backend must fail")
	}
	if routererrors.GetCode(err) != routererrors.CodeUnsupportedQuery {
		t.Errorf("expected UNSUPPORTED_QUERY, got %v", err)
	}
}

func TestTieBreaksOnOverheadThenPreference(t *testing.T) {
	profiles := []Profile{
		{Backend: types.BackendRemote, ScanGBPerSec: 1, ComputeBase: 0, OverheadSeconds: 0.5, Preference: 2, Features: map[string]bool{}},
		{Backend: types.BackendDuckDB, ScanGBPerSec: 1, ComputeBase: 0, OverheadSeconds: 0.1, Preference: 0, Features: map[string]bool{}},
	}
	// zero data volume: cost reduces to overhead alone
	best, _, err := NewSelector(profiles).Select(pruningOf(0, 0), types.QueryFeatures{})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Backend != types.BackendDuckDB {
		t.Errorf("lower overhead must win, got %s", best.Backend)
	}

	equal := []Profile{
		{Backend: types.BackendRemote, ScanGBPerSec: 1, OverheadSeconds: 0.5, Preference: 2, Features: map[string]bool{}},
		{Backend: types.BackendDuckDB, ScanGBPerSec: 1, OverheadSeconds: 0.5, Preference: 0, Features: map[string]bool{}},
	}
	best, _, err = NewSelector(equal).Select(pruningOf(0, 0), types.QueryFeatures{})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if best.Backend != types.BackendDuckDB {
		t.Errorf("preference must break full ties, got %s", best.Backend)
	}
}

func TestCostMonotonicInDataSize(t *testing.T) {
	for _, p := range DefaultProfiles() {
		small := Estimate(p, pruningOf(1<<30, 10), types.QueryFeatures{})
		large := Estimate(p, pruningOf(10<<30, 10), types.QueryFeatures{})
		if large.EstimatedTimeSec <= small.EstimatedTimeSec {
			t.Errorf("%s: cost must grow with data size (%.3f vs %.3f)",
				p.Backend, small.EstimatedTimeSec, large.EstimatedTimeSec)
		}
		if large.EstimatedMemoryGB < small.EstimatedMemoryGB {
			t.Errorf("%s: memory must grow with data size", p.Backend)
		}
	}
}

func TestFeatureMultiplierRaisesCompute(t *testing.T) {
	p := DefaultProfiles()[0]
	plain := Estimate(p, pruningOf(4<<30, 10), types.QueryFeatures{})
	heavy := Estimate(p, pruningOf(4<<30, 10), types.QueryFeatures{Aggregation: true, GroupBy: true, Joins: true})
	if heavy.ComputeCost <= plain.ComputeCost {
		t.Errorf("feature-heavy query must cost more compute: %.3f vs %.3f",
			heavy.ComputeCost, plain.ComputeCost)
	}
}
