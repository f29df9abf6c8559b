// Package cost implements the heuristic cost model and backend selection.
// Estimates are deliberately coarse: the goal is picking the right backend
// class for a query, not predicting wall-clock time.
package cost

import (
	"fmt"

	"github.com/irouter/irouter/pkg/types"
)

// Profile describes one backend's performance characteristics.
type Profile struct {
	Backend types.BackendKind

	// ScanGBPerSec is the sequential scan throughput.
	ScanGBPerSec float64
	// PerFileSeconds is the fixed cost of opening one data file.
	PerFileSeconds float64
	// ComputeBase scales per-GB compute time before feature multipliers.
	ComputeBase float64
	// OverheadSeconds is the fixed startup/dispatch cost per query.
	OverheadSeconds float64
	// MemoryAmplification estimates working-set size as a multiple of the
	// scanned data volume.
	MemoryAmplification float64

	// Preference breaks full ties; lower wins. Embedded engines sort
	// before the remote one so equal-cost queries stay local.
	Preference int

	// Features maps feature names to support.
	Features map[string]bool
}

// Supports reports whether the profile's backend supports a feature.
func (p Profile) Supports(feature string) bool {
	return p.Features[feature]
}

// DefaultProfiles returns the built-in profiles for the three backends.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Backend:             types.BackendDuckDB,
			ScanGBPerSec:        2.0,
			PerFileSeconds:      0.01,
			ComputeBase:         0.2,
			OverheadSeconds:     0.05,
			MemoryAmplification: 1.5,
			Preference:          0,
			Features: map[string]bool{
				types.FeatureWindowFunctions: true,
				types.FeatureCTE:             true,
				types.FeatureJoins:           true,
			},
		},
		{
			Backend:             types.BackendSQLite,
			ScanGBPerSec:        0.5,
			PerFileSeconds:      0.02,
			ComputeBase:         0.5,
			OverheadSeconds:     0.02,
			MemoryAmplification: 2.0,
			Preference:          1,
			Features: map[string]bool{
				types.FeatureWindowFunctions: false,
				types.FeatureCTE:             true,
				types.FeatureJoins:           true,
			},
		},
		{
			Backend:             types.BackendRemote,
			ScanGBPerSec:        10.0,
			PerFileSeconds:      0.005,
			ComputeBase:         0.1,
			OverheadSeconds:     1.5,
			MemoryAmplification: 0.1,
			Preference:          2,
			Features: map[string]bool{
				types.FeatureWindowFunctions: true,
				types.FeatureCTE:             true,
				types.FeatureJoins:           true,
			},
		},
	}
}

// Estimate computes the cost of running a query on one backend given the
// pruned data volume and the query's features.
func Estimate(p Profile, pruning *types.PruningResult, features types.QueryFeatures) types.CostEstimate {
	sizeGB := pruning.SizeGB()
	files := float64(pruning.TotalFiles)

	scan := sizeGB/p.ScanGBPerSec + files*p.PerFileSeconds
	compute := p.ComputeBase * sizeGB * featureMultiplier(features)
	total := scan + compute + p.OverheadSeconds

	return types.CostEstimate{
		Backend:           p.Backend,
		EstimatedTimeSec:  total,
		EstimatedMemoryGB: sizeGB * p.MemoryAmplification,
		ScanCost:          scan,
		ComputeCost:       compute,
		OverheadCost:      p.OverheadSeconds,
		Reasoning: fmt.Sprintf("%s: scan %.2f GB in %d files (%.3fs) + compute (%.3fs) + overhead (%.3fs)",
			p.Backend, sizeGB, pruning.TotalFiles, scan, compute, p.OverheadSeconds),
	}
}

// featureMultiplier scales compute cost by query complexity.
func featureMultiplier(f types.QueryFeatures) float64 {
	m := 1.0
	if f.Aggregation {
		m += 0.5
	}
	if f.GroupBy {
		m += 0.5
	}
	if f.WindowFunctions {
		m += 1.0
	}
	if f.Joins {
		m += 1.0
	}
	if f.OrderBy {
		m += 0.3
	}
	if f.Distinct {
		m += 0.2
	}
	if f.Limit {
		m *= 0.8
	}
	return m
}
