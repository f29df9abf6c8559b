package types

import "fmt"

// BackendKind identifies an execution backend.
type BackendKind string

const (
	BackendDuckDB BackendKind = "duckdb"
	BackendSQLite BackendKind = "sqlite"
	BackendRemote BackendKind = "remote"
)

// ParseBackendKind parses a backend name as given on the command line.
func ParseBackendKind(s string) (BackendKind, error) {
	switch BackendKind(s) {
	case BackendDuckDB, BackendSQLite, BackendRemote:
		return BackendKind(s), nil
	default:
		return "", fmt.Errorf("types: unknown backend %q", s)
	}
}

// Feature names a backend can be asked about via SupportsFeature.
const (
	FeatureWindowFunctions = "window_functions"
	FeatureCTE             = "cte"
	FeatureJoins           = "joins"
)

// QueryFeatures are the complexity signals the cost model consumes.
type QueryFeatures struct {
	Aggregation     bool
	GroupBy         bool
	WindowFunctions bool
	Joins           bool
	OrderBy         bool
	Limit           bool
	Distinct        bool
	CTE             bool
}

// Required returns the feature names a backend must support to be a
// candidate for this query.
func (f QueryFeatures) Required() []string {
	var req []string
	if f.WindowFunctions {
		req = append(req, FeatureWindowFunctions)
	}
	if f.CTE {
		req = append(req, FeatureCTE)
	}
	if f.Joins {
		req = append(req, FeatureJoins)
	}
	return req
}

// CostEstimate is one backend's estimated cost for a query. Estimates are
// never mutated after creation, only compared.
type CostEstimate struct {
	Backend           BackendKind `json:"backend"`
	EstimatedTimeSec  float64     `json:"estimated_time_sec"`
	EstimatedMemoryGB float64     `json:"estimated_memory_gb"`
	ScanCost          float64     `json:"scan_cost"`
	ComputeCost       float64     `json:"compute_cost"`
	OverheadCost      float64     `json:"overhead_cost"`
	Reasoning         string      `json:"reasoning"`
}
