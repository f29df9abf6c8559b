package types

import "time"

// Schema maps table name → column name → declared SQL type. It is supplied by
// the caller and flows into column qualification and predicate typing.
type Schema map[string]map[string]string

// QueryResult is the caller-facing result contract: the tabular data plus
// full provenance for explain and diagnostics.
type QueryResult struct {
	QueryID string `json:"query_id"`

	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`

	Backend           BackendKind   `json:"backend"`
	ExecutionTime     time.Duration `json:"execution_time"`
	RowsProcessed     int64         `json:"rows_processed"`
	PartitionsScanned int           `json:"partitions_scanned"`
	TotalPartitions   int           `json:"total_partitions"`
	BytesScanned      int64         `json:"bytes_scanned"`
	FromCache         bool          `json:"from_cache"`

	// Pruning carries the full pruning result when pruning ran.
	Pruning *PruningResult `json:"pruning,omitempty"`
}
