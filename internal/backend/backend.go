// Package backend defines the execution backend contract and its three
// implementations: embedded DuckDB, embedded SQLite, and a remote HTTP
// execution service.
package backend

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/irouter/irouter/pkg/types"
)

// Result is the raw tabular output of one backend execution.
type Result struct {
	Columns []string
	Rows    [][]interface{}
}

// Backend executes a query against the data files selected by pruning.
// Implementations filter the file list down to the formats they can read;
// a query over zero readable files returns an empty result, not an error.
type Backend interface {
	Execute(ctx context.Context, sql string, pruning *types.PruningResult, table string) (*Result, error)
	Kind() types.BackendKind
	SupportsFeature(feature string) bool
	Close() error
}

// filterFiles keeps only the paths whose extension is in exts.
func filterFiles(paths []string, exts map[string]bool) []string {
	var out []string
	for _, p := range paths {
		if exts[strings.ToLower(filepath.Ext(p))] {
			out = append(out, p)
		}
	}
	return out
}
