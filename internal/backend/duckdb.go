package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

var duckdbExtensions = map[string]bool{
	".parquet": true,
}

var duckdbFeatures = map[string]bool{
	types.FeatureWindowFunctions: true,
	types.FeatureCTE:             true,
	types.FeatureJoins:           true,
}

// DuckDBBackend executes queries in an embedded in-memory DuckDB by
// registering the pruned data files behind a view named after the table.
type DuckDBBackend struct {
	db *sql.DB
}

// NewDuckDB opens an in-memory DuckDB instance.
func NewDuckDB() (*DuckDBBackend, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendDuckDB), err)
	}
	return &DuckDBBackend{db: db}, nil
}

func (b *DuckDBBackend) Kind() types.BackendKind { return types.BackendDuckDB }

func (b *DuckDBBackend) SupportsFeature(feature string) bool {
	return duckdbFeatures[feature]
}

// Execute registers the readable data files as a temp view and runs the
// query against it. No readable files means an empty result. The view is
// session-scoped, so view creation and query are pinned to one connection;
// concurrent calls each get their own session and their own view.
func (b *DuckDBBackend) Execute(ctx context.Context, query string, pruning *types.PruningResult, table string) (*Result, error) {
	files := filterFiles(pruning.DataFilePaths(), duckdbExtensions)
	if len(files) == 0 {
		return &Result{}, nil
	}

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendDuckDB), err)
	}
	defer conn.Close()

	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", "''") + "'"
	}
	viewSQL := fmt.Sprintf(
		"CREATE OR REPLACE TEMP VIEW %s AS SELECT * FROM read_parquet([%s])",
		quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := conn.ExecContext(ctx, viewSQL); err != nil {
		return nil, errors.NewBackendError(string(types.BackendDuckDB), err)
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendDuckDB), err)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendDuckDB), err)
	}
	return result, nil
}

func (b *DuckDBBackend) Close() error {
	return b.db.Close()
}

// quoteIdent double-quotes an identifier for DuckDB/SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
