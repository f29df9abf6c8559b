package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

// sqliteAttachLimit bounds how many partition databases one query may
// attach. SQLite's hard limit is higher, but the cost model should have
// steered a wider scan elsewhere long before this point.
const sqliteAttachLimit = 10

var sqliteExtensions = map[string]bool{
	".db":      true,
	".sqlite":  true,
	".sqlite3": true,
}

var sqliteFeatures = map[string]bool{
	types.FeatureWindowFunctions: false,
	types.FeatureCTE:             true,
	types.FeatureJoins:           true,
}

// SQLiteBackend executes queries by attaching partition database files to
// an in-memory connection and unioning them behind a temp view. Attachments
// and the view share the single connection, so Execute calls are serialized.
type SQLiteBackend struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens an in-memory SQLite instance.
func NewSQLite() (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendSQLite), err)
	}
	// attaching per query means the view and attachments must share one
	// connection
	db.SetMaxOpenConns(1)
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Kind() types.BackendKind { return types.BackendSQLite }

func (b *SQLiteBackend) SupportsFeature(feature string) bool {
	return sqliteFeatures[feature]
}

// Execute attaches each readable partition database, builds a UNION ALL
// view named after the table, runs the query, and detaches again.
func (b *SQLiteBackend) Execute(ctx context.Context, query string, pruning *types.PruningResult, table string) (*Result, error) {
	files := filterFiles(pruning.DataFilePaths(), sqliteExtensions)
	if len(files) == 0 {
		return &Result{}, nil
	}
	if len(files) > sqliteAttachLimit {
		return nil, errors.NewBackendError(string(types.BackendSQLite),
			fmt.Errorf("query spans %d database files, attach limit is %d", len(files), sqliteAttachLimit))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// cleanup must run even when the request context is canceled, or the
	// attachments would leak into the next query
	cleanup := context.Background()

	attached := make([]string, 0, len(files))
	defer func() {
		for _, alias := range attached {
			_, _ = b.db.ExecContext(cleanup, "DETACH DATABASE "+alias)
		}
	}()

	selects := make([]string, 0, len(files))
	for i, f := range files {
		alias := fmt.Sprintf("p%d", i)
		attachSQL := fmt.Sprintf("ATTACH DATABASE '%s' AS %s",
			strings.ReplaceAll(f, "'", "''"), alias)
		if _, err := b.db.ExecContext(ctx, attachSQL); err != nil {
			return nil, errors.NewBackendError(string(types.BackendSQLite), err)
		}
		attached = append(attached, alias)
		selects = append(selects, fmt.Sprintf("SELECT * FROM %s.%s", alias, quoteIdent(table)))
	}

	if _, err := b.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+quoteIdent(table)); err != nil {
		return nil, errors.NewBackendError(string(types.BackendSQLite), err)
	}
	viewSQL := fmt.Sprintf("CREATE TEMP VIEW %s AS %s",
		quoteIdent(table), strings.Join(selects, " UNION ALL "))
	if _, err := b.db.ExecContext(ctx, viewSQL); err != nil {
		return nil, errors.NewBackendError(string(types.BackendSQLite), err)
	}
	defer func() {
		_, _ = b.db.ExecContext(cleanup, "DROP VIEW IF EXISTS "+quoteIdent(table))
	}()

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendSQLite), err)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, errors.NewBackendError(string(types.BackendSQLite), err)
	}
	return result, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
