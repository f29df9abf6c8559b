// Package router wires the query pipeline together: parse, analyze, prune,
// select a backend, check the cache, execute, cache the result.
package router

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irouter/irouter/internal/backend"
	"github.com/irouter/irouter/internal/cache"
	"github.com/irouter/irouter/internal/cost"
	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/internal/metrics"
	"github.com/irouter/irouter/internal/observability"
	"github.com/irouter/irouter/internal/pruner"
	"github.com/irouter/irouter/internal/query/analyzer"
	"github.com/irouter/irouter/internal/query/parser"
	"github.com/irouter/irouter/internal/storage"
	"github.com/irouter/irouter/pkg/types"
)

// Options configures an Engine.
type Options struct {
	// DataDir is the local directory holding one subdirectory per table.
	DataDir string
	// Schema describes the known tables.
	Schema types.Schema
	// Backends are the enabled execution backends.
	Backends []backend.Backend
	// Profiles override the default cost profiles when non-nil.
	Profiles []cost.Profile
	// CacheCapacity and CacheTTL size the result cache.
	CacheCapacity int
	CacheTTL      time.Duration
	// Mirror, when set, syncs remote table data into DataDir before
	// pruning.
	Mirror *storage.Mirror
	// Notifier, when set, feeds table change events into cache
	// invalidation.
	Notifier *Notifier
	Logger   *zap.Logger
}

// ExecOptions adjust a single query.
type ExecOptions struct {
	// Backend forces a specific backend, bypassing cost comparison.
	Backend *types.BackendKind
	// NoCache skips both cache lookup and cache fill.
	NoCache bool
}

// Explanation is the routing plan for a query without executing it.
type Explanation struct {
	SQL         string               `json:"sql"`
	Table       string               `json:"table"`
	Predicates  []types.Predicate    `json:"predicates"`
	IsComplex   bool                 `json:"is_complex"`
	Features    types.QueryFeatures  `json:"features"`
	Pruning     *types.PruningResult `json:"pruning"`
	Chosen      types.CostEstimate   `json:"chosen"`
	Candidates  []types.CostEstimate `json:"candidates,omitempty"`
	Fingerprint string               `json:"fingerprint"`
}

// Engine routes queries end to end.
type Engine struct {
	dataDir  string
	schema   types.Schema
	analyzer *analyzer.Analyzer
	pruner   *pruner.Pruner
	selector *cost.Selector
	cache    *cache.ResultCache
	backends map[types.BackendKind]backend.Backend
	mirror   *storage.Mirror
	stats    *observability.QueryStats
	logger   *zap.Logger

	notifier *Notifier
	sub      *Subscriber
	done     chan struct{}
}

// NewEngine builds an engine from options and starts the invalidation
// listener when a notifier is configured.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backends := make(map[types.BackendKind]backend.Backend, len(opts.Backends))
	for _, b := range opts.Backends {
		backends[b.Kind()] = b
	}

	e := &Engine{
		dataDir:  opts.DataDir,
		schema:   opts.Schema,
		analyzer: analyzer.New(logger),
		pruner:   pruner.New(logger),
		selector: cost.NewSelector(opts.Profiles),
		cache:    cache.New(opts.CacheCapacity, opts.CacheTTL, logger),
		backends: backends,
		mirror:   opts.Mirror,
		stats:    observability.NewQueryStats(),
		logger:   logger,
		notifier: opts.Notifier,
		done:     make(chan struct{}),
	}

	if e.notifier != nil {
		e.sub = e.notifier.Subscribe("engine-"+uuid.NewString(), nil)
		go e.watchInvalidations()
	}
	return e
}

// Execute routes and runs a query.
func (e *Engine) Execute(ctx context.Context, sql string, opts ExecOptions) (*types.QueryResult, error) {
	result, err := e.execute(ctx, sql, opts)
	if err != nil {
		metrics.QueryErrors.WithLabelValues(errors.GetCode(err)).Inc()
		e.logger.Warn("query failed",
			zap.String("category", string(errors.GetCategory(err))),
			zap.String("code", errors.GetCode(err)),
			zap.Bool("retryable", errors.IsRetryable(err)),
			zap.Error(err))
	}
	return result, err
}

func (e *Engine) execute(ctx context.Context, sql string, opts ExecOptions) (*types.QueryResult, error) {
	start := time.Now()

	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	table := stmt.From.Name

	extraction, features := e.analyzer.Analyze(stmt, e.schema, table)

	root, err := e.tableRoot(ctx, table)
	if err != nil {
		return nil, err
	}
	pruning, err := e.pruner.Prune(ctx, root, extraction)
	if err != nil {
		return nil, err
	}

	estimate, err := e.selectBackend(pruning, features, opts.Backend)
	if err != nil {
		return nil, err
	}
	exec, ok := e.backends[estimate.Backend]
	if !ok {
		return nil, errors.NewUnsupportedQuery("backend " + string(estimate.Backend) + " is not enabled")
	}

	fingerprint := cache.Fingerprint(sql, estimate.Backend, e.schema)
	if !opts.NoCache {
		if cached, ok := e.cache.Get(fingerprint); ok {
			e.finish(extraction, cached, start)
			return cached, nil
		}
	}

	raw, err := exec.Execute(ctx, sql, pruning, table)
	if err != nil {
		return nil, err
	}

	result := &types.QueryResult{
		QueryID:           uuid.NewString(),
		Columns:           raw.Columns,
		Rows:              raw.Rows,
		Backend:           estimate.Backend,
		ExecutionTime:     time.Since(start),
		RowsProcessed:     rowsProcessed(pruning),
		PartitionsScanned: pruning.PartitionsScanned(),
		TotalPartitions:   pruning.TotalPartitions,
		BytesScanned:      pruning.TotalSizeBytes,
		Pruning:           pruning,
	}

	if !opts.NoCache {
		e.cache.Put(fingerprint, table, result)
		metrics.CacheSize.Set(float64(e.cache.Len()))
	}

	e.finish(extraction, result, start)
	return result, nil
}

// Explain produces the routing plan without executing the query.
func (e *Engine) Explain(ctx context.Context, sql string, opts ExecOptions) (*Explanation, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	table := stmt.From.Name

	extraction, features := e.analyzer.Analyze(stmt, e.schema, table)
	root, err := e.tableRoot(ctx, table)
	if err != nil {
		return nil, err
	}
	pruning, err := e.pruner.Prune(ctx, root, extraction)
	if err != nil {
		return nil, err
	}

	var chosen types.CostEstimate
	var candidates []types.CostEstimate
	if opts.Backend != nil {
		chosen, err = e.selector.SelectOverride(*opts.Backend, pruning, features)
	} else {
		chosen, candidates, err = e.selector.Select(pruning, features)
	}
	if err != nil {
		return nil, err
	}

	return &Explanation{
		SQL:         sql,
		Table:       table,
		Predicates:  extraction.Predicates,
		IsComplex:   extraction.IsComplex,
		Features:    features,
		Pruning:     pruning,
		Chosen:      chosen,
		Candidates:  candidates,
		Fingerprint: cache.Fingerprint(sql, chosen.Backend, e.schema),
	}, nil
}

// CacheStats returns the result cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// ClearCache drops every cached result and returns how many were removed.
func (e *Engine) ClearCache() int {
	n := e.cache.InvalidateAll()
	metrics.CacheSize.Set(0)
	return n
}

// InvalidateTable drops cached results for one table.
func (e *Engine) InvalidateTable(table string) int {
	n := e.cache.InvalidateTable(table)
	metrics.CacheSize.Set(float64(e.cache.Len()))
	return n
}

// Stats returns the accumulated routing statistics.
func (e *Engine) Stats() *observability.QueryStats {
	return e.stats
}

// BackendKinds returns the enabled backends in stable order.
func (e *Engine) BackendKinds() []types.BackendKind {
	kinds := make([]types.BackendKind, 0, len(e.backends))
	for k := range e.backends {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Close stops the invalidation listener and closes every backend.
func (e *Engine) Close() error {
	close(e.done)
	if e.notifier != nil && e.sub != nil {
		e.notifier.Unsubscribe(e.sub.ID)
	}
	var firstErr error
	for _, b := range e.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) selectBackend(pruning *types.PruningResult, features types.QueryFeatures, override *types.BackendKind) (types.CostEstimate, error) {
	if override != nil {
		return e.selector.SelectOverride(*override, pruning, features)
	}
	chosen, _, err := e.selector.Select(pruning, features)
	return chosen, err
}

func (e *Engine) tableRoot(ctx context.Context, table string) (string, error) {
	if e.mirror != nil {
		root, err := e.mirror.SyncTable(ctx, table)
		if err != nil {
			return "", errors.NewInternalError("table sync failed", err)
		}
		return root, nil
	}
	return filepath.Join(e.dataDir, table), nil
}

func (e *Engine) finish(extraction *types.ExtractionResult, result *types.QueryResult, start time.Time) {
	took := time.Since(start)
	e.stats.RecordQuery(extraction, result.Backend, result.FromCache)

	cacheLabel := "miss"
	if result.FromCache {
		cacheLabel = "hit"
	}
	metrics.QueriesTotal.WithLabelValues(string(result.Backend), cacheLabel).Inc()
	metrics.QueryDuration.WithLabelValues(string(result.Backend)).Observe(took.Seconds())
	if result.Pruning != nil {
		metrics.PartitionsScanned.Observe(float64(result.PartitionsScanned))
		metrics.PruningRatio.Observe(result.Pruning.PruningRatio())
	}

	e.logger.Info("query routed",
		zap.String("query_id", result.QueryID),
		zap.String("backend", string(result.Backend)),
		zap.Bool("from_cache", result.FromCache),
		zap.Int("partitions_scanned", result.PartitionsScanned),
		zap.Int("total_partitions", result.TotalPartitions),
		zap.Duration("took", took))
}

// watchInvalidations consumes table change notifications until Close.
func (e *Engine) watchInvalidations() {
	for {
		select {
		case <-e.done:
			return
		case notif, ok := <-e.sub.Ch:
			if !ok {
				return
			}
			switch notif.Type {
			case TableChanged:
				n := e.InvalidateTable(notif.Table)
				if e.mirror != nil {
					if err := e.mirror.Evict(notif.Table); err != nil {
						e.logger.Warn("mirror eviction failed",
							zap.String("table", notif.Table), zap.Error(err))
					}
				}
				e.logger.Info("invalidated cached results",
					zap.String("table", notif.Table), zap.Int("entries", n))
			case SchemaChanged:
				n := e.ClearCache()
				e.logger.Info("cleared result cache on schema change", zap.Int("entries", n))
			}
		}
	}
}

// rowsProcessed sums the sidecar row counts of the scanned partitions.
// Partitions without metadata contribute zero.
func rowsProcessed(pruning *types.PruningResult) int64 {
	var total int64
	for _, p := range pruning.PartitionsToScan {
		total += p.RowCount
	}
	return total
}
