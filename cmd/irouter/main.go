// Command irouter routes SQL queries over partitioned data files, picking
// an execution backend by estimated cost and caching results.
//
// Usage:
//
//	irouter execute [-config file] [-backend name] [-no-cache] [-limit n] [-output table|json|csv] <sql>
//	irouter execute [-f query.sql] ...
//	irouter explain [-config file] [-backend name] <sql>
//	irouter cache-stats [-config file]
//	irouter cache-clear [-config file]
//	irouter bench [-config file] [-n runs] <sql>
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/irouter/irouter/internal/backend"
	"github.com/irouter/irouter/internal/config"
	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/internal/metrics"
	"github.com/irouter/irouter/internal/observability"
	"github.com/irouter/irouter/internal/router"
	"github.com/irouter/irouter/internal/storage"
	"github.com/irouter/irouter/pkg/types"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "execute":
		err = cmdExecute(os.Args[2:])
	case "explain":
		err = cmdExplain(os.Args[2:])
	case "cache-stats":
		err = cmdCacheStats(os.Args[2:])
	case "cache-clear":
		err = cmdCacheClear(os.Args[2:])
	case "bench":
		err = cmdBench(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		if errors.IsRetryable(err) {
			fmt.Fprintln(os.Stderr, "transient backend failure; re-running may succeed")
		}
		log.Fatalf("irouter %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  irouter execute [flags] <sql>     run a query
  irouter explain [flags] <sql>     show the routing plan without executing
  irouter cache-stats [flags]       print result cache counters
  irouter cache-clear [flags]       drop all cached results
  irouter bench [flags] <sql>       run a query on every backend and compare

Common flags:
  -config file    config file (YAML or JSON)
  -data dir       override data directory
  -schema file    JSON schema file, merged over the config schema
  -backend name   force a backend: duckdb, sqlite, remote
  -no-cache       bypass the result cache
  -limit n        print at most n result rows
  -output fmt     table, json, or csv (default table)`)
}

// commonFlags holds the flags shared by every subcommand.
type commonFlags struct {
	configPath string
	dataDir    string
	schemaPath string
	backend    string
	noCache    bool
	output     string
	queryFile  string
	limit      int
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	var cf commonFlags
	fs.StringVar(&cf.configPath, "config", "", "config file (YAML or JSON)")
	fs.StringVar(&cf.dataDir, "data", "", "override data directory")
	fs.StringVar(&cf.schemaPath, "schema", "", "JSON schema file, merged over the config schema")
	fs.StringVar(&cf.backend, "backend", "", "force a backend: duckdb, sqlite, remote")
	fs.BoolVar(&cf.noCache, "no-cache", false, "bypass the result cache")
	fs.StringVar(&cf.output, "output", "table", "output format: table, json, csv")
	fs.StringVar(&cf.queryFile, "f", "", "read the query from a file")
	fs.IntVar(&cf.limit, "limit", 0, "print at most n result rows (0 = all)")
	return &cf
}

func loadSchemaFile(path string) (types.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read schema file: %w", err)
	}
	var schema types.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("cannot parse schema file %s: %w", path, err)
	}
	return schema, nil
}

func (cf *commonFlags) query(fs *flag.FlagSet) (string, error) {
	if cf.queryFile != "" {
		data, err := os.ReadFile(cf.queryFile)
		if err != nil {
			return "", fmt.Errorf("cannot read query file: %w", err)
		}
		return string(data), nil
	}
	if fs.NArg() < 1 {
		return "", fmt.Errorf("missing SQL argument")
	}
	return strings.Join(fs.Args(), " "), nil
}

func (cf *commonFlags) execOptions() (router.ExecOptions, error) {
	opts := router.ExecOptions{NoCache: cf.noCache}
	if cf.backend != "" {
		kind, err := types.ParseBackendKind(cf.backend)
		if err != nil {
			return opts, err
		}
		opts.Backend = &kind
	}
	return opts, nil
}

// setup loads config and builds the engine with its backends.
func setup(cf *commonFlags) (*router.Engine, *zap.Logger, error) {
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return nil, nil, err
	}
	if cf.dataDir != "" {
		cfg.DataDir = cf.dataDir
	}
	if cf.schemaPath != "" {
		extra, err := loadSchemaFile(cf.schemaPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Schema == nil {
			cfg.Schema = types.Schema{}
		}
		for table, cols := range extra {
			cfg.Schema[table] = cols
		}
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}

	var backends []backend.Backend
	if cfg.Backends.DuckDB.Enabled {
		b, err := backend.NewDuckDB()
		if err != nil {
			return nil, nil, err
		}
		backends = append(backends, b)
	}
	if cfg.Backends.SQLite.Enabled {
		b, err := backend.NewSQLite()
		if err != nil {
			return nil, nil, err
		}
		backends = append(backends, b)
	}
	if cfg.Backends.Remote.Enabled {
		backends = append(backends, backend.NewRemote(cfg.Backends.Remote.Endpoint, cfg.Backends.Remote.Timeout))
	}

	var mirror *storage.Mirror
	if cfg.Storage.Mode == "s3" {
		store, err := storage.NewS3Storage(context.Background(), cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		mirror = storage.NewMirror(store, cfg.Storage.CacheDir)
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	engine := router.NewEngine(router.Options{
		DataDir:       cfg.DataDir,
		Schema:        cfg.Schema,
		Backends:      backends,
		CacheCapacity: cfg.EffectiveCacheCapacity(),
		CacheTTL:      cfg.Cache.TTL,
		Mirror:        mirror,
		Logger:        logger,
	})
	return engine, logger, nil
}

func cmdExecute(args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	cf := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sql, err := cf.query(fs)
	if err != nil {
		return err
	}
	opts, err := cf.execOptions()
	if err != nil {
		return err
	}

	engine, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer logger.Sync()

	result, err := engine.Execute(context.Background(), sql, opts)
	if err != nil {
		return err
	}
	total := len(result.Rows)
	if cf.limit > 0 && total > cf.limit {
		result.Rows = result.Rows[:cf.limit]
	}
	if err := printResult(result, cf.output); err != nil {
		return err
	}
	shown := ""
	if len(result.Rows) < total {
		shown = fmt.Sprintf(" (showing %d)", len(result.Rows))
	}
	fmt.Fprintf(os.Stderr, "\n%d rows%s, backend=%s, partitions=%d/%d, cached=%v, took=%s\n",
		total, shown, result.Backend, result.PartitionsScanned,
		result.TotalPartitions, result.FromCache, result.ExecutionTime.Round(time.Millisecond))
	return nil
}

func cmdExplain(args []string) error {
	fs := flag.NewFlagSet("explain", flag.ExitOnError)
	cf := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sql, err := cf.query(fs)
	if err != nil {
		return err
	}
	opts, err := cf.execOptions()
	if err != nil {
		return err
	}

	engine, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer logger.Sync()

	exp, err := engine.Explain(context.Background(), sql, opts)
	if err != nil {
		return err
	}
	if cf.output == "json" {
		return printJSON(exp)
	}

	fmt.Printf("Table: %s\n", exp.Table)
	if exp.IsComplex {
		fmt.Println("Predicates: none (complex WHERE clause, scanning all partitions)")
	} else {
		fmt.Printf("Predicates: %d\n", len(exp.Predicates))
		for _, p := range exp.Predicates {
			fmt.Printf("  %s\n", p.String())
		}
	}
	fmt.Println(exp.Pruning.Summary())
	for _, p := range exp.Pruning.PartitionsToScan {
		fmt.Printf("  scan %s=%s (%.1f MB, %d files)\n",
			p.PartitionKey, p.PartitionValue, p.SizeMB(), p.FileCount)
	}
	fmt.Printf("Backend: %s (est. %.3fs)\n", exp.Chosen.Backend, exp.Chosen.EstimatedTimeSec)
	fmt.Printf("  %s\n", exp.Chosen.Reasoning)
	for _, c := range exp.Candidates {
		if c.Backend == exp.Chosen.Backend {
			continue
		}
		fmt.Printf("  rejected %s: est. %.3fs\n", c.Backend, c.EstimatedTimeSec)
	}
	fmt.Printf("Fingerprint: %s\n", exp.Fingerprint)
	return nil
}

func cmdCacheStats(args []string) error {
	fs := flag.NewFlagSet("cache-stats", flag.ExitOnError)
	cf := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	engine, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer logger.Sync()

	stats := engine.CacheStats()
	if cf.output == "json" {
		return printJSON(stats)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "requests\t%d\n", stats.Requests)
	fmt.Fprintf(w, "hits\t%d\n", stats.Hits)
	fmt.Fprintf(w, "misses\t%d\n", stats.Misses)
	fmt.Fprintf(w, "hit rate\t%.1f%%\n", stats.HitRate*100)
	fmt.Fprintf(w, "evictions\t%d\n", stats.Evictions)
	fmt.Fprintf(w, "expirations\t%d\n", stats.Expirations)
	fmt.Fprintf(w, "invalidations\t%d\n", stats.Invalidations)
	fmt.Fprintf(w, "size\t%d/%d\n", stats.Size, stats.MaxSize)
	return w.Flush()
}

func cmdCacheClear(args []string) error {
	fs := flag.NewFlagSet("cache-clear", flag.ExitOnError)
	cf := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	engine, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer logger.Sync()

	n := engine.ClearCache()
	fmt.Printf("dropped %d cached results\n", n)
	return nil
}

// cmdBench runs one query on every enabled backend, bypassing the cache,
// and reports each backend's average time relative to the fastest.
func cmdBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	cf := registerCommon(fs)
	runs := fs.Int("n", 3, "runs per backend")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sql, err := cf.query(fs)
	if err != nil {
		return err
	}

	engine, logger, err := setup(cf)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer logger.Sync()

	type benchResult struct {
		kind types.BackendKind
		avg  time.Duration
		rows int
		err  error
	}
	var results []benchResult
	for _, kind := range engine.BackendKinds() {
		kind := kind
		opts := router.ExecOptions{Backend: &kind, NoCache: true}
		var total time.Duration
		var rows int
		var runErr error
		for i := 0; i < *runs; i++ {
			start := time.Now()
			result, err := engine.Execute(context.Background(), sql, opts)
			if err != nil {
				runErr = err
				break
			}
			total += time.Since(start)
			rows = len(result.Rows)
		}
		br := benchResult{kind: kind, err: runErr}
		if runErr == nil {
			br.avg = total / time.Duration(*runs)
			br.rows = rows
		}
		results = append(results, br)
	}

	var fastest time.Duration
	for _, r := range results {
		if r.err == nil && (fastest == 0 || r.avg < fastest) {
			fastest = r.avg
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "backend\tavg\trelative\trows")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t%v\n", r.kind, r.err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.2fx\t%d\n",
			r.kind, r.avg.Round(time.Microsecond),
			float64(r.avg)/float64(fastest), r.rows)
	}
	return w.Flush()
}

func printResult(result *types.QueryResult, format string) error {
	switch format {
	case "json":
		return printJSON(result)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write(result.Columns); err != nil {
			return err
		}
		for _, row := range result.Rows {
			record := make([]string, len(row))
			for i, v := range row {
				record[i] = fmt.Sprintf("%v", v)
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	case "", "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprintf("%v", v)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
