// Package pruner discovers Hive-style partition layouts and selects the
// subset of partitions a query must scan. Filtering is conservative in both
// phases: a value that cannot be compared is kept, and a complex predicate
// tree keeps everything.
package pruner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/irouter/irouter/pkg/types"
)

// Pruner prunes partitions for a table rooted at a local directory.
type Pruner struct {
	logger *zap.Logger
}

// New creates a Pruner. A nil logger disables logging.
func New(logger *zap.Logger) *Pruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{logger: logger}
}

// Prune discovers the table's partitions and filters them against the
// extracted predicates. A complex extraction selects every partition. The
// returned totals cover selected partitions only, while TotalPartitions
// counts everything discovered.
func (pr *Pruner) Prune(ctx context.Context, tableRoot string, extraction *types.ExtractionResult) (*types.PruningResult, error) {
	start := time.Now()

	partitions, err := discover(ctx, tableRoot, extraction.TableName)
	if err != nil {
		return nil, err
	}

	result := &types.PruningResult{TotalPartitions: len(partitions)}

	if extraction.IsComplex || len(extraction.Predicates) == 0 {
		for _, p := range partitions {
			selectPartition(result, p)
		}
		result.PruningTime = time.Since(start)
		pr.logger.Debug("pruning skipped",
			zap.String("table", extraction.TableName),
			zap.Bool("complex", extraction.IsComplex),
			zap.Int("partitions", len(partitions)))
		return result, nil
	}

	applied := map[int]bool{}
	for _, p := range partitions {
		if pr.include(p, extraction.Predicates, applied) {
			selectPartition(result, p)
		}
	}
	for i, pred := range extraction.Predicates {
		if applied[i] {
			result.PredicatesApplied = append(result.PredicatesApplied, pred)
		}
	}
	result.PruningTime = time.Since(start)

	pr.logger.Debug("pruning complete",
		zap.String("table", extraction.TableName),
		zap.Int("selected", result.PartitionsScanned()),
		zap.Int("total", result.TotalPartitions),
		zap.Float64("speedup", result.SpeedupEstimate()),
		zap.Duration("took", result.PruningTime))
	return result, nil
}

// include decides whether one partition survives the predicate set. Every
// predicate on the partition key must evaluate true against the raw
// directory value, and every predicate covered by column statistics must be
// satisfiable. Indices of consulted predicates are recorded in applied.
func (pr *Pruner) include(p types.PartitionInfo, predicates []types.Predicate, applied map[int]bool) bool {
	for i, pred := range predicates {
		if pred.Column == p.PartitionKey {
			applied[i] = true
			if !pred.Evaluate(p.PartitionValue) {
				return false
			}
			continue
		}
		if stats, ok := p.ColumnStats[pred.Column]; ok {
			applied[i] = true
			if !stats.CanSatisfy(pred) {
				return false
			}
		}
	}
	return true
}

func selectPartition(result *types.PruningResult, p types.PartitionInfo) {
	result.PartitionsToScan = append(result.PartitionsToScan, p)
	result.TotalSizeBytes += p.SizeBytes
	result.TotalFiles += p.FileCount
}
