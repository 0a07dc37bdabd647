// Package reconciler orchestrates a full reconciliation run over multiple
// source files.
//
// Each file is decoded and extracted in isolation: a failure (undecodable
// bytes, missing timestamp column) skips that file with a recorded reason
// and never aborts the batch or discards records already extracted from
// other files. Successfully extracted tables are concatenated in file
// order, exact duplicate rows are dropped, and the merged table is handed
// to the fuzzy matcher and consistency checker. The result is computed
// once per run and is read-only afterward.
package reconciler

import (
	"time"

	apperrors "crossledger-reconciliation-service/pkg/errors"
	"crossledger-reconciliation-service/pkg/logger"

	"crossledger-reconciliation-service/internal/checker"
	"crossledger-reconciliation-service/internal/extract"
	"crossledger-reconciliation-service/internal/ingest"
	"crossledger-reconciliation-service/internal/matcher"
	"crossledger-reconciliation-service/internal/models"
	"crossledger-reconciliation-service/internal/platform"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config controls one reconciliation run.
type Config struct {
	// Matching holds the four pairwise matching thresholds.
	Matching *matcher.MatchConfig
	// BalanceTolerance is the batch-level net amount threshold for the
	// consistency check. Zero selects the checker default.
	BalanceTolerance decimal.Decimal
}

// DefaultConfig returns a run configuration with default thresholds.
func DefaultConfig() *Config {
	return &Config{
		Matching:         matcher.DefaultMatchConfig(),
		BalanceTolerance: checker.DefaultBalanceTolerance,
	}
}

// Validate checks the run configuration.
func (c *Config) Validate() error {
	if c.Matching == nil {
		return apperrors.ConfigError("matching", nil, nil)
	}
	return c.Matching.Validate()
}

// FileReport summarizes the extraction of one successfully processed file.
type FileReport struct {
	File           string                    `json:"file"`
	Platform       string                    `json:"platform"`
	Mapping        map[string]platform.Field `json:"mapping"`
	Records        int                       `json:"records"`
	DroppedRows    int                       `json:"dropped_rows"`
	CoercedAmounts int                       `json:"coerced_amounts"`
	UsedFallback   bool                      `json:"used_fallback"`
}

// SkippedFile names a file that failed extraction and the reason it was
// skipped.
type SkippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Result is the complete outcome of one reconciliation run.
type Result struct {
	// RunID uniquely identifies this run in logs and reports.
	RunID string `json:"run_id"`
	// Table is the merged canonical record table in ingestion order.
	Table models.RecordTable `json:"-"`
	// Partition is the three-way match partition over Table.
	Partition *matcher.Partition `json:"partition"`
	// Consistency is the batch-level audit result.
	Consistency *checker.Result `json:"consistency"`
	// Files reports each successfully extracted source file.
	Files []FileReport `json:"files"`
	// Skipped lists files that failed extraction, with reasons.
	Skipped []SkippedFile `json:"skipped"`
	// Errors aggregates the per-file errors behind Skipped.
	Errors *apperrors.BatchSummary `json:"-"`
	// NoData is true when no file yielded any records.
	NoData bool `json:"no_data"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Reconciler runs multi-file reconciliation batches.
type Reconciler struct {
	config *Config
	logger logger.Logger
}

// New creates a Reconciler, falling back to the default configuration when
// nil is given.
func New(config *Config) (*Reconciler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Reconciler{
		config: config,
		logger: logger.WithComponent("reconciler"),
	}, nil
}

// ReconcileFiles loads, extracts, and reconciles the named files.
func (r *Reconciler) ReconcileFiles(paths []string) (*Result, error) {
	tables := make([]*extract.RawTable, 0, len(paths))
	var failures []*apperrors.LedgerError
	var skipped []SkippedFile

	for _, path := range paths {
		table, err := ingest.Load(path)
		if err != nil {
			ledgerErr := apperrors.WrapIfNeeded(err, apperrors.CategoryFile, apperrors.CodeFileUnreadable, err.Error())
			failures = append(failures, ledgerErr)
			skipped = append(skipped, SkippedFile{File: path, Reason: ledgerErr.Message})
			r.logger.WithError(err).WithField("file", path).Warn("Skipping file: load failed")
			continue
		}
		tables = append(tables, table)
	}

	result, err := r.ReconcileTables(tables)
	if err != nil {
		return nil, err
	}

	// Fold load failures in ahead of extraction failures.
	result.Skipped = append(skipped, result.Skipped...)
	failures = append(failures, result.Errors.Errors...)
	result.Errors = apperrors.NewBatchSummary(failures)

	return result, nil
}

// ReconcileTables extracts and reconciles pre-decoded raw tables. This is
// the entry point for callers that obtained table bytes elsewhere (uploads,
// archives) and decoded them through the ingest package directly.
func (r *Reconciler) ReconcileTables(tables []*extract.RawTable) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Files:     []FileReport{},
		Skipped:   []SkippedFile{},
	}

	log := r.logger.WithField("run_id", result.RunID)
	log.WithField("files", len(tables)).Info("Starting reconciliation run")

	merged := models.RecordTable{}
	var failures []*apperrors.LedgerError

	for _, table := range tables {
		extraction, err := extract.Extract(table, table.Filename)
		if err != nil {
			ledgerErr, ok := apperrors.AsLedgerError(err)
			if !ok {
				ledgerErr = apperrors.InternalError("extraction", err)
			}
			failures = append(failures, ledgerErr)
			result.Skipped = append(result.Skipped, SkippedFile{File: table.Filename, Reason: ledgerErr.Message})
			log.WithError(err).WithField("file", table.Filename).Warn("Skipping file: extraction failed")
			continue
		}

		if len(extraction.Records) == 0 {
			log.WithField("file", table.Filename).Info("File yielded no records")
		}

		// Dropped-row notices are non-fatal; they ride along in the batch
		// summary without skipping the file.
		failures = append(failures, extraction.Warnings...)

		merged = append(merged, extraction.Records...)
		result.Files = append(result.Files, FileReport{
			File:           table.Filename,
			Platform:       extraction.Platform,
			Mapping:        extraction.Mapping,
			Records:        len(extraction.Records),
			DroppedRows:    extraction.DroppedRows,
			CoercedAmounts: extraction.CoercedAmounts,
			UsedFallback:   extraction.UsedFallback,
		})
	}

	// Row order is fixed from here on: the matcher's greedy pass depends
	// on it, so no sorting or regrouping may happen between this point and
	// Match.
	result.Table = merged.Deduplicate()

	result.Partition = matcher.New(r.config.Matching).Match(result.Table)
	result.Consistency = checker.New(r.config.BalanceTolerance).Check(result.Table, result.Partition)

	result.Errors = apperrors.NewBatchSummary(failures)
	result.NoData = len(result.Table) == 0
	result.CompletedAt = time.Now()

	log.WithFields(logger.Fields{
		"records":             len(result.Table),
		"matched":             result.Consistency.MatchedCount,
		"suspected_duplicate": result.Consistency.SuspectedDuplicateCount,
		"unilateral":          result.Consistency.UnilateralCount,
		"skipped_files":       len(result.Skipped),
		"duration":            result.CompletedAt.Sub(result.StartedAt).String(),
	}).Info("Reconciliation run complete")

	return result, nil
}
