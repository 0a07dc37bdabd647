// Package reporter renders reconciliation results for human and machine
// consumption.
//
// Four output formats are supported: a console summary, a JSON summary
// document, a CSV export of the partitioned record table, and an Excel
// workbook with a summary sheet plus one sheet per match partition.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"crossledger-reconciliation-service/internal/models"
	"crossledger-reconciliation-service/internal/reconciler"
	"crossledger-reconciliation-service/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// Format selects a report output format.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatExcel   Format = "excel"
)

// ValidFormat reports whether the format is supported.
func ValidFormat(f Format) bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatExcel:
		return true
	default:
		return false
	}
}

// recordHeader is the column order used by CSV and Excel exports: the
// eight canonical fields plus the match status.
var recordHeader = []string{
	"timestamp", "amount", "currency", "category",
	"account", "counterparty", "transaction_id", "raw_source", "match_status",
}

// Reporter writes reconciliation results in the supported formats.
type Reporter struct {
	logger logger.Logger
}

// New creates a Reporter.
func New() *Reporter {
	return &Reporter{logger: logger.WithComponent("reporter")}
}

// Write renders the result in the requested format.
func (r *Reporter) Write(result *reconciler.Result, format Format, w io.Writer) error {
	switch format {
	case FormatConsole:
		return r.writeConsole(result, w)
	case FormatJSON:
		return r.writeJSON(result, w)
	case FormatCSV:
		return r.writeCSV(result, w)
	case FormatExcel:
		return r.WriteExcel(result, w)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (r *Reporter) writeConsole(result *reconciler.Result, w io.Writer) error {
	fmt.Fprintf(w, "Reconciliation Run %s\n", result.RunID)
	fmt.Fprintf(w, "=====================================================\n\n")

	if result.NoData {
		fmt.Fprintf(w, "No data: no records were extracted from any source file.\n\n")
	}

	fmt.Fprintf(w, "Sources:\n")
	for _, file := range result.Files {
		fmt.Fprintf(w, "  %-30s platform=%-8s records=%d", file.File, file.Platform, file.Records)
		if file.DroppedRows > 0 {
			fmt.Fprintf(w, " dropped=%d", file.DroppedRows)
		}
		if file.CoercedAmounts > 0 {
			fmt.Fprintf(w, " coerced=%d", file.CoercedAmounts)
		}
		if file.UsedFallback {
			fmt.Fprintf(w, " (generic profile)")
		}
		fmt.Fprintln(w)
	}
	for _, skip := range result.Skipped {
		fmt.Fprintf(w, "  %-30s SKIPPED: %s\n", skip.File, skip.Reason)
	}

	c := result.Consistency
	fmt.Fprintf(w, "\nResults:\n")
	fmt.Fprintf(w, "  Total records:        %d\n", len(result.Table))
	fmt.Fprintf(w, "  Matched:              %d\n", c.MatchedCount)
	fmt.Fprintf(w, "  Suspected duplicates: %d\n", c.SuspectedDuplicateCount)
	fmt.Fprintf(w, "  Unilateral:           %d\n", c.UnilateralCount)
	fmt.Fprintf(w, "  Net amount:           %s\n", c.NetAmount.StringFixed(2))
	fmt.Fprintf(w, "  Balanced:             %v\n", c.AmountBalanced)

	if len(c.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range c.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	return nil
}

// jsonSummary is the machine-readable report shape.
type jsonSummary struct {
	RunID              string                   `json:"run_id"`
	Matched            int                      `json:"matched"`
	SuspectedDuplicate int                      `json:"suspected_duplicate"`
	Unilateral         int                      `json:"unilateral"`
	Consistency        interface{}              `json:"consistency"`
	Files              []reconciler.FileReport  `json:"files"`
	Skipped            []reconciler.SkippedFile `json:"skipped"`
	NoData             bool                     `json:"no_data"`
	Records            models.RecordTable       `json:"records"`
	Statuses           []models.MatchStatus     `json:"statuses"`
}

func (r *Reporter) writeJSON(result *reconciler.Result, w io.Writer) error {
	summary := jsonSummary{
		RunID:              result.RunID,
		Matched:            result.Consistency.MatchedCount,
		SuspectedDuplicate: result.Consistency.SuspectedDuplicateCount,
		Unilateral:         result.Consistency.UnilateralCount,
		Consistency:        result.Consistency,
		Files:              result.Files,
		Skipped:            result.Skipped,
		NoData:             result.NoData,
		Records:            result.Table,
		Statuses:           result.Partition.Statuses(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

func (r *Reporter) writeCSV(result *reconciler.Result, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(recordHeader); err != nil {
		return err
	}

	statuses := result.Partition.Statuses()
	for i, record := range result.Table {
		if err := writer.Write(recordRow(record, statuses[i])); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteExcel renders the result as a workbook: a summary sheet with the
// partition counts and a total formula, followed by one sheet per match
// partition carrying the records.
func (r *Reporter) WriteExcel(result *reconciler.Result, w io.Writer) error {
	workbook := excelize.NewFile()
	defer workbook.Close()

	const summarySheet = "Summary"
	if err := workbook.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}

	headerStyle, err := workbook.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	c := result.Consistency
	summaryRows := [][]interface{}{
		{"Reconciliation Summary", ""},
		{"Matched", c.MatchedCount},
		{"Suspected duplicates", c.SuspectedDuplicateCount},
		{"Unilateral", c.UnilateralCount},
		{"Total records", nil}, // formula below
		{"Net amount", c.NetAmount.InexactFloat64()},
		{"Balanced", c.AmountBalanced},
		{"Run", result.RunID},
	}
	for i, row := range summaryRows {
		for j, value := range row {
			if value == nil {
				continue
			}
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := workbook.SetCellValue(summarySheet, cellRef, value); err != nil {
				return err
			}
		}
	}
	if err := workbook.SetCellFormula(summarySheet, "B5", "=B2+B3+B4"); err != nil {
		return err
	}

	partitions := []struct {
		name   string
		status models.MatchStatus
	}{
		{"Matched", models.StatusMatched},
		{"Suspected Duplicates", models.StatusSuspectedDuplicate},
		{"Unilateral", models.StatusUnilateral},
	}

	for _, p := range partitions {
		if _, err := workbook.NewSheet(p.name); err != nil {
			return err
		}

		for j, name := range recordHeader {
			cellRef, err := excelize.CoordinatesToCellName(j+1, 1)
			if err != nil {
				return err
			}
			if err := workbook.SetCellValue(p.name, cellRef, name); err != nil {
				return err
			}
			if err := workbook.SetCellStyle(p.name, cellRef, cellRef, headerStyle); err != nil {
				return err
			}
		}

		records := result.Partition.Records(result.Table, p.status)
		for i, record := range records {
			row := recordRow(record, p.status)
			for j, value := range row {
				cellRef, err := excelize.CoordinatesToCellName(j+1, i+2)
				if err != nil {
					return err
				}
				if err := workbook.SetCellValue(p.name, cellRef, value); err != nil {
					return err
				}
			}
		}
	}

	r.logger.WithField("run_id", result.RunID).Debug("Workbook report assembled")
	return workbook.Write(w)
}

func recordRow(record *models.Record, status models.MatchStatus) []string {
	return []string{
		record.Timestamp.Format(time.RFC3339),
		record.Amount.String(),
		record.Currency,
		record.Category,
		record.Account,
		record.Counterparty,
		record.TransactionID,
		record.RawSource,
		status.String(),
	}
}
