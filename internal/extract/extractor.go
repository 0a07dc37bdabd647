// Package extract turns raw tabular exports into canonical record tables.
//
// Extraction orchestrates platform detection, column mapping, amount
// normalization, and timestamp parsing for one file at a time. The only
// fatal condition is a table in which no usable timestamp column can be
// located; everything else degrades per value (amounts coerce to zero) or
// per row (unparsable timestamps drop the row) so that a partially dirty
// export still yields its clean rows.
package extract

import (
	"strings"

	apperrors "crossledger-reconciliation-service/pkg/errors"
	"crossledger-reconciliation-service/pkg/logger"

	"crossledger-reconciliation-service/internal/models"
	"crossledger-reconciliation-service/internal/normalize"
	"crossledger-reconciliation-service/internal/platform"

	"github.com/shopspring/decimal"
)

// RawTable is the input boundary of the engine: rows of string cells under
// named columns, plus an advisory filename. Byte decoding and spreadsheet
// parsing happen upstream (see the ingest package); the extractor assumes
// the table is already in hand.
type RawTable struct {
	Headers  []string
	Rows     [][]string
	Filename string
}

// NumRows returns the number of data rows in the table.
func (t *RawTable) NumRows() int {
	return len(t.Rows)
}

// Column returns the values of the named column, one per row. Rows shorter
// than the header width yield empty cells. Returns nil when the column does
// not exist.
func (t *RawTable) Column(name string) []string {
	index := -1
	for i, h := range t.Headers {
		if strings.TrimSpace(h) == name {
			index = i
			break
		}
	}
	if index == -1 {
		return nil
	}

	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if index < len(row) {
			values[i] = row[index]
		}
	}
	return values
}

// Extraction is the result of extracting one raw table.
type Extraction struct {
	// Records is the canonical table in source row order.
	Records models.RecordTable
	// Platform is the detected platform profile identifier.
	Platform string
	// Mapping records which raw header fed each canonical field.
	Mapping map[string]platform.Field
	// UsedFallback is true when no profile matched and the generic bank
	// profile was applied.
	UsedFallback bool
	// CoercedAmounts counts amount cells substituted with zero.
	CoercedAmounts int
	// DroppedRows counts rows removed for unparsable timestamps.
	DroppedRows int
	// Warnings carries the non-fatal coercion notices raised during
	// extraction, one per dropped row.
	Warnings []*apperrors.LedgerError
}

// Extract builds a canonical record table from a raw table.
//
// On success every returned record has all eight canonical fields: text
// fields the source lacks hold the absent marker, amount is always a valid
// decimal (zero when unparsable), and timestamp always parsed. Fails with a
// schema error only when the mapped result contains no timestamp column;
// callers running multi-file batches must treat that as fatal for this file
// alone.
func Extract(table *RawTable, filename string) (*Extraction, error) {
	log := logger.WithComponent("extractor").WithField("file", filename)

	if table == nil || table.NumRows() == 0 {
		log.Debug("Table has no data rows, returning empty extraction")
		return &Extraction{
			Records:  models.RecordTable{},
			Platform: "unknown",
			Mapping:  map[string]platform.Field{},
		}, nil
	}

	platformID, usedFallback := platform.DetectWithFallback(table.Headers, filename)
	profile := platform.Lookup(platformID)
	mapping := platform.MapColumns(platformID, table.Headers)

	log.WithFields(logger.Fields{
		"platform":      platformID,
		"used_fallback": usedFallback,
		"mapped_fields": len(mapping),
	}).Debug("Detected platform and mapped columns")

	if usedFallback {
		log.Info(apperrors.PlatformFallback(filename).Error())
	}

	timestampColumn := rawHeaderFor(mapping, platform.FieldTimestamp)
	if timestampColumn == "" {
		log.WithField("headers", table.Headers).Error("No usable timestamp column")
		return nil, apperrors.SchemaError(apperrors.CodeNoTimestampColumn, filename, table.Headers)
	}

	amounts, coerced := resolveAmounts(table, platformID, mapping)

	categories := mappedColumn(table, mapping, platform.FieldCategory)
	counterparties := mappedColumn(table, mapping, platform.FieldCounterparty)
	transactionIDs := mappedColumn(table, mapping, platform.FieldTransactionID)
	timestamps := table.Column(timestampColumn)

	records := make(models.RecordTable, 0, table.NumRows())
	dropped := 0
	var warnings []*apperrors.LedgerError

	for i := 0; i < table.NumRows(); i++ {
		ts, err := models.ParseTimestamp(timestamps[i])
		if err != nil {
			dropped++
			warnings = append(warnings, apperrors.CoercionWarning(apperrors.CodeRowDropped, "timestamp", timestamps[i]))
			continue
		}

		record := models.NewRecord(ts, amounts[i], platformID)
		record.Account = profile.Label
		record.Currency = profile.Currency
		record.Category = cell(categories, i)
		record.Counterparty = cell(counterparties, i)
		record.TransactionID = cell(transactionIDs, i)

		records = append(records, record)
	}

	log.WithFields(logger.Fields{
		"records":         len(records),
		"dropped_rows":    dropped,
		"coerced_amounts": coerced,
	}).Info("Extraction complete")

	return &Extraction{
		Records:        records,
		Platform:       platformID,
		Mapping:        mapping,
		UsedFallback:   usedFallback,
		CoercedAmounts: coerced,
		DroppedRows:    dropped,
		Warnings:       warnings,
	}, nil
}

// resolveAmounts picks the amount-normalization path for the table:
// direction indicator when present, split income/expense combination when
// both columns exist, plain parsing of the mapped amount column, a single
// split column with its sign, or all zeros when nothing maps.
//
// A lone split column outranks a plain reading of the same header: an
// expense-only export maps 支出金额 as its amount column, but the values
// are still expenses and must come out negative.
func resolveAmounts(table *RawTable, platformID string, mapping map[string]platform.Field) ([]decimal.Decimal, int) {
	amountColumn := rawHeaderFor(mapping, platform.FieldAmount)

	if amountColumn != "" {
		if directionColumn, ok := platform.DirectionColumn(platformID, table.Headers); ok {
			return normalize.Amounts(table.Column(amountColumn), table.Column(directionColumn))
		}
	}

	income, expense, splitOK := platform.IncomeExpenseColumns(platformID, table.Headers)
	if splitOK && income != "" && expense != "" {
		return normalize.CombineIncomeExpense(table.Column(income), table.Column(expense))
	}

	if amountColumn != "" && amountColumn != income && amountColumn != expense {
		return normalize.Amounts(table.Column(amountColumn), nil)
	}

	if splitOK {
		if income != "" {
			return normalize.CombineIncomeExpense(table.Column(income), nil)
		}
		return normalize.CombineIncomeExpense(nil, table.Column(expense))
	}

	return make([]decimal.Decimal, table.NumRows()), 0
}

func rawHeaderFor(mapping map[string]platform.Field, field platform.Field) string {
	for raw, canonical := range mapping {
		if canonical == field {
			return raw
		}
	}
	return ""
}

func mappedColumn(table *RawTable, mapping map[string]platform.Field, field platform.Field) []string {
	raw := rawHeaderFor(mapping, field)
	if raw == "" {
		return nil
	}
	return table.Column(raw)
}

func cell(values []string, i int) string {
	if values == nil || i >= len(values) {
		return models.Absent
	}
	return strings.TrimSpace(values[i])
}
