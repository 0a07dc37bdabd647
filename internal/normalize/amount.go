// Package normalize converts free-text amount columns into signed decimal
// series.
//
// Two source shapes are supported: a single amount column with an optional
// direction indicator (inflow/outflow keyword per row), and the split
// income/expense column pair used by some bank exports. In both shapes an
// unparsable cell is coerced to zero rather than failing the row; callers
// receive a coercion count for auditing.
package normalize

import (
	"strings"

	"crossledger-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// inflowKeywords mark a direction-indicator value as an inflow. The set
// covers the terms used by Chinese payment exports (received/credit style)
// plus their common English equivalents. Any value not matching an inflow
// keyword is treated as an outflow.
var inflowKeywords = []string{
	"收入", "收到", "收款", "贷", "收",
	"credit", "income", "received", "deposit",
}

// IsInflow reports whether a direction-indicator value marks an inflow.
func IsInflow(direction string) bool {
	d := strings.ToLower(strings.TrimSpace(direction))
	if d == "" {
		return false
	}
	for _, kw := range inflowKeywords {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}

// Amounts parses a raw amount series into signed decimals.
//
// Thousands separators and currency glyphs are stripped before parsing;
// unparsable values become zero and are counted in coerced. When direction
// is non-nil it must be row-aligned with values: the absolute value of each
// amount is taken first and the sign is then fully determined by the
// indicator, so the raw value's original sign never leaks through.
func Amounts(values []string, direction []string) (amounts []decimal.Decimal, coerced int) {
	amounts = make([]decimal.Decimal, len(values))

	for i, raw := range values {
		v, ok := parseCell(raw)
		if !ok {
			coerced++
		}

		if direction != nil && i < len(direction) {
			if IsInflow(direction[i]) {
				v = v.Abs()
			} else {
				v = v.Abs().Neg()
			}
		}

		amounts[i] = v
	}

	return amounts, coerced
}

// CombineIncomeExpense combines split income and expense columns into one
// signed series as income - expense. Either series may be nil when the
// source carries only one of the two columns; the present column is used
// alone with the appropriate sign.
func CombineIncomeExpense(income, expense []string) (amounts []decimal.Decimal, coerced int) {
	n := len(income)
	if len(expense) > n {
		n = len(expense)
	}
	amounts = make([]decimal.Decimal, n)

	for i := 0; i < n; i++ {
		v := decimal.Zero

		if i < len(income) {
			in, ok := parseCell(income[i])
			if !ok {
				coerced++
			}
			v = v.Add(in)
		}

		if i < len(expense) {
			out, ok := parseCell(expense[i])
			if !ok {
				coerced++
			}
			v = v.Sub(out)
		}

		amounts[i] = v
	}

	return amounts, coerced
}

// parseCell parses a single amount cell, substituting zero for unparsable
// input. Empty cells count as parsable zeros: split-column exports leave
// the unused side blank on most rows.
func parseCell(raw string) (decimal.Decimal, bool) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, true
	}

	v, err := models.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
