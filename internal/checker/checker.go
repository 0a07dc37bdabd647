// Package checker audits a partitioned canonical table for batch-level
// consistency problems.
//
// The check is pure aggregation and never fails: it sums signed amounts
// into a net position, compares the net against a batch balance tolerance
// (a much coarser threshold than the per-pair amount tolerance), and flags
// a data-completeness concern when more than half of the records are
// unilateral. Every result field is computed even for an empty table.
package checker

import (
	"fmt"

	"crossledger-reconciliation-service/internal/matcher"
	"crossledger-reconciliation-service/internal/models"
	"crossledger-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultBalanceTolerance is the absolute net-amount threshold above which
// a batch is flagged as unbalanced.
var DefaultBalanceTolerance = decimal.NewFromInt(100)

// Result is the read-only outcome of one consistency check, computed once
// per reconciliation run and never mutated afterward.
type Result struct {
	AmountBalanced          bool            `json:"amount_balanced"`
	NetAmount               decimal.Decimal `json:"net_amount"`
	MatchedCount            int             `json:"matched_count"`
	SuspectedDuplicateCount int             `json:"suspected_duplicate_count"`
	UnilateralCount         int             `json:"unilateral_count"`
	Warnings                []string        `json:"warnings"`
}

// Checker performs consistency checks with a configurable balance
// tolerance.
type Checker struct {
	balanceTolerance decimal.Decimal
	logger           logger.Logger
}

// New creates a Checker with the given balance tolerance. A zero or
// negative tolerance falls back to the default.
func New(balanceTolerance decimal.Decimal) *Checker {
	if balanceTolerance.LessThanOrEqual(decimal.Zero) {
		balanceTolerance = DefaultBalanceTolerance
	}
	return &Checker{
		balanceTolerance: balanceTolerance,
		logger:           logger.WithComponent("checker"),
	}
}

// Check audits the table under its match partition. It never fails; an
// empty table yields zero counts, a zero net amount, and a balanced
// result with no warnings.
func (c *Checker) Check(table models.RecordTable, partition *matcher.Partition) *Result {
	result := &Result{
		AmountBalanced: true,
		NetAmount:      decimal.Zero,
		Warnings:       []string{},
	}

	if len(table) == 0 {
		return result
	}

	result.NetAmount = table.NetAmount()
	if partition != nil {
		result.MatchedCount = len(partition.Matched)
		result.SuspectedDuplicateCount = len(partition.SuspectedDuplicate)
		result.UnilateralCount = len(partition.Unilateral)
	}

	if result.NetAmount.Abs().GreaterThan(c.balanceTolerance) {
		result.AmountBalanced = false
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("amounts do not balance: net position %s exceeds tolerance %s, check for unilateral entries",
				result.NetAmount.StringFixed(2), c.balanceTolerance.StringFixed(2)))
	}

	if result.UnilateralCount*2 > len(table) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unilateral records make up %d of %d rows, check source data completeness",
				result.UnilateralCount, len(table)))
	}

	c.logger.WithFields(logger.Fields{
		"net_amount": result.NetAmount.String(),
		"balanced":   result.AmountBalanced,
		"warnings":   len(result.Warnings),
	}).Debug("Consistency check complete")

	return result
}
