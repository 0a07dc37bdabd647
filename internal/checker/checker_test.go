package checker

import (
	"strings"
	"testing"
	"time"

	"crossledger-reconciliation-service/internal/matcher"
	"crossledger-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func createTestRecord(amount float64, counterparty string) *models.Record {
	record := models.NewRecord(
		time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(amount),
		"test",
	)
	record.Counterparty = counterparty
	return record
}

func TestCheck_EmptyTable(t *testing.T) {
	result := New(decimal.Zero).Check(models.RecordTable{}, &matcher.Partition{})

	if !result.AmountBalanced {
		t.Error("Expected empty table to be balanced")
	}
	if !result.NetAmount.IsZero() {
		t.Errorf("Expected zero net amount, got %s", result.NetAmount.String())
	}
	if result.MatchedCount != 0 || result.SuspectedDuplicateCount != 0 || result.UnilateralCount != 0 {
		t.Error("Expected all counts zero for empty table")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
}

func TestCheck_Balanced(t *testing.T) {
	// Offsetting transfer legs: net within tolerance.
	table := models.RecordTable{
		createTestRecord(500.00, "张三"),
		createTestRecord(-500.00, "张三"),
	}
	partition := matcher.New(nil).Match(table)

	result := New(DefaultBalanceTolerance).Check(table, partition)

	if !result.AmountBalanced {
		t.Error("Expected balanced result")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
}

func TestCheck_Unbalanced(t *testing.T) {
	// Net position of 150 exceeds the default tolerance of 100. Both
	// records are unilateral, so the completeness warning fires too.
	table := models.RecordTable{
		createTestRecord(100.00, "张三"),
		createTestRecord(50.00, "李四"),
	}
	partition := matcher.New(nil).Match(table)

	result := New(DefaultBalanceTolerance).Check(table, partition)

	if result.AmountBalanced {
		t.Error("Expected unbalanced result")
	}
	if !result.NetAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected net 150, got %s", result.NetAmount.String())
	}

	var balanceWarning string
	for _, w := range result.Warnings {
		if strings.Contains(w, "do not balance") {
			balanceWarning = w
		}
	}
	if balanceWarning == "" {
		t.Fatalf("Expected a balance warning, got %v", result.Warnings)
	}
	if !strings.Contains(balanceWarning, "150.00") {
		t.Errorf("Expected warning to name the net position, got %q", balanceWarning)
	}
}

// The boundary is exclusive: a net exactly at the tolerance is balanced.
func TestCheck_NetAtTolerance(t *testing.T) {
	table := models.RecordTable{createTestRecord(100.00, "张三")}
	partition := matcher.New(nil).Match(table)

	result := New(DefaultBalanceTolerance).Check(table, partition)
	if !result.AmountBalanced {
		t.Error("Expected net exactly at tolerance to be balanced")
	}
}

func TestCheck_NegativeNet(t *testing.T) {
	table := models.RecordTable{createTestRecord(-250.00, "张三")}
	partition := matcher.New(nil).Match(table)

	result := New(DefaultBalanceTolerance).Check(table, partition)
	if result.AmountBalanced {
		t.Error("Expected large negative net to be unbalanced")
	}
}

func TestCheck_UnilateralMajorityWarning(t *testing.T) {
	// Two matched records plus three unmatchable ones: 3 of 5 unilateral.
	// Amounts offset so the balance check stays quiet.
	table := models.RecordTable{
		createTestRecord(10.00, "咖啡店"),
		createTestRecord(10.00, "咖啡店"),
		createTestRecord(30.00, "abcdef"),
		createTestRecord(-25.00, "uvwxyz"),
		createTestRecord(-20.00, "孤立商户"),
	}
	partition := matcher.New(nil).Match(table)

	result := New(DefaultBalanceTolerance).Check(table, partition)

	if result.UnilateralCount != 3 {
		t.Fatalf("Expected 3 unilateral records, got %d", result.UnilateralCount)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "completeness") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a completeness warning, got %v", result.Warnings)
	}
}

func TestCheck_Counts(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(10.00, "咖啡店"),
		createTestRecord(10.00, "咖啡店"),
		createTestRecord(-15.00, "孤立商户"),
	}
	partition := matcher.New(nil).Match(table)

	result := New(DefaultBalanceTolerance).Check(table, partition)

	if result.MatchedCount != 2 || result.UnilateralCount != 1 || result.SuspectedDuplicateCount != 0 {
		t.Errorf("Unexpected counts: matched=%d suspected=%d unilateral=%d",
			result.MatchedCount, result.SuspectedDuplicateCount, result.UnilateralCount)
	}
}

func TestNew_ToleranceFallback(t *testing.T) {
	// A zero or negative tolerance falls back to the default, so a modest
	// net stays balanced.
	table := models.RecordTable{createTestRecord(50.00, "张三")}
	result := New(decimal.NewFromInt(-1)).Check(table, matcher.New(nil).Match(table))

	if !result.AmountBalanced {
		t.Error("Expected fallback tolerance to keep a net of 50 balanced")
	}
}
