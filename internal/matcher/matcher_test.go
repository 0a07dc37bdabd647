package matcher

import (
	"reflect"
	"testing"
	"time"

	"crossledger-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

var testBase = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// createTestRecord builds a record offset from the shared base time.
func createTestRecord(minuteOffset int, amount float64, counterparty string) *models.Record {
	record := models.NewRecord(
		testBase.Add(time.Duration(minuteOffset)*time.Minute),
		decimal.NewFromFloat(amount),
		"test",
	)
	record.Counterparty = counterparty
	return record
}

// verifyPartition checks disjointness and exhaustiveness: every table index
// appears in exactly one of the three sets.
func verifyPartition(t *testing.T, table models.RecordTable, partition *Partition) {
	t.Helper()

	if partition.Total() != len(table) {
		t.Fatalf("Expected partition to cover %d records, got %d", len(table), partition.Total())
	}

	seen := make(map[int]int)
	for _, set := range [][]int{partition.Matched, partition.SuspectedDuplicate, partition.Unilateral} {
		for _, i := range set {
			seen[i]++
		}
	}
	for i := range table {
		if seen[i] != 1 {
			t.Errorf("Index %d appears %d times across the partition sets", i, seen[i])
		}
	}
}

func TestMatch_HighConfidencePair(t *testing.T) {
	// Two records, same amount, same counterparty, two minutes apart.
	table := models.RecordTable{
		createTestRecord(0, 150.00, "星巴克咖啡"),
		createTestRecord(2, 150.00, "星巴克咖啡"),
	}

	partition := New(nil).Match(table)
	verifyPartition(t, table, partition)

	if len(partition.Matched) != 2 {
		t.Errorf("Expected both records matched, got %d", len(partition.Matched))
	}
	if len(partition.Pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(partition.Pairs))
	}
	pair := partition.Pairs[0]
	if pair.I != 0 || pair.J != 1 || pair.Status != models.StatusMatched {
		t.Errorf("Unexpected pair: %+v", pair)
	}
}

func TestMatch_SuspectedDuplicatePair(t *testing.T) {
	// Similar but not near-identical counterparty names: the similarity
	// lands between the name threshold and the high-confidence threshold.
	table := models.RecordTable{
		createTestRecord(0, 88.00, "shop-a"),
		createTestRecord(1, 88.00, "shop-b"),
	}

	partition := New(nil).Match(table)
	verifyPartition(t, table, partition)

	if len(partition.SuspectedDuplicate) != 2 {
		t.Errorf("Expected both records suspected, got %d", len(partition.SuspectedDuplicate))
	}
	if len(partition.Pairs) != 1 || partition.Pairs[0].Status != models.StatusSuspectedDuplicate {
		t.Errorf("Expected one suspected pair, got %+v", partition.Pairs)
	}
}

// The promotion boundary is inclusive: a pair sitting exactly at the
// high-confidence threshold is matched, not suspected. One substitution
// over two ten-rune names gives a ratio of exactly (20-2)/20 = 0.9.
func TestMatch_SimilarityAtPromotionBoundary(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 64.00, "merchant-a"),
		createTestRecord(1, 64.00, "merchant-b"),
	}

	if got := Similarity("merchant-a", "merchant-b"); got != 0.9 {
		t.Fatalf("Fixture names must sit exactly at the boundary, got %v", got)
	}

	partition := New(nil).Match(table)
	verifyPartition(t, table, partition)

	if len(partition.Matched) != 2 {
		t.Errorf("Expected boundary pair to be matched, got matched=%d suspected=%d",
			len(partition.Matched), len(partition.SuspectedDuplicate))
	}
	if len(partition.Pairs) != 1 || partition.Pairs[0].Status != models.StatusMatched {
		t.Errorf("Expected one matched pair, got %+v", partition.Pairs)
	}
}

func TestMatch_AmountOverTolerance(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 100.00, "星巴克"),
		createTestRecord(1, 100.50, "星巴克"),
	}

	partition := New(nil).Match(table)
	verifyPartition(t, table, partition)

	if len(partition.Unilateral) != 2 {
		t.Errorf("Expected both records unilateral, got %d", len(partition.Unilateral))
	}
	if len(partition.Pairs) != 0 {
		t.Errorf("Expected no pairs, got %+v", partition.Pairs)
	}
}

func TestMatch_TimeOverWindow(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 100.00, "星巴克"),
		createTestRecord(6, 100.00, "星巴克"),
	}

	partition := New(nil).Match(table)
	if len(partition.Unilateral) != 2 {
		t.Errorf("Expected both records unilateral, got %d", len(partition.Unilateral))
	}
}

func TestMatch_NameBelowThreshold(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 100.00, "abcdef"),
		createTestRecord(1, 100.00, "uvwxyz"),
	}

	partition := New(nil).Match(table)
	if len(partition.Unilateral) != 2 {
		t.Errorf("Expected both records unilateral, got %d", len(partition.Unilateral))
	}
}

// The first eligible later record wins: a record eligible with two later
// candidates always pairs with the lower-indexed one.
func TestMatch_GreedyFirstEligible(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 50.00, "星巴克"),
		createTestRecord(1, 50.00, "星巴克"),
		createTestRecord(2, 50.00, "星巴克"),
	}

	partition := New(nil).Match(table)
	verifyPartition(t, table, partition)

	if len(partition.Pairs) != 1 {
		t.Fatalf("Expected exactly 1 pair, got %d", len(partition.Pairs))
	}
	pair := partition.Pairs[0]
	if pair.I != 0 || pair.J != 1 {
		t.Errorf("Expected record 0 to pair with record 1, got (%d, %d)", pair.I, pair.J)
	}
	if !reflect.DeepEqual(partition.Unilateral, []int{2}) {
		t.Errorf("Expected record 2 unilateral, got %v", partition.Unilateral)
	}
}

func TestMatch_Determinism(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 10.00, "咖啡店"),
		createTestRecord(1, 10.00, "咖啡店"),
		createTestRecord(3, 25.00, "shop-a"),
		createTestRecord(4, 25.00, "shop-b"),
		createTestRecord(10, 99.00, "孤立记录"),
	}

	m := New(nil)
	first := m.Match(table)
	second := m.Match(table)

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical partitions for repeated runs on the same table")
	}
}

// Reordering the input changes which records pair up. Pairing is
// first-eligible-wins in table order, so this divergence is expected
// behavior, not a bug.
func TestMatch_OrderDependence(t *testing.T) {
	a := createTestRecord(0, 75.00, "星巴克")
	b := createTestRecord(1, 75.00, "星巴克")
	c := createTestRecord(2, 75.00, "星巴克")

	m := New(nil)

	forward := m.Match(models.RecordTable{a, b, c})
	if forward.Pairs[0].I != 0 || forward.Pairs[0].J != 1 {
		t.Fatalf("Unexpected forward pairing: %+v", forward.Pairs[0])
	}
	if !reflect.DeepEqual(forward.Unilateral, []int{2}) {
		t.Fatalf("Expected index 2 unilateral in forward order, got %v", forward.Unilateral)
	}

	// Swap b and c: the same record set now leaves b unpaired.
	swappedTable := models.RecordTable{a, c, b}
	swapped := m.Match(swappedTable)
	if swapped.Pairs[0].I != 0 || swapped.Pairs[0].J != 1 {
		t.Fatalf("Unexpected swapped pairing: %+v", swapped.Pairs[0])
	}
	if !reflect.DeepEqual(swapped.Unilateral, []int{2}) {
		t.Fatalf("Expected index 2 unilateral in swapped order, got %v", swapped.Unilateral)
	}

	forwardUnpaired := forward.Records(models.RecordTable{a, b, c}, models.StatusUnilateral)[0]
	swappedUnpaired := swapped.Records(swappedTable, models.StatusUnilateral)[0]
	if forwardUnpaired != c || swappedUnpaired != b {
		t.Error("Expected the unpaired record to differ between the two orderings")
	}
}

func TestMatch_FewerThanTwoRecords(t *testing.T) {
	m := New(nil)

	empty := m.Match(models.RecordTable{})
	if empty.Total() != 0 {
		t.Errorf("Expected empty partition for empty table, got %d", empty.Total())
	}

	single := m.Match(models.RecordTable{createTestRecord(0, 10.00, "张三")})
	if len(single.Unilateral) != 1 || single.Total() != 1 {
		t.Errorf("Expected single record unilateral, got %+v", single)
	}
}

func TestMatch_MixedTable(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 100.00, "星巴克咖啡"),  // pairs with 1, matched
		createTestRecord(2, 100.00, "星巴克咖啡"),
		createTestRecord(5, 60.00, "shop-a"), // pairs with 3, suspected
		createTestRecord(6, 60.00, "shop-b"),
		createTestRecord(20, 42.00, "孤立商户"), // nothing nearby
	}

	partition := New(nil).Match(table)
	verifyPartition(t, table, partition)

	if len(partition.Matched) != 2 || len(partition.SuspectedDuplicate) != 2 || len(partition.Unilateral) != 1 {
		t.Errorf("Unexpected partition sizes: matched=%d suspected=%d unilateral=%d",
			len(partition.Matched), len(partition.SuspectedDuplicate), len(partition.Unilateral))
	}

	statuses := partition.Statuses()
	want := []models.MatchStatus{
		models.StatusMatched, models.StatusMatched,
		models.StatusSuspectedDuplicate, models.StatusSuspectedDuplicate,
		models.StatusUnilateral,
	}
	if !reflect.DeepEqual(statuses, want) {
		t.Errorf("Expected statuses %v, got %v", want, statuses)
	}
}

func TestPartition_Records(t *testing.T) {
	table := models.RecordTable{
		createTestRecord(0, 10.00, "咖啡店"),
		createTestRecord(1, 10.00, "咖啡店"),
		createTestRecord(30, 5.00, "孤立记录"),
	}

	partition := New(nil).Match(table)

	matched := partition.Records(table, models.StatusMatched)
	if len(matched) != 2 || matched[0] != table[0] || matched[1] != table[1] {
		t.Errorf("Unexpected matched records: %v", matched)
	}
	unilateral := partition.Records(table, models.StatusUnilateral)
	if len(unilateral) != 1 || unilateral[0] != table[2] {
		t.Errorf("Unexpected unilateral records: %v", unilateral)
	}
}

func TestMatchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*MatchConfig) {}},
		{name: "strict", mutate: func(mc *MatchConfig) { *mc = *StrictMatchConfig() }},
		{name: "relaxed", mutate: func(mc *MatchConfig) { *mc = *RelaxedMatchConfig() }},
		{
			name:    "negative amount tolerance",
			mutate:  func(mc *MatchConfig) { mc.AmountTolerance = decimal.NewFromInt(-1) },
			wantErr: true,
		},
		{
			name:    "negative time window",
			mutate:  func(mc *MatchConfig) { mc.TimeWindow = -time.Minute },
			wantErr: true,
		},
		{
			name:    "name threshold above one",
			mutate:  func(mc *MatchConfig) { mc.NameSimilarityThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "high confidence below name threshold",
			mutate:  func(mc *MatchConfig) { mc.NameSimilarityThreshold = 0.8; mc.HighConfidenceThreshold = 0.7 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMatchConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestMatchConfig_Clone(t *testing.T) {
	original := DefaultMatchConfig()
	clone := original.Clone()

	clone.NameSimilarityThreshold = 0.1
	if original.NameSimilarityThreshold == 0.1 {
		t.Error("Expected clone to be independent of the original")
	}
}
