// Package matcher pairs canonical records across platforms and partitions
// a table into matched, suspected-duplicate, and unilateral records.
//
// The algorithm is a deterministic single-pass greedy heuristic, not an
// optimal assignment: records are visited in table order and each unpaired
// record takes the FIRST eligible later record as its partner, where
// eligibility means amount difference within tolerance, timestamps within
// the time window, and counterparty similarity at or above the name
// threshold. Replacing this with minimum-cost bipartite matching would
// produce observably different partitions (a record eligible with two later
// candidates always pairs with the lower-indexed one, leaving the other
// unilateral), so the greedy choice is part of the engine's contract.
//
// Because first-eligible-wins depends on row order, the canonical table's
// order at match time is an observable contract: reordering the input can
// change the result.
package matcher

import (
	"crossledger-reconciliation-service/internal/models"
	"crossledger-reconciliation-service/pkg/logger"
)

// Pair records one greedy pairing and the similarity that decided its
// partition.
type Pair struct {
	I          int     `json:"i"`
	J          int     `json:"j"`
	Similarity float64 `json:"similarity"`
	// Status is StatusMatched or StatusSuspectedDuplicate.
	Status models.MatchStatus `json:"status"`
}

// Partition is the three-way output of one match run. The three index sets
// reference rows of the input table (not copies), are pairwise disjoint,
// and together cover every input record exactly once.
type Partition struct {
	Matched            []int  `json:"matched"`
	SuspectedDuplicate []int  `json:"suspected_duplicate"`
	Unilateral         []int  `json:"unilateral"`
	Pairs              []Pair `json:"pairs"`
}

// Total returns the number of partitioned records.
func (p *Partition) Total() int {
	return len(p.Matched) + len(p.SuspectedDuplicate) + len(p.Unilateral)
}

// Statuses returns the per-row status slice aligned with the input table.
func (p *Partition) Statuses() []models.MatchStatus {
	statuses := make([]models.MatchStatus, p.Total())
	for _, i := range p.Matched {
		statuses[i] = models.StatusMatched
	}
	for _, i := range p.SuspectedDuplicate {
		statuses[i] = models.StatusSuspectedDuplicate
	}
	for _, i := range p.Unilateral {
		statuses[i] = models.StatusUnilateral
	}
	return statuses
}

// Records returns the records of the given partition set in index order.
func (p *Partition) Records(table models.RecordTable, status models.MatchStatus) models.RecordTable {
	var indices []int
	switch status {
	case models.StatusMatched:
		indices = p.Matched
	case models.StatusSuspectedDuplicate:
		indices = p.SuspectedDuplicate
	case models.StatusUnilateral:
		indices = p.Unilateral
	}

	records := make(models.RecordTable, 0, len(indices))
	for _, i := range indices {
		records = append(records, table[i])
	}
	return records
}

// Matcher runs the greedy pairing pass over a canonical table.
type Matcher struct {
	config *MatchConfig
	logger logger.Logger
}

// New creates a Matcher with the given configuration, falling back to the
// defaults when nil.
func New(config *MatchConfig) *Matcher {
	if config == nil {
		config = DefaultMatchConfig()
	}
	return &Matcher{
		config: config,
		logger: logger.WithComponent("matcher"),
	}
}

// Config returns a copy of the matcher's configuration.
func (m *Matcher) Config() *MatchConfig {
	return m.config.Clone()
}

// Match partitions the table. It never fails: a table with fewer than two
// records yields every record as unilateral with no comparisons attempted.
//
// The pass is O(n²) worst case. The assignment marker set is owned by this
// call alone, which keeps the matcher reentrant: concurrent Match calls on
// different tables share nothing.
func (m *Matcher) Match(table models.RecordTable) *Partition {
	partition := &Partition{
		Matched:            []int{},
		SuspectedDuplicate: []int{},
		Unilateral:         []int{},
		Pairs:              []Pair{},
	}

	if len(table) < 2 {
		for i := range table {
			partition.Unilateral = append(partition.Unilateral, i)
		}
		return partition
	}

	assigned := make(map[int]models.MatchStatus, len(table))

	for i := 0; i < len(table); i++ {
		if _, done := assigned[i]; done {
			continue
		}

		for j := i + 1; j < len(table); j++ {
			if _, done := assigned[j]; done {
				continue
			}

			similarity, eligible := m.eligible(table[i], table[j])
			if !eligible {
				continue
			}

			status := models.StatusSuspectedDuplicate
			if similarity >= m.config.HighConfidenceThreshold {
				status = models.StatusMatched
			}
			assigned[i] = status
			assigned[j] = status
			partition.Pairs = append(partition.Pairs, Pair{I: i, J: j, Similarity: similarity, Status: status})

			// First eligible partner wins; i is never reconsidered.
			break
		}
	}

	for i := range table {
		switch assigned[i] {
		case models.StatusMatched:
			partition.Matched = append(partition.Matched, i)
		case models.StatusSuspectedDuplicate:
			partition.SuspectedDuplicate = append(partition.SuspectedDuplicate, i)
		default:
			partition.Unilateral = append(partition.Unilateral, i)
		}
	}

	m.logger.WithFields(logger.Fields{
		"records":             len(table),
		"matched":             len(partition.Matched),
		"suspected_duplicate": len(partition.SuspectedDuplicate),
		"unilateral":          len(partition.Unilateral),
	}).Debug("Match pass complete")

	return partition
}

// eligible applies the three pair constraints in cheapest-first order and
// returns the counterparty similarity when all of them hold.
func (m *Matcher) eligible(a, b *models.Record) (float64, bool) {
	if a.Amount.Sub(b.Amount).Abs().GreaterThan(m.config.AmountTolerance) {
		return 0, false
	}

	delta := a.Timestamp.Sub(b.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > m.config.TimeWindow {
		return 0, false
	}

	similarity := Similarity(a.Counterparty, b.Counterparty)
	if similarity < m.config.NameSimilarityThreshold {
		return 0, false
	}

	return similarity, true
}
