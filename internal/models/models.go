// Package models defines the canonical transaction record shared by every
// stage of the reconciliation engine.
//
// Records from heterogeneous platform exports (mobile payment apps, bank
// statements) are normalized into a single eight-field schema. Fields that
// a source platform does not provide are filled with the explicit Absent
// marker rather than omitted, so every record in a canonical table always
// carries the full schema.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Absent marks a canonical field whose value was not present in the source
// export. Absent text fields compare as empty strings during matching.
const Absent = ""

// MatchStatus classifies a record after fuzzy matching. Every record in a
// reconciled table holds exactly one of these values.
type MatchStatus string

const (
	// StatusMatched marks a record paired with high counterparty confidence.
	StatusMatched MatchStatus = "matched"
	// StatusSuspectedDuplicate marks a record paired below the
	// high-confidence similarity threshold.
	StatusSuspectedDuplicate MatchStatus = "suspected_duplicate"
	// StatusUnilateral marks a record that could not be paired with any
	// other record - it appears on only one side of an expected transfer.
	StatusUnilateral MatchStatus = "unilateral"
)

// String returns the string representation of MatchStatus.
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the match status is one of the three partitions.
func (s MatchStatus) IsValid() bool {
	return s == StatusMatched || s == StatusSuspectedDuplicate || s == StatusUnilateral
}

// Record is a canonical transaction record.
//
// Sign convention: positive amounts are inflows, negative amounts are
// outflows. Unparsable amounts are coerced to zero during extraction so the
// field is always a valid decimal; records whose timestamp cannot be parsed
// are dropped during extraction, so Timestamp is always valid.
type Record struct {
	Timestamp     time.Time       `json:"timestamp" csv:"timestamp"`
	Amount        decimal.Decimal `json:"amount" csv:"amount"`
	Currency      string          `json:"currency" csv:"currency"`
	Category      string          `json:"category" csv:"category"`
	Account       string          `json:"account" csv:"account"`
	Counterparty  string          `json:"counterparty" csv:"counterparty"`
	TransactionID string          `json:"transaction_id" csv:"transaction_id"`
	RawSource     string          `json:"raw_source" csv:"raw_source"`
}

// NewRecord creates a Record with all optional fields set to Absent.
func NewRecord(timestamp time.Time, amount decimal.Decimal, rawSource string) *Record {
	return &Record{
		Timestamp:     timestamp,
		Amount:        amount,
		Currency:      Absent,
		Category:      Absent,
		Account:       Absent,
		Counterparty:  Absent,
		TransactionID: Absent,
		RawSource:     rawSource,
	}
}

// Validate checks the canonical-table invariant: a parsed timestamp and a
// non-empty source platform identifier.
func (r *Record) Validate() error {
	if r.Timestamp.IsZero() {
		return fmt.Errorf("record timestamp cannot be zero")
	}
	if strings.TrimSpace(r.RawSource) == "" {
		return fmt.Errorf("record raw source cannot be empty")
	}
	return nil
}

// String returns a compact representation for logging.
func (r *Record) String() string {
	return fmt.Sprintf("Record{Time: %s, Amount: %s, Counterparty: %q, Source: %s}",
		r.Timestamp.Format(time.RFC3339), r.Amount.String(), r.Counterparty, r.RawSource)
}

// MarshalJSON renders the amount as a decimal string and the timestamp as
// RFC3339, matching the report formats consumed downstream.
func (r *Record) MarshalJSON() ([]byte, error) {
	type Alias Record
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		Amount    string `json:"amount"`
		*Alias
	}{
		Timestamp: r.Timestamp.Format(time.RFC3339),
		Amount:    r.Amount.String(),
		Alias:     (*Alias)(r),
	})
}

// UnmarshalJSON parses the decimal-string amount and RFC3339 timestamp.
func (r *Record) UnmarshalJSON(data []byte) error {
	type Alias Record
	aux := &struct {
		Timestamp string `json:"timestamp"`
		Amount    string `json:"amount"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	r.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	r.Timestamp, err = time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid timestamp format: %w", err)
	}

	return nil
}

// Equals compares two records field by field.
func (r *Record) Equals(other *Record) bool {
	if other == nil {
		return false
	}

	return r.Timestamp.Equal(other.Timestamp) &&
		r.Amount.Equal(other.Amount) &&
		r.Currency == other.Currency &&
		r.Category == other.Category &&
		r.Account == other.Account &&
		r.Counterparty == other.Counterparty &&
		r.TransactionID == other.TransactionID &&
		r.RawSource == other.RawSource
}

// Key returns a string identity over all eight fields, used for exact
// duplicate-row elimination when tables from multiple files are merged.
func (r *Record) Key() string {
	return strings.Join([]string{
		r.Timestamp.Format(time.RFC3339Nano),
		r.Amount.String(),
		r.Currency,
		r.Category,
		r.Account,
		r.Counterparty,
		r.TransactionID,
		r.RawSource,
	}, "\x1f")
}

// IsInflow returns true if the record's amount is positive.
func (r *Record) IsInflow() bool {
	return r.Amount.IsPositive()
}

// IsOutflow returns true if the record's amount is negative.
func (r *Record) IsOutflow() bool {
	return r.Amount.IsNegative()
}

// RecordTable is an ordered collection of canonical records.
//
// Row order is an observable contract: the fuzzy matcher visits records in
// table order and pairs each with the first eligible later record, so any
// reordering between ingestion and matching changes the result.
type RecordTable []*Record

// NetAmount returns the signed sum of all amounts in the table.
func (t RecordTable) NetAmount() decimal.Decimal {
	net := decimal.Zero
	for _, r := range t {
		net = net.Add(r.Amount)
	}
	return net
}

// Deduplicate returns a new table with exact duplicate rows removed,
// keeping the first occurrence of each and preserving order.
func (t RecordTable) Deduplicate() RecordTable {
	seen := make(map[string]bool, len(t))
	result := make(RecordTable, 0, len(t))
	for _, r := range t {
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, r)
	}
	return result
}

// timestampFormats lists the layouts accepted for source timestamps, most
// specific first. Covers ISO exports, slashed dates, and the formats used
// by Chinese payment platform exports.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006年01月02日 15:04:05",
	"2006年1月2日 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006年01月02日",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseTimestamp attempts to parse a source timestamp using the accepted
// layouts. Returns an error when no layout matches; callers drop such rows.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp string cannot be empty")
	}

	var lastErr error
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", s, lastErr)
}

// currencyGlyphs lists symbols stripped before decimal parsing.
var currencyGlyphs = []string{"¥", "￥", "$", "€", "£", "元"}

// ParseAmount parses a free-text amount into a decimal, stripping thousands
// separators and currency glyphs first. Returns an error for unparsable
// input; callers decide whether to coerce to zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, ",", "")
	for _, glyph := range currencyGlyphs {
		s = strings.ReplaceAll(s, glyph, "")
	}
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format %q: %w", s, err)
	}

	return d, nil
}
