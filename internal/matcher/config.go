package matcher

import (
	"fmt"
	"time"

	apperrors "crossledger-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// MatchConfig holds the four thresholds that govern pairwise matching.
//
// Two records are eligible partners only when their amounts differ by at
// most AmountTolerance, their timestamps by at most TimeWindow, and their
// counterparty similarity reaches NameSimilarityThreshold. Eligible pairs
// at or above HighConfidenceThreshold become matched; below it they become
// suspected duplicates.
type MatchConfig struct {
	// AmountTolerance is the maximum absolute amount difference for two
	// records to be considered the same transaction.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// TimeWindow is the maximum timestamp difference for two records to be
	// considered the same transaction.
	TimeWindow time.Duration `json:"time_window"`

	// NameSimilarityThreshold is the minimum counterparty similarity, in
	// [0,1], for a pair to be eligible at all.
	NameSimilarityThreshold float64 `json:"name_similarity_threshold"`

	// HighConfidenceThreshold is the similarity, in [0,1], at or above
	// which an eligible pair is promoted from suspected duplicate to
	// matched. The boundary is inclusive.
	HighConfidenceThreshold float64 `json:"high_confidence_threshold"`
}

// DefaultMatchConfig returns the standard thresholds: one cent of amount
// tolerance, a five minute window, 0.6 minimum name similarity, and 0.9
// high-confidence promotion.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		AmountTolerance:         decimal.NewFromFloat(0.01),
		TimeWindow:              5 * time.Minute,
		NameSimilarityThreshold: 0.6,
		HighConfidenceThreshold: 0.9,
	}
}

// StrictMatchConfig returns thresholds for exact-leaning reconciliation:
// zero amount tolerance, a one minute window, and near-identical names.
func StrictMatchConfig() *MatchConfig {
	return &MatchConfig{
		AmountTolerance:         decimal.Zero,
		TimeWindow:              time.Minute,
		NameSimilarityThreshold: 0.85,
		HighConfidenceThreshold: 0.95,
	}
}

// RelaxedMatchConfig returns thresholds for exploratory matching across
// noisier exports.
func RelaxedMatchConfig() *MatchConfig {
	return &MatchConfig{
		AmountTolerance:         decimal.NewFromFloat(0.05),
		TimeWindow:              30 * time.Minute,
		NameSimilarityThreshold: 0.4,
		HighConfidenceThreshold: 0.8,
	}
}

// Validate checks that all thresholds are in range and mutually coherent.
func (mc *MatchConfig) Validate() error {
	if mc.AmountTolerance.IsNegative() {
		return apperrors.ConfigError("amount_tolerance", mc.AmountTolerance.String(),
			fmt.Errorf("amount tolerance cannot be negative"))
	}

	if mc.TimeWindow < 0 {
		return apperrors.ConfigError("time_window", mc.TimeWindow.String(),
			fmt.Errorf("time window cannot be negative"))
	}

	if mc.NameSimilarityThreshold < 0.0 || mc.NameSimilarityThreshold > 1.0 {
		return apperrors.ConfigError("name_similarity_threshold", mc.NameSimilarityThreshold,
			fmt.Errorf("similarity threshold must be between 0.0 and 1.0"))
	}

	if mc.HighConfidenceThreshold < 0.0 || mc.HighConfidenceThreshold > 1.0 {
		return apperrors.ConfigError("high_confidence_threshold", mc.HighConfidenceThreshold,
			fmt.Errorf("high confidence threshold must be between 0.0 and 1.0"))
	}

	if mc.HighConfidenceThreshold < mc.NameSimilarityThreshold {
		return apperrors.ConfigError("high_confidence_threshold", mc.HighConfidenceThreshold,
			fmt.Errorf("high confidence threshold cannot be below the name similarity threshold"))
	}

	return nil
}

// Clone creates a copy of the configuration.
func (mc *MatchConfig) Clone() *MatchConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration.
func (mc *MatchConfig) String() string {
	return fmt.Sprintf("MatchConfig{AmountTolerance: %s, TimeWindow: %s, NameThreshold: %.2f, HighConfidence: %.2f}",
		mc.AmountTolerance.String(), mc.TimeWindow, mc.NameSimilarityThreshold, mc.HighConfidenceThreshold)
}
