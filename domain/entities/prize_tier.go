package entities

import (
	"fmt"
	"math"
	"strings"
)

// PercentageEpsilon is the tolerance when checking that tier percentages sum
// to 100. Sums are compared in basis points, where it is exactly one unit.
const PercentageEpsilon = 0.01

const percentageEpsilonBps = 1

// FullBasisPoints is 100% expressed in basis points
const FullBasisPoints = 10000

// PrizeTier is a ranked prize bracket
type PrizeTier struct {
	Label       string  `json:"label"`
	Percentage  float64 `json:"percentage"`
	WinnerCount int     `json:"winner_count"`
}

// BasisPoints converts the percentage to integer basis points (1% = 100 bps)
func (t PrizeTier) BasisPoints() int64 {
	return int64(math.Round(t.Percentage * 100))
}

// ValidatePrizeTiers checks a tier table against the raffle's winner count.
// Percentages must sum to 100 within PercentageEpsilon and tier winner
// counts must sum to winnerCount.
func ValidatePrizeTiers(tiers []PrizeTier, winnerCount int) error {
	if len(tiers) == 0 {
		return NewInvalidConfigurationError("prize tier table is empty")
	}

	var totalBps int64
	totalWinners := 0
	seen := make(map[string]bool, len(tiers))
	for i, tier := range tiers {
		label := strings.TrimSpace(tier.Label)
		if label == "" {
			return NewInvalidConfigurationError("tier %d has no label", i+1)
		}
		if seen[label] {
			return NewInvalidConfigurationError("duplicate tier label %q", label)
		}
		seen[label] = true
		if tier.Percentage <= 0 || math.IsNaN(tier.Percentage) || math.IsInf(tier.Percentage, 0) || tier.BasisPoints() <= 0 {
			return NewInvalidConfigurationError("tier %q percentage must be positive", label)
		}
		if tier.WinnerCount <= 0 {
			return NewInvalidConfigurationError("tier %q winner count must be positive", label)
		}
		totalBps += tier.BasisPoints()
		totalWinners += tier.WinnerCount
	}

	if diff := totalBps - FullBasisPoints; diff > percentageEpsilonBps || diff < -percentageEpsilonBps {
		return NewInvalidConfigurationError("tier percentages sum to %.2f, expected 100", float64(totalBps)/100)
	}
	if totalWinners != winnerCount {
		return NewInvalidConfigurationError("tier winner counts sum to %d, expected %d", totalWinners, winnerCount)
	}
	return nil
}

// OrdinalLabel returns "1st", "2nd", "3rd", "4th"... for a 1-based position
func OrdinalLabel(position int) string {
	suffix := "th"
	switch position % 100 {
	case 11, 12, 13:
	default:
		switch position % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", position, suffix)
}
