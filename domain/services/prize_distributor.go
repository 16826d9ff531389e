package services

import (
	"raffler/domain/entities"
)

// PrizeAllocation is the prize assigned to one winner position
type PrizeAllocation struct {
	Position  int
	TierLabel string
	Amount    int64
}

// DefaultPrizeTiers returns the built-in tier table for winner counts that
// have one, or nil when prizes are split evenly.
func DefaultPrizeTiers(winnerCount int) []entities.PrizeTier {
	switch winnerCount {
	case 1:
		return []entities.PrizeTier{{Label: "1st", Percentage: 100, WinnerCount: 1}}
	case 2:
		return []entities.PrizeTier{
			{Label: "1st", Percentage: 60, WinnerCount: 1},
			{Label: "2nd", Percentage: 40, WinnerCount: 1},
		}
	case 3:
		return []entities.PrizeTier{
			{Label: "1st", Percentage: 50, WinnerCount: 1},
			{Label: "2nd", Percentage: 30, WinnerCount: 1},
			{Label: "3rd", Percentage: 20, WinnerCount: 1},
		}
	default:
		return nil
	}
}

// DistributePrizes splits total across winnerCount positions. Each tier
// receives floor(total * bps / 10000), divided evenly and floored across
// its winners. Whatever is left after flooring is not redistributed.
func DistributePrizes(total int64, winnerCount int, tiers []entities.PrizeTier) ([]PrizeAllocation, error) {
	if winnerCount <= 0 {
		return nil, entities.NewInvalidConfigurationError("winner count must be positive")
	}
	if total < 0 {
		return nil, entities.NewInvalidConfigurationError("prize pool cannot be negative")
	}

	if len(tiers) == 0 {
		tiers = DefaultPrizeTiers(winnerCount)
		if tiers == nil {
			return evenSplit(total, winnerCount), nil
		}
	} else if err := entities.ValidatePrizeTiers(tiers, winnerCount); err != nil {
		return nil, err
	}

	allocations := make([]PrizeAllocation, 0, winnerCount)
	remaining := total
	position := 1
	for _, tier := range tiers {
		share := shareOf(total, tier.BasisPoints())
		if share > remaining {
			share = remaining
		}
		each := share / int64(tier.WinnerCount)
		for i := 0; i < tier.WinnerCount; i++ {
			allocations = append(allocations, PrizeAllocation{
				Position:  position,
				TierLabel: tier.Label,
				Amount:    each,
			})
			remaining -= each
			position++
		}
	}
	return allocations, nil
}

func evenSplit(total int64, winnerCount int) []PrizeAllocation {
	each := total / int64(winnerCount)
	allocations := make([]PrizeAllocation, winnerCount)
	for i := range allocations {
		allocations[i] = PrizeAllocation{
			Position:  i + 1,
			TierLabel: entities.OrdinalLabel(i + 1),
			Amount:    each,
		}
	}
	return allocations
}

// shareOf returns floor(amount * bps / 10000) without overflowing
func shareOf(amount, bps int64) int64 {
	return amount/entities.FullBasisPoints*bps + amount%entities.FullBasisPoints*bps/entities.FullBasisPoints
}
