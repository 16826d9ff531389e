package testutil

import (
	"fmt"
	"time"

	"raffler/domain/entities"

	"github.com/google/uuid"
)

// CreateTestRaffle creates an active standard raffle open for the next day
func CreateTestRaffle(title string) *entities.Raffle {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entities.Raffle{
		Type:            entities.RaffleTypeStandard,
		Title:           title,
		EntryPrice:      100,
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(24 * time.Hour),
		WinnerCount:     1,
		PlatformFeeBps:  250,
		RandomnessMode:  entities.RandomnessModeOpaque,
		OneWinPerWallet: true,
		Status:          entities.RaffleStatusActive,
	}
}

// CreateTestEntry creates an entry paying the test raffle price per unit
func CreateTestEntry(raffleID int64, wallet string, units int64) *entities.Entry {
	return &entities.Entry{
		RaffleID:       raffleID,
		Wallet:         wallet,
		Units:          units,
		AmountPaid:     units * 100,
		TransferTxHash: fmt.Sprintf("tx-%s", uuid.NewString()),
	}
}

// CreateTestDrawResult creates an opaque draw result for a raffle
func CreateTestDrawResult(raffleID int64, totalTickets, prizePool int64) *entities.DrawResult {
	return &entities.DrawResult{
		RaffleID:              raffleID,
		Seed:                  "0000000000000000000000000000000000000000000000000000000000000000",
		RandomnessMode:        entities.RandomnessModeOpaque,
		TotalTickets:          totalTickets,
		PrizePool:             prizePool,
		TotalPrizeDistributed: prizePool,
	}
}

// CreateTestWinner creates a pending first-place winner for an entry
func CreateTestWinner(result *entities.DrawResult, entry *entities.Entry, ticketIndex int64) *entities.Winner {
	return &entities.Winner{
		RaffleID:     result.RaffleID,
		DrawResultID: result.ID,
		Position:     1,
		Wallet:       entry.Wallet,
		TicketIndex:  ticketIndex,
		TotalTickets: result.TotalTickets,
		EntryID:      entry.ID,
		TierLabel:    "1st",
		PrizeAmount:  result.PrizePool,
		PayoutStatus: entities.PayoutStatusPending,
	}
}
