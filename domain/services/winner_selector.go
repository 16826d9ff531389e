package services

import (
	"math"
	"sort"

	"raffler/domain/entities"
)

// maxDrawsPerTicket bounds rejection sampling so a pathological pool cannot
// spin forever
const maxDrawsPerTicket = 64

// SelectionInput is everything winner selection depends on
type SelectionInput struct {
	Pool            *TicketPool
	PrizePool       int64
	WinnerCount     int
	Tiers           []entities.PrizeTier
	Seed            string
	OneWinPerWallet bool
}

// SelectedWinner is one winning ticket with its prize
type SelectedWinner struct {
	Position  int
	Ticket    entities.Ticket
	TierLabel string
	Amount    int64
}

// Selection is the outcome of a draw
type Selection struct {
	Winners          []SelectedWinner
	TotalTickets     int64
	TotalDistributed int64
	// Draws counts raw values consumed from the sequence, rejections included
	Draws uint64
}

// CheckCapacity returns an InsufficientTickets error when the pool cannot
// yield winnerCount distinct winners
func CheckCapacity(pool *TicketPool, winnerCount int, oneWinPerWallet bool) error {
	if pool == nil {
		return entities.NewEmptyPoolError()
	}
	need := int64(winnerCount)
	if size := pool.Size(); need > size {
		return entities.NewInsufficientTicketsError(need, size)
	}
	if wallets := int64(pool.DistinctWallets()); oneWinPerWallet && need > wallets {
		return entities.NewInsufficientTicketsError(need, wallets)
	}
	return nil
}

// SelectWinners draws WinnerCount distinct tickets from the pool using the
// seeded sequence. Indices already chosen are redrawn, as are indices owned
// by an already selected wallet when OneWinPerWallet is set. The chosen
// indices are sorted ascending and prizes are assigned positionally.
// The result depends only on the input.
func SelectWinners(in SelectionInput) (*Selection, error) {
	if in.Pool == nil || in.Pool.Size() == 0 {
		return nil, entities.NewEmptyPoolError()
	}
	if in.WinnerCount <= 0 {
		return nil, entities.NewInvalidConfigurationError("winner count must be positive")
	}

	if err := CheckCapacity(in.Pool, in.WinnerCount, in.OneWinPerWallet); err != nil {
		return nil, err
	}
	size := in.Pool.Size()
	need := int64(in.WinnerCount)

	allocations, err := DistributePrizes(in.PrizePool, in.WinnerCount, in.Tiers)
	if err != nil {
		return nil, err
	}

	seq, err := NewSequence(in.Seed)
	if err != nil {
		return nil, err
	}

	maxDraws := uint64(math.MaxUint64)
	if size < (math.MaxInt64-1024)/maxDrawsPerTicket {
		maxDraws = uint64(size*maxDrawsPerTicket + 1024)
	}

	chosen := make(map[int64]struct{}, in.WinnerCount)
	wallets := make(map[string]struct{}, in.WinnerCount)
	indices := make([]int64, 0, in.WinnerCount)
	for int64(len(indices)) < need {
		if seq.Draws() >= maxDraws {
			return nil, entities.NewInsufficientTicketsError(need, int64(len(indices)))
		}
		index, err := seq.NextUniformInt(0, size)
		if err != nil {
			return nil, err
		}
		if _, dup := chosen[index]; dup {
			continue
		}
		if in.OneWinPerWallet {
			owner, err := in.Pool.Owner(index)
			if err != nil {
				return nil, err
			}
			if _, won := wallets[owner]; won {
				continue
			}
			wallets[owner] = struct{}{}
		}
		chosen[index] = struct{}{}
		indices = append(indices, index)
	}

	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	selection := &Selection{
		Winners:      make([]SelectedWinner, 0, len(indices)),
		TotalTickets: size,
		Draws:        seq.Draws(),
	}
	for i, index := range indices {
		ticket, err := in.Pool.Ticket(index)
		if err != nil {
			return nil, err
		}
		alloc := allocations[i]
		selection.Winners = append(selection.Winners, SelectedWinner{
			Position:  alloc.Position,
			Ticket:    ticket,
			TierLabel: alloc.TierLabel,
			Amount:    alloc.Amount,
		})
		selection.TotalDistributed += alloc.Amount
	}
	return selection, nil
}
