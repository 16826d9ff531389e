package services

import (
	"fmt"
	"math"
	"sort"

	"raffler/domain/entities"
)

// TicketPool is the ordered set of tickets a draw selects from. Each entry
// contributes Units consecutive indices; the pool stores one cumulative
// bound per entry and resolves an index by binary search instead of
// allocating a slot per unit.
type TicketPool struct {
	entries []*entities.Entry
	// ends[i] is the exclusive upper index of entries[i]
	ends    []int64
	size    int64
	wallets int
}

// BuildTicketPool projects the non-refunded entries of one raffle into a
// ticket pool. Entries are ordered by creation time, ties broken by ID, so
// the same entry set always yields the same pool.
func BuildTicketPool(entries []*entities.Entry) (*TicketPool, error) {
	live := make([]*entities.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Refunded || entry.Units <= 0 {
			continue
		}
		live = append(live, entry)
	}

	sort.SliceStable(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.Before(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})

	pool := &TicketPool{
		entries: live,
		ends:    make([]int64, len(live)),
	}
	seen := make(map[string]struct{})
	for i, entry := range live {
		if entry.Units > math.MaxInt64-pool.size {
			return nil, entities.NewInvalidConfigurationError("ticket pool exceeds %d tickets", int64(math.MaxInt64))
		}
		pool.size += entry.Units
		pool.ends[i] = pool.size
		seen[entry.Wallet] = struct{}{}
	}
	pool.wallets = len(seen)

	if pool.size == 0 {
		return nil, entities.NewEmptyPoolError()
	}
	return pool, nil
}

// Size returns the number of tickets in the pool
func (p *TicketPool) Size() int64 {
	return p.size
}

// DistinctWallets returns how many different wallets own tickets
func (p *TicketPool) DistinctWallets() int {
	return p.wallets
}

// Entries returns the entries backing the pool in pool order
func (p *TicketPool) Entries() []*entities.Entry {
	out := make([]*entities.Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Ticket resolves index to its ticket
func (p *TicketPool) Ticket(index int64) (entities.Ticket, error) {
	if index < 0 || index >= p.size {
		return entities.Ticket{}, fmt.Errorf("ticket index %d out of range [0, %d)", index, p.size)
	}
	i := sort.Search(len(p.ends), func(i int) bool { return p.ends[i] > index })
	entry := p.entries[i]
	return entities.Ticket{Index: index, Owner: entry.Wallet, EntryID: entry.ID}, nil
}

// Owner returns the wallet owning index
func (p *TicketPool) Owner(index int64) (string, error) {
	ticket, err := p.Ticket(index)
	if err != nil {
		return "", err
	}
	return ticket.Owner, nil
}

// Tickets materializes every ticket in index order
func (p *TicketPool) Tickets() []entities.Ticket {
	tickets := make([]entities.Ticket, 0, p.size)
	var index int64
	for _, entry := range p.entries {
		for u := int64(0); u < entry.Units; u++ {
			tickets = append(tickets, entities.Ticket{Index: index, Owner: entry.Wallet, EntryID: entry.ID})
			index++
		}
	}
	return tickets
}
