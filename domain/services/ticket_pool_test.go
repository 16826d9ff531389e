package services

import (
	"testing"

	"raffler/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTicketPool_ScenarioLayout(t *testing.T) {
	t.Parallel()

	pool, err := BuildTicketPool(scenarioEntries())
	require.NoError(t, err)

	assert.Equal(t, int64(10), pool.Size())
	assert.Equal(t, 3, pool.DistinctWallets())

	want := []string{"A", "A", "A", "A", "A", "B", "B", "B", "C", "C"}
	for i, owner := range want {
		got, err := pool.Owner(int64(i))
		require.NoError(t, err)
		assert.Equal(t, owner, got, "index %d", i)
	}

	ticket, err := pool.Ticket(6)
	require.NoError(t, err)
	assert.Equal(t, entities.Ticket{Index: 6, Owner: "B", EntryID: 2}, ticket)
}

func TestBuildTicketPool_SizeIsSumOfLiveUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		entries  []*entities.Entry
		refunded map[int]bool
		want     int64
	}{
		{
			name:    "single entry",
			entries: makeEntries(1, walletUnits{"A", 7}),
			want:    7,
		},
		{
			name:    "many entries",
			entries: makeEntries(1, walletUnits{"A", 1}, walletUnits{"B", 2}, walletUnits{"A", 3}, walletUnits{"C", 4}),
			want:    10,
		},
		{
			name:     "refunded entries are skipped",
			entries:  makeEntries(1, walletUnits{"A", 1}, walletUnits{"B", 2}, walletUnits{"C", 4}),
			refunded: map[int]bool{1: true},
			want:     5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for i := range tt.entries {
				tt.entries[i].Refunded = tt.refunded[i]
			}
			pool, err := BuildTicketPool(tt.entries)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pool.Size())
			assert.Len(t, pool.Tickets(), int(tt.want))
		})
	}
}

func TestBuildTicketPool_OrdersByCreationThenID(t *testing.T) {
	t.Parallel()

	entries := makeEntries(1, walletUnits{"A", 2}, walletUnits{"B", 1}, walletUnits{"C", 1})
	// C shares B's timestamp but has the higher ID; A is newest
	entries[2].CreatedAt = entries[1].CreatedAt
	entries[0].CreatedAt = entries[2].CreatedAt.Add(1)
	shuffled := []*entities.Entry{entries[0], entries[2], entries[1]}

	pool, err := BuildTicketPool(shuffled)
	require.NoError(t, err)

	var owners []string
	for _, ticket := range pool.Tickets() {
		owners = append(owners, ticket.Owner)
	}
	assert.Equal(t, []string{"B", "C", "A", "A"}, owners)
}

func TestBuildTicketPool_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := BuildTicketPool(scenarioEntries())
	require.NoError(t, err)
	second, err := BuildTicketPool(scenarioEntries())
	require.NoError(t, err)

	assert.Equal(t, first.Tickets(), second.Tickets())
}

func TestBuildTicketPool_Empty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []*entities.Entry
	}{
		{name: "no entries", entries: nil},
		{name: "all refunded", entries: func() []*entities.Entry {
			entries := scenarioEntries()
			for _, e := range entries {
				e.Refunded = true
			}
			return entries
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool, err := BuildTicketPool(tt.entries)
			assert.Nil(t, pool)
			assert.ErrorIs(t, err, entities.ErrEmptyPool)
		})
	}
}

func TestTicketPool_OutOfRange(t *testing.T) {
	t.Parallel()

	pool, err := BuildTicketPool(scenarioEntries())
	require.NoError(t, err)

	_, err = pool.Ticket(10)
	assert.Error(t, err)
	_, err = pool.Owner(-1)
	assert.Error(t, err)
}
