package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRaffle(opts ...func(*Raffle)) *Raffle {
	raffle := &Raffle{
		ID:              1,
		Type:            RaffleTypeStandard,
		Title:           "Spring raffle",
		EntryPrice:      100,
		StartTime:       testNow.Add(-24 * time.Hour),
		EndTime:         testNow.Add(24 * time.Hour),
		WinnerCount:     3,
		PrizeTiers:      []PrizeTier{{"1st", 50, 1}, {"2nd", 30, 1}, {"3rd", 20, 1}},
		RandomnessMode:  RandomnessModeVerifiable,
		OneWinPerWallet: true,
		Status:          RaffleStatusActive,
	}
	for _, opt := range opts {
		opt(raffle)
	}
	return raffle
}

func TestRaffleStatus_TransitionClosure(t *testing.T) {
	t.Parallel()

	allowed := map[RaffleStatus][]RaffleStatus{
		RaffleStatusScheduled: {RaffleStatusActive, RaffleStatusCancelled},
		RaffleStatusActive:    {RaffleStatusPaused, RaffleStatusEnding, RaffleStatusCancelled},
		RaffleStatusPaused:    {RaffleStatusActive, RaffleStatusEnding, RaffleStatusCancelled},
		RaffleStatusEnding:    {RaffleStatusDrawing, RaffleStatusCancelled},
		RaffleStatusDrawing:   {RaffleStatusCompleted, RaffleStatusCancelled},
	}

	for _, from := range AllRaffleStatuses() {
		for _, to := range AllRaffleStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			raffle := newTestRaffle(func(r *Raffle) { r.Status = from })
			err := raffle.TransitionTo(to)
			if want {
				assert.NoError(t, err, "%s -> %s should be allowed", from, to)
				assert.Equal(t, to, raffle.Status)
			} else {
				require.Error(t, err, "%s -> %s should be rejected", from, to)
				assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
				assert.Contains(t, err.Error(), string(from))
				assert.Contains(t, err.Error(), string(to))
				assert.Equal(t, from, raffle.Status, "rejected transition must not mutate status")
			}
		}
	}
}

func TestRaffleStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range AllRaffleStatuses() {
		want := s == RaffleStatusCompleted || s == RaffleStatusCancelled
		assert.Equal(t, want, s.IsTerminal(), string(s))
		if want {
			assert.Empty(t, s.AllowedTransitions())
		}
	}
	assert.False(t, RaffleStatus("bogus").IsValid())
}

func TestRaffle_CanAcceptEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      RaffleStatus
		now         time.Time
		errContains string
	}{
		{name: "active inside window", status: RaffleStatusActive, now: testNow},
		{name: "exactly at start", status: RaffleStatusActive, now: testNow.Add(-24 * time.Hour)},
		{name: "exactly at end is closed", status: RaffleStatusActive, now: testNow.Add(24 * time.Hour), errContains: "closed"},
		{name: "before start", status: RaffleStatusActive, now: testNow.Add(-48 * time.Hour), errContains: "not started"},
		{name: "paused", status: RaffleStatusPaused, now: testNow, errContains: "paused"},
		{name: "drawing", status: RaffleStatusDrawing, now: testNow, errContains: "drawing"},
		{name: "scheduled", status: RaffleStatusScheduled, now: testNow, errContains: "scheduled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raffle := newTestRaffle(func(r *Raffle) { r.Status = tt.status })
			err := raffle.CanAcceptEntries(tt.now)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, ErrorKindEntryRejected, KindOf(err))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRaffle_CheckDrawable(t *testing.T) {
	t.Parallel()

	afterEnd := testNow.Add(48 * time.Hour)

	tests := []struct {
		name     string
		status   RaffleStatus
		now      time.Time
		poolSize int64
		reason   DrawIneligibility
	}{
		{name: "active after end", status: RaffleStatusActive, now: afterEnd, poolSize: 5},
		{name: "ending after end", status: RaffleStatusEnding, now: afterEnd, poolSize: 1},
		{name: "not ended", status: RaffleStatusActive, now: testNow, poolSize: 5, reason: DrawReasonNotEnded},
		{name: "already completed", status: RaffleStatusCompleted, now: afterEnd, poolSize: 5, reason: DrawReasonAlreadyDrawn},
		{name: "already drawing", status: RaffleStatusDrawing, now: afterEnd, poolSize: 5, reason: DrawReasonAlreadyDrawn},
		{name: "cancelled", status: RaffleStatusCancelled, now: afterEnd, poolSize: 5, reason: DrawReasonCancelled},
		{name: "paused", status: RaffleStatusPaused, now: afterEnd, poolSize: 5, reason: DrawReasonNotOpen},
		{name: "no entries", status: RaffleStatusEnding, now: afterEnd, poolSize: 0, reason: DrawReasonNoEntries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raffle := newTestRaffle(func(r *Raffle) { r.Status = tt.status })
			err := raffle.CheckDrawable(tt.now, tt.poolSize)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRaffleNotDrawable))
			assert.Contains(t, err.Error(), string(tt.reason))
		})
	}
}

func TestRaffle_CloseEntriesPullsEndTimeForward(t *testing.T) {
	t.Parallel()

	raffle := newTestRaffle()
	require.NoError(t, raffle.CloseEntries(testNow))
	assert.Equal(t, RaffleStatusEnding, raffle.Status)
	assert.Equal(t, testNow, raffle.EndTime)
	assert.NoError(t, raffle.CheckDrawable(testNow, 1))

	late := newTestRaffle(func(r *Raffle) { r.EndTime = testNow.Add(-time.Hour) })
	require.NoError(t, late.CloseEntries(testNow))
	assert.Equal(t, testNow.Add(-time.Hour), late.EndTime, "end time is never pushed back")

	drawing := newTestRaffle(func(r *Raffle) { r.Status = RaffleStatusDrawing })
	assert.Error(t, drawing.CloseEntries(testNow))
}

func TestRaffle_ValidatePurchase(t *testing.T) {
	t.Parallel()

	raffle := newTestRaffle()

	assert.NoError(t, raffle.ValidatePurchase(5, 500))
	assert.Error(t, raffle.ValidatePurchase(0, 0))
	assert.Error(t, raffle.ValidatePurchase(5, 499))
	assert.Error(t, raffle.ValidatePurchase(5, 501))
	assert.Error(t, raffle.ValidatePurchase(1<<62, 0), "overflowing purchase must be rejected")
}

func TestRaffle_RecordEntry(t *testing.T) {
	t.Parallel()

	raffle := newTestRaffle()
	raffle.RecordEntry(5, 500, true)
	raffle.RecordEntry(3, 300, true)
	raffle.RecordEntry(2, 200, false)

	assert.Equal(t, int64(10), raffle.TotalEntries)
	assert.Equal(t, int64(1000), raffle.PoolValue)
	assert.Equal(t, int64(2), raffle.TotalParticipants)
}

func TestRaffle_PrizePool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raffle *Raffle
		want   int64
	}{
		{
			name:   "standard without fee",
			raffle: newTestRaffle(func(r *Raffle) { r.PoolValue = 1000 }),
			want:   1000,
		},
		{
			name:   "standard with 10 percent fee",
			raffle: newTestRaffle(func(r *Raffle) { r.PoolValue = 1000; r.PlatformFeeBps = 1000 }),
			want:   900,
		},
		{
			name:   "fee floors in favour of winners",
			raffle: newTestRaffle(func(r *Raffle) { r.PoolValue = 999; r.PlatformFeeBps = 250 }),
			want:   975,
		},
		{
			name: "fixed prize ignores pool",
			raffle: newTestRaffle(func(r *Raffle) {
				r.Type = RaffleTypeFixedPrize
				r.FixedPrizeAmount = 5000
				r.PoolValue = 1000
			}),
			want: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.raffle.PrizePool())
		})
	}
}

func TestRaffle_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*Raffle)
		errContains string
	}{
		{name: "valid", mutate: func(r *Raffle) {}},
		{name: "valid without tiers", mutate: func(r *Raffle) { r.PrizeTiers = nil }},
		{name: "missing title", mutate: func(r *Raffle) { r.Title = " " }, errContains: "title"},
		{name: "unknown type", mutate: func(r *Raffle) { r.Type = "lottery" }, errContains: "raffle type"},
		{name: "unknown mode", mutate: func(r *Raffle) { r.RandomnessMode = "" }, errContains: "randomness mode"},
		{name: "zero price", mutate: func(r *Raffle) { r.EntryPrice = 0 }, errContains: "entry price"},
		{name: "end before start", mutate: func(r *Raffle) { r.EndTime = r.StartTime }, errContains: "end time"},
		{name: "no winners", mutate: func(r *Raffle) { r.WinnerCount = 0; r.PrizeTiers = nil }, errContains: "winner count"},
		{name: "fee too high", mutate: func(r *Raffle) { r.PlatformFeeBps = 10001 }, errContains: "platform fee"},
		{name: "fixed without amount", mutate: func(r *Raffle) { r.Type = RaffleTypeFixedPrize }, errContains: "fixed prize"},
		{name: "tiers mismatch winners", mutate: func(r *Raffle) { r.WinnerCount = 4 }, errContains: "winner counts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raffle := newTestRaffle(tt.mutate)
			err := raffle.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, ErrorKindInvalidConfiguration, KindOf(err))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRaffle_CommitSeed(t *testing.T) {
	t.Parallel()

	blockNumber := int64(5000)
	blockHash := "aa"
	seed := &Seed{Value: "aa", Mode: RandomnessModeVerifiable, BlockNumber: &blockNumber, BlockHash: &blockHash}

	active := newTestRaffle()
	assert.Error(t, active.CommitSeed(seed), "seed can only be committed while drawing")

	raffle := newTestRaffle(func(r *Raffle) { r.Status = RaffleStatusDrawing })
	require.NoError(t, raffle.CommitSeed(seed))
	require.True(t, raffle.HasCommittedSeed())

	other := &Seed{Value: "bb", Mode: RandomnessModeVerifiable}
	require.NoError(t, raffle.CommitSeed(other))
	committed := raffle.CommittedSeed()
	require.NotNil(t, committed)
	assert.Equal(t, "aa", committed.Value, "first committed seed is kept")
	assert.Equal(t, &blockNumber, committed.BlockNumber)

	opaque := newTestRaffle(func(r *Raffle) { r.Status = RaffleStatusDrawing })
	assert.Error(t, opaque.CommitSeed(&Seed{Value: "cc", Mode: RandomnessModeOpaque}))
}
