package entities

import (
	"math"
	"strings"
	"time"
)

// RaffleStatus represents the state of a raffle
type RaffleStatus string

const (
	RaffleStatusScheduled RaffleStatus = "scheduled"
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusEnding    RaffleStatus = "ending"
	RaffleStatusPaused    RaffleStatus = "paused"
	RaffleStatusDrawing   RaffleStatus = "drawing"
	RaffleStatusCompleted RaffleStatus = "completed"
	RaffleStatusCancelled RaffleStatus = "cancelled"
)

// raffleTransitions lists the only legal next states for each status
var raffleTransitions = map[RaffleStatus][]RaffleStatus{
	RaffleStatusScheduled: {RaffleStatusActive, RaffleStatusCancelled},
	RaffleStatusActive:    {RaffleStatusPaused, RaffleStatusEnding, RaffleStatusCancelled},
	RaffleStatusPaused:    {RaffleStatusActive, RaffleStatusEnding, RaffleStatusCancelled},
	RaffleStatusEnding:    {RaffleStatusDrawing, RaffleStatusCancelled},
	RaffleStatusDrawing:   {RaffleStatusCompleted, RaffleStatusCancelled},
	RaffleStatusCompleted: {},
	RaffleStatusCancelled: {},
}

// AllRaffleStatuses returns every raffle status
func AllRaffleStatuses() []RaffleStatus {
	return []RaffleStatus{
		RaffleStatusScheduled,
		RaffleStatusActive,
		RaffleStatusEnding,
		RaffleStatusPaused,
		RaffleStatusDrawing,
		RaffleStatusCompleted,
		RaffleStatusCancelled,
	}
}

// IsValid reports whether s is a known status
func (s RaffleStatus) IsValid() bool {
	_, ok := raffleTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible
func (s RaffleStatus) IsTerminal() bool {
	return s == RaffleStatusCompleted || s == RaffleStatusCancelled
}

// AllowedTransitions returns the legal next statuses
func (s RaffleStatus) AllowedTransitions() []RaffleStatus {
	next := raffleTransitions[s]
	out := make([]RaffleStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether moving to next is legal
func (s RaffleStatus) CanTransitionTo(next RaffleStatus) bool {
	for _, allowed := range raffleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RaffleType determines how the prize pool is funded
type RaffleType string

const (
	// RaffleTypeStandard pays out the ticket pool value minus the platform fee
	RaffleTypeStandard RaffleType = "standard"
	// RaffleTypeFixedPrize pays out an operator-funded fixed amount
	RaffleTypeFixedPrize RaffleType = "fixed_prize"
)

// RandomnessMode selects where a raffle's draw seed comes from
type RandomnessMode string

const (
	// RandomnessModeVerifiable seeds from a finalized settlement chain block hash
	RandomnessModeVerifiable RandomnessMode = "verifiable"
	// RandomnessModeOpaque seeds from a locally generated secure random value
	RandomnessModeOpaque RandomnessMode = "opaque"
)

// IsValid reports whether m is a known randomness mode
func (m RandomnessMode) IsValid() bool {
	return m == RandomnessModeVerifiable || m == RandomnessModeOpaque
}

// MaxPlatformFeeBps caps the platform fee at the whole pool
const MaxPlatformFeeBps = FullBasisPoints

// Raffle represents a time-boxed raffle
type Raffle struct {
	ID                int64          `json:"id"`
	Type              RaffleType     `json:"type"`
	Title             string         `json:"title"`
	EntryPrice        int64          `json:"entry_price"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	WinnerCount       int            `json:"winner_count"`
	PrizeTiers        []PrizeTier    `json:"prize_tiers"`
	PlatformFeeBps    int64          `json:"platform_fee_bps"`
	FixedPrizeAmount  int64          `json:"fixed_prize_amount"`
	RandomnessMode    RandomnessMode `json:"randomness_mode"`
	OneWinPerWallet   bool           `json:"one_win_per_wallet"`
	TotalEntries      int64          `json:"total_entries"`
	TotalParticipants int64          `json:"total_participants"`
	PoolValue         int64          `json:"pool_value"`
	Status            RaffleStatus   `json:"status"`

	// Seed committed before winner selection so a crashed draw resumes with it
	PendingSeed        *string `json:"pending_seed,omitempty"`
	PendingBlockNumber *int64  `json:"pending_block_number,omitempty"`
	PendingBlockHash   *string `json:"pending_block_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the raffle's configuration
func (r *Raffle) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return NewInvalidConfigurationError("title is required")
	}
	switch r.Type {
	case RaffleTypeStandard, RaffleTypeFixedPrize:
	default:
		return NewInvalidConfigurationError("unknown raffle type %q", r.Type)
	}
	if !r.RandomnessMode.IsValid() {
		return NewInvalidConfigurationError("randomness mode must be %q or %q", RandomnessModeVerifiable, RandomnessModeOpaque)
	}
	if r.EntryPrice <= 0 {
		return NewInvalidConfigurationError("entry price must be positive")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return NewInvalidConfigurationError("start and end time are required")
	}
	if !r.EndTime.After(r.StartTime) {
		return NewInvalidConfigurationError("end time must be after start time")
	}
	if r.WinnerCount <= 0 {
		return NewInvalidConfigurationError("winner count must be positive")
	}
	if r.PlatformFeeBps < 0 || r.PlatformFeeBps > MaxPlatformFeeBps {
		return NewInvalidConfigurationError("platform fee must be between 0 and %d bps", MaxPlatformFeeBps)
	}
	if r.Type == RaffleTypeFixedPrize && r.FixedPrizeAmount <= 0 {
		return NewInvalidConfigurationError("fixed prize raffles need a positive prize amount")
	}
	if r.Type == RaffleTypeStandard && r.FixedPrizeAmount != 0 {
		return NewInvalidConfigurationError("standard raffles cannot set a fixed prize amount")
	}
	if len(r.PrizeTiers) > 0 {
		if err := ValidatePrizeTiers(r.PrizeTiers, r.WinnerCount); err != nil {
			return err
		}
	}
	return nil
}

// TransitionTo moves the raffle to next if the state machine allows it
func (r *Raffle) TransitionTo(next RaffleStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return NewInvalidStatusTransitionError(r.Status, next)
	}
	r.Status = next
	return nil
}

// IsInEntryWindow reports whether now falls in [StartTime, EndTime)
func (r *Raffle) IsInEntryWindow(now time.Time) bool {
	return !now.Before(r.StartTime) && now.Before(r.EndTime)
}

// CanAcceptEntries returns nil if an entry may be recorded at now
func (r *Raffle) CanAcceptEntries(now time.Time) error {
	if r.Status != RaffleStatusActive {
		return NewEntryRejectedError("raffle is %s", r.Status)
	}
	if now.Before(r.StartTime) {
		return NewEntryRejectedError("raffle has not started")
	}
	if !now.Before(r.EndTime) {
		return NewEntryRejectedError("raffle entry window has closed")
	}
	return nil
}

// ValidatePurchase checks that amountPaid covers exactly units entries
func (r *Raffle) ValidatePurchase(units, amountPaid int64) error {
	if units <= 0 {
		return NewEntryRejectedError("units must be positive")
	}
	if units > math.MaxInt64/r.EntryPrice {
		return NewEntryRejectedError("units exceed the maximum purchasable")
	}
	if expected := units * r.EntryPrice; amountPaid != expected {
		return NewEntryRejectedError("amount paid %d does not match %d units at %d", amountPaid, units, r.EntryPrice)
	}
	return nil
}

// RecordEntry updates the running totals for a new entry
func (r *Raffle) RecordEntry(units, amountPaid int64, newParticipant bool) {
	r.TotalEntries += units
	r.PoolValue += amountPaid
	if newParticipant {
		r.TotalParticipants++
	}
}

// CloseEntries moves an active or paused raffle to ending. Closing before
// the scheduled end pulls EndTime forward so the draw window opens now.
func (r *Raffle) CloseEntries(now time.Time) error {
	if err := r.TransitionTo(RaffleStatusEnding); err != nil {
		return err
	}
	if now.Before(r.EndTime) {
		r.EndTime = now
	}
	return nil
}

// CheckDrawable returns nil if a draw may start at now over poolSize tickets
func (r *Raffle) CheckDrawable(now time.Time, poolSize int64) error {
	switch r.Status {
	case RaffleStatusActive, RaffleStatusEnding:
	case RaffleStatusCompleted, RaffleStatusDrawing:
		return NewRaffleNotDrawableError(DrawReasonAlreadyDrawn)
	case RaffleStatusCancelled:
		return NewRaffleNotDrawableError(DrawReasonCancelled)
	default:
		return NewRaffleNotDrawableError(DrawReasonNotOpen)
	}
	if now.Before(r.EndTime) {
		return NewRaffleNotDrawableError(DrawReasonNotEnded)
	}
	if poolSize < 1 {
		return NewRaffleNotDrawableError(DrawReasonNoEntries)
	}
	return nil
}

// PrizePool returns the amount distributed to winners
func (r *Raffle) PrizePool() int64 {
	if r.Type == RaffleTypeFixedPrize {
		return r.FixedPrizeAmount
	}
	fee := r.PoolValue / FullBasisPoints * r.PlatformFeeBps
	fee += r.PoolValue % FullBasisPoints * r.PlatformFeeBps / FullBasisPoints
	return r.PoolValue - fee
}

// HasCommittedSeed reports whether a seed is stored for an in-flight draw
func (r *Raffle) HasCommittedSeed() bool {
	return r.PendingSeed != nil && *r.PendingSeed != ""
}

// CommittedSeed returns the stored seed, or nil
func (r *Raffle) CommittedSeed() *Seed {
	if !r.HasCommittedSeed() {
		return nil
	}
	return &Seed{
		Value:       *r.PendingSeed,
		Mode:        r.RandomnessMode,
		BlockNumber: r.PendingBlockNumber,
		BlockHash:   r.PendingBlockHash,
	}
}

// CommitSeed stores seed for the current draw. A seed is committed once;
// later calls keep the first one.
func (r *Raffle) CommitSeed(seed *Seed) error {
	if r.Status != RaffleStatusDrawing {
		return NewInvalidStatusTransitionError(r.Status, RaffleStatusDrawing)
	}
	if r.HasCommittedSeed() {
		return nil
	}
	if seed.Mode != r.RandomnessMode {
		return NewInvalidConfigurationError("seed mode %s does not match raffle mode %s", seed.Mode, r.RandomnessMode)
	}
	value := seed.Value
	r.PendingSeed = &value
	r.PendingBlockNumber = seed.BlockNumber
	r.PendingBlockHash = seed.BlockHash
	return nil
}
