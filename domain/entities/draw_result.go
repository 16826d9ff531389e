package entities

import "time"

// BlockRef identifies a settlement chain block
type BlockRef struct {
	Number int64
	Hash   string
}

// Seed is the random value all winner selection is derived from
type Seed struct {
	Value       string
	Mode        RandomnessMode
	BlockNumber *int64
	BlockHash   *string
}

// DrawResult is the immutable outcome of a raffle draw
type DrawResult struct {
	ID                    int64          `json:"id"`
	RaffleID              int64          `json:"raffle_id"`
	Seed                  string         `json:"seed"`
	RandomnessMode        RandomnessMode `json:"randomness_mode"`
	BlockNumber           *int64         `json:"block_number,omitempty"`
	BlockHash             *string        `json:"block_hash,omitempty"`
	TotalTickets          int64          `json:"total_tickets"`
	PrizePool             int64          `json:"prize_pool"`
	TotalPrizeDistributed int64          `json:"total_prize_distributed"`
	Winners               []*Winner      `json:"winners"`
	CreatedAt             time.Time      `json:"created_at"`
}
