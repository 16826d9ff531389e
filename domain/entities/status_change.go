package entities

import "time"

// RaffleStatusChange is an audit row for a raffle state transition
type RaffleStatusChange struct {
	ID         int64        `json:"id"`
	RaffleID   int64        `json:"raffle_id"`
	FromStatus RaffleStatus `json:"from_status"`
	ToStatus   RaffleStatus `json:"to_status"`
	Reason     string       `json:"reason"`
	CreatedAt  time.Time    `json:"created_at"`
}
