package entities

import "time"

// Entry is a purchase of one or more raffle units by a wallet
type Entry struct {
	ID             int64     `json:"id"`
	RaffleID       int64     `json:"raffle_id"`
	Wallet         string    `json:"wallet"`
	Units          int64     `json:"units"`
	AmountPaid     int64     `json:"amount_paid"`
	TransferTxHash string    `json:"transfer_tx_hash"`
	Refunded       bool      `json:"refunded"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ticket is one purchased unit projected into the draw pool. Tickets are
// never persisted.
type Ticket struct {
	Index   int64
	Owner   string
	EntryID int64
}
