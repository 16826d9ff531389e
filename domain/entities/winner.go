package entities

import "time"

// PayoutStatus represents the payout life cycle of a winner
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing},
	PayoutStatusProcessing: {PayoutStatusPaid, PayoutStatusFailed},
	PayoutStatusFailed:     {PayoutStatusPending},
	PayoutStatusPaid:       {},
}

// CanTransitionTo reports whether moving to next is legal. failed -> pending
// is the only reopening transition and paid is final.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt has finished
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusPaid || s == PayoutStatusFailed
}

// IsValid reports whether s is a known payout status
func (s PayoutStatus) IsValid() bool {
	_, ok := payoutTransitions[s]
	return ok
}

// Winner is the persisted outcome of selection for one ticket
type Winner struct {
	ID           int64        `json:"id"`
	RaffleID     int64        `json:"raffle_id"`
	DrawResultID int64        `json:"draw_result_id"`
	Position     int          `json:"position"`
	Wallet       string       `json:"wallet"`
	TicketIndex  int64        `json:"ticket_index"`
	TotalTickets int64        `json:"total_tickets"`
	EntryID      int64        `json:"entry_id"`
	TierLabel    string       `json:"tier_label"`
	PrizeAmount  int64        `json:"prize_amount"`
	PayoutStatus PayoutStatus `json:"payout_status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CheckSendable returns the error a send attempt gets in the current status
func (w *Winner) CheckSendable() error {
	switch w.PayoutStatus {
	case PayoutStatusPending:
		return nil
	case PayoutStatusPaid:
		return NewPayoutAlreadyProcessedError(w.ID)
	case PayoutStatusProcessing:
		return NewPayoutInProgressError(w.ID)
	default:
		return NewPayoutNotRetryableError(w.ID, w.PayoutStatus)
	}
}

// CheckRetryable returns nil if an operator may reopen the payout
func (w *Winner) CheckRetryable() error {
	switch w.PayoutStatus {
	case PayoutStatusFailed:
		return nil
	case PayoutStatusPaid:
		return NewPayoutAlreadyProcessedError(w.ID)
	default:
		return NewPayoutNotRetryableError(w.ID, w.PayoutStatus)
	}
}
