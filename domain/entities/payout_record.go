package entities

import "time"

// PayoutRecord is one attempt to pay a winner
type PayoutRecord struct {
	ID            int64        `json:"id"`
	WinnerID      int64        `json:"winner_id"`
	RaffleID      int64        `json:"raffle_id"`
	Wallet        string       `json:"wallet"`
	Amount        int64        `json:"amount"`
	Attempt       int          `json:"attempt"`
	Status        PayoutStatus `json:"status"`
	Reference     string       `json:"reference"`
	TransactionID *string      `json:"transaction_id,omitempty"`
	FailureReason *string      `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// NewPayoutRecord creates a pending attempt for winner
func NewPayoutRecord(winner *Winner, attempt int, reference string) *PayoutRecord {
	return &PayoutRecord{
		WinnerID:  winner.ID,
		RaffleID:  winner.RaffleID,
		Wallet:    winner.Wallet,
		Amount:    winner.PrizeAmount,
		Attempt:   attempt,
		Status:    PayoutStatusPending,
		Reference: reference,
	}
}

func (p *PayoutRecord) transition(next PayoutStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return &RaffleError{
			Kind:   ErrorKindInvalidStatusTransition,
			Reason: "cannot transition payout from " + string(p.Status) + " to " + string(next),
		}
	}
	p.Status = next
	return nil
}

// MarkProcessing moves a pending attempt to processing
func (p *PayoutRecord) MarkProcessing(now time.Time) error {
	if err := p.transition(PayoutStatusProcessing); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// MarkPaid records a successful transfer
func (p *PayoutRecord) MarkPaid(transactionID string, now time.Time) error {
	if err := p.transition(PayoutStatusPaid); err != nil {
		return err
	}
	p.TransactionID = &transactionID
	p.FailureReason = nil
	p.UpdatedAt = now
	p.CompletedAt = &now
	return nil
}

// MarkFailed records a failed transfer and its reason
func (p *PayoutRecord) MarkFailed(reason string, now time.Time) error {
	if err := p.transition(PayoutStatusFailed); err != nil {
		return err
	}
	p.FailureReason = &reason
	p.UpdatedAt = now
	p.CompletedAt = &now
	return nil
}

// PayoutRetryRequest is the audit record of an operator reopening a failed payout
type PayoutRetryRequest struct {
	ID          int64     `json:"id"`
	WinnerID    int64     `json:"winner_id"`
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
