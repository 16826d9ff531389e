package interfaces

import (
	"context"
	"time"

	"raffler/domain/entities"
	"raffler/events"
)

// RaffleRepository defines the interface for raffle data access
type RaffleRepository interface {
	// Create inserts a raffle and fills in its ID and timestamps
	Create(ctx context.Context, raffle *entities.Raffle) error

	// GetByID returns nil, nil when the raffle does not exist
	GetByID(ctx context.Context, id int64) (*entities.Raffle, error)

	// GetByIDForUpdate locks the raffle row for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Raffle, error)

	// Update persists status, totals, end time and the committed seed
	Update(ctx context.Context, raffle *entities.Raffle) error

	// GetByStatus lists raffles in any of the given statuses, oldest end time first
	GetByStatus(ctx context.Context, statuses ...entities.RaffleStatus) ([]*entities.Raffle, error)

	// GetDueForActivation lists scheduled raffles whose start time has passed
	GetDueForActivation(ctx context.Context, now time.Time) ([]*entities.Raffle, error)

	// GetDueForClosing lists active raffles whose end time has passed
	GetDueForClosing(ctx context.Context, now time.Time) ([]*entities.Raffle, error)
}

// EntryRepository defines the interface for entry data access
type EntryRepository interface {
	Create(ctx context.Context, entry *entities.Entry) error

	// GetByRaffle returns every entry, refunded included, in creation order
	GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.Entry, error)

	// GetByTransferTxHash returns nil, nil when the hash has not been used
	GetByTransferTxHash(ctx context.Context, txHash string) (*entities.Entry, error)

	HasWalletEntered(ctx context.Context, raffleID int64, wallet string) (bool, error)

	// MarkRefundedByRaffle flags all entries of a raffle as refunded
	MarkRefundedByRaffle(ctx context.Context, raffleID int64) (int64, error)
}

// DrawResultRepository defines the interface for draw result data access
type DrawResultRepository interface {
	// Create fails if the raffle already has a draw result
	Create(ctx context.Context, result *entities.DrawResult) error

	// GetByRaffle returns nil, nil when the raffle has not been drawn
	GetByRaffle(ctx context.Context, raffleID int64) (*entities.DrawResult, error)
}

// WinnerRepository defines the interface for winner data access
type WinnerRepository interface {
	CreateBatch(ctx context.Context, winners []*entities.Winner) error

	GetByID(ctx context.Context, id int64) (*entities.Winner, error)

	// GetByRaffle returns winners ordered by position
	GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.Winner, error)

	GetByRaffleAndStatus(ctx context.Context, raffleID int64, status entities.PayoutStatus) ([]*entities.Winner, error)

	// CompareAndSwapPayoutStatus moves the winner from -> to only if it is
	// currently in from, and reports whether it did
	CompareAndSwapPayoutStatus(ctx context.Context, winnerID int64, from, to entities.PayoutStatus) (bool, error)
}

// PayoutRecordRepository defines the interface for payout attempt data access
type PayoutRecordRepository interface {
	Create(ctx context.Context, record *entities.PayoutRecord) error

	Update(ctx context.Context, record *entities.PayoutRecord) error

	// GetActiveByWinner returns the pending or processing attempt, or nil
	GetActiveByWinner(ctx context.Context, winnerID int64) (*entities.PayoutRecord, error)

	// GetByWinner returns every attempt ordered by attempt number
	GetByWinner(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error)
}

// PayoutRetryRepository stores the audit trail of operator retry requests
type PayoutRetryRepository interface {
	Create(ctx context.Context, request *entities.PayoutRetryRequest) error
	GetByWinner(ctx context.Context, winnerID int64) ([]*entities.PayoutRetryRequest, error)
}

// RaffleStatusHistoryRepository stores raffle state transitions
type RaffleStatusHistoryRepository interface {
	Record(ctx context.Context, change *entities.RaffleStatusChange) error
	GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
