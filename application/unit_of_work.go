package application

import (
	"context"

	"raffler/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes buffered events
	Commit() error

	// Rollback rolls back the transaction and drops buffered events
	Rollback() error

	// Repository getters
	RaffleRepository() interfaces.RaffleRepository
	EntryRepository() interfaces.EntryRepository
	DrawResultRepository() interfaces.DrawResultRepository
	WinnerRepository() interfaces.WinnerRepository
	PayoutRecordRepository() interfaces.PayoutRecordRepository
	PayoutRetryRepository() interfaces.PayoutRetryRepository
	RaffleStatusHistoryRepository() interfaces.RaffleStatusHistoryRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
