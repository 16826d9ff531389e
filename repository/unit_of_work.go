package repository

import (
	"context"
	"errors"
	"fmt"

	"raffler/application"
	"raffler/database"
	"raffler/domain/interfaces"
	"raffler/events"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements application.UnitOfWork on a pgx transaction
type unitOfWork struct {
	db             *database.DB
	tx             pgx.Tx
	ctx            context.Context
	bus            *events.TransactionalBus
	raffleRepo     interfaces.RaffleRepository
	entryRepo      interfaces.EntryRepository
	drawResultRepo interfaces.DrawResultRepository
	winnerRepo     interfaces.WinnerRepository
	payoutRepo     interfaces.PayoutRecordRepository
	retryRepo      interfaces.PayoutRetryRepository
	historyRepo    interfaces.RaffleStatusHistoryRepository
}

// UnitOfWorkFactory creates units of work whose events flush to bus on commit
type UnitOfWorkFactory struct {
	db  *database.DB
	bus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, bus *events.Bus) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		db:  db,
		bus: bus,
	}
}

// Create returns a unit of work that has not begun yet
func (f *UnitOfWorkFactory) Create() application.UnitOfWork {
	return &unitOfWork{
		db:  f.db,
		bus: events.NewTransactionalBus(f.bus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.raffleRepo = newRaffleRepositoryWithTx(tx)
	u.entryRepo = newEntryRepositoryWithTx(tx)
	u.drawResultRepo = newDrawResultRepositoryWithTx(tx)
	u.winnerRepo = newWinnerRepositoryWithTx(tx)
	u.payoutRepo = newPayoutRecordRepositoryWithTx(tx)
	u.retryRepo = newPayoutRetryRepositoryWithTx(tx)
	u.historyRepo = newRaffleStatusHistoryRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		u.bus.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// The transaction has committed; events are best effort from here
	if err := u.bus.Flush(u.ctx); err != nil {
		log.WithError(err).Warn("Failed to flush events after commit")
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	u.bus.Discard()

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

func (u *unitOfWork) requireStarted() {
	if u.raffleRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
}

// RaffleRepository returns the raffle repository for this unit of work
func (u *unitOfWork) RaffleRepository() interfaces.RaffleRepository {
	u.requireStarted()
	return u.raffleRepo
}

// EntryRepository returns the entry repository for this unit of work
func (u *unitOfWork) EntryRepository() interfaces.EntryRepository {
	u.requireStarted()
	return u.entryRepo
}

// DrawResultRepository returns the draw result repository for this unit of work
func (u *unitOfWork) DrawResultRepository() interfaces.DrawResultRepository {
	u.requireStarted()
	return u.drawResultRepo
}

// WinnerRepository returns the winner repository for this unit of work
func (u *unitOfWork) WinnerRepository() interfaces.WinnerRepository {
	u.requireStarted()
	return u.winnerRepo
}

// PayoutRecordRepository returns the payout record repository for this unit of work
func (u *unitOfWork) PayoutRecordRepository() interfaces.PayoutRecordRepository {
	u.requireStarted()
	return u.payoutRepo
}

// PayoutRetryRepository returns the retry request repository for this unit of work
func (u *unitOfWork) PayoutRetryRepository() interfaces.PayoutRetryRepository {
	u.requireStarted()
	return u.retryRepo
}

// RaffleStatusHistoryRepository returns the status history repository for this unit of work
func (u *unitOfWork) RaffleStatusHistoryRepository() interfaces.RaffleStatusHistoryRepository {
	u.requireStarted()
	return u.historyRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	u.requireStarted()
	return u.bus
}
