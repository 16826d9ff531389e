package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/domain/services"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// EngineConfig holds the settings the engine's operations depend on
type EngineConfig struct {
	PlatformAddress       string
	MinConfirmations      int64
	RPCTimeout            time.Duration
	PayoutTimeout         time.Duration
	PayoutConcurrency     int
	DefaultRandomnessMode entities.RandomnessMode
}

// EngineDeps are the collaborators the engine drives. Chain and Transfers
// may be nil when no node is configured; operations that need them fail.
type EngineDeps struct {
	Chain        interfaces.ChainReader
	Transfers    interfaces.TransferExecutor
	Randomness   services.RandomnessSources
	Receipts     interfaces.ReceiptCache
	Reservations HashReserver
	Metrics      MetricsRecorder
}

// RaffleEngine runs raffle operations, each step in its own unit of work.
// Network calls (randomness, inbound transfer lookups, prize transfers)
// happen between transactions, never inside one that holds a raffle lock.
type RaffleEngine struct {
	uowFactory   UnitOfWorkFactory
	chain        interfaces.ChainReader
	transfers    interfaces.TransferExecutor
	randomness   services.RandomnessSources
	receipts     interfaces.ReceiptCache
	reservations HashReserver
	metrics      MetricsRecorder
	config       EngineConfig
	clock        clock.Clock
	payoutLocks  *keyedMutex
}

// NewRaffleEngine creates a new raffle engine
func NewRaffleEngine(uowFactory UnitOfWorkFactory, deps EngineDeps, config EngineConfig, clk clock.Clock) *RaffleEngine {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if config.PayoutConcurrency < 1 {
		config.PayoutConcurrency = 1
	}
	return &RaffleEngine{
		uowFactory:   uowFactory,
		chain:        deps.Chain,
		transfers:    deps.Transfers,
		randomness:   deps.Randomness,
		receipts:     deps.Receipts,
		reservations: deps.Reservations,
		metrics:      metrics,
		config:       config,
		clock:        clk,
		payoutLocks:  newKeyedMutex(),
	}
}

// inTransaction runs fn in a fresh unit of work and commits if it succeeds
func (e *RaffleEngine) inTransaction(ctx context.Context, operation string, fn func(uow UnitOfWork) error) error {
	start := e.clock.Now()
	defer func() {
		e.metrics.RecordTransaction(operation, e.clock.Since(start))
	}()

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// readOnly runs fn in a unit of work that is always rolled back
func (e *RaffleEngine) readOnly(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(uow)
}

func (e *RaffleEngine) raffleService(uow UnitOfWork) interfaces.RaffleService {
	return services.NewRaffleService(
		uow.RaffleRepository(),
		uow.EntryRepository(),
		uow.RaffleStatusHistoryRepository(),
		uow.EventBus(),
		e.clock,
	)
}

func (e *RaffleEngine) entryService(uow UnitOfWork) interfaces.EntryService {
	return services.NewEntryService(
		uow.RaffleRepository(),
		uow.EntryRepository(),
		uow.EventBus(),
		e.clock,
	)
}

func (e *RaffleEngine) drawService(uow UnitOfWork) interfaces.DrawService {
	return services.NewDrawService(
		uow.RaffleRepository(),
		uow.EntryRepository(),
		uow.DrawResultRepository(),
		uow.WinnerRepository(),
		uow.PayoutRecordRepository(),
		uow.RaffleStatusHistoryRepository(),
		uow.EventBus(),
		e.clock,
	)
}

func (e *RaffleEngine) payoutService(uow UnitOfWork) interfaces.PayoutService {
	return services.NewPayoutService(
		uow.WinnerRepository(),
		uow.PayoutRecordRepository(),
		uow.PayoutRetryRepository(),
		uow.EventBus(),
		e.clock,
	)
}

func (e *RaffleEngine) verificationService(uow UnitOfWork) interfaces.VerificationService {
	return services.NewVerificationService(
		uow.RaffleRepository(),
		uow.EntryRepository(),
		uow.DrawResultRepository(),
		uow.WinnerRepository(),
		e.chain,
		e.receipts,
		services.VerificationConfig{
			PlatformAddress:  e.config.PlatformAddress,
			MinConfirmations: e.config.MinConfirmations,
			RPCTimeout:       e.config.RPCTimeout,
		},
	)
}

// CreateRaffle validates and persists a new raffle. A raffle created without
// a randomness mode gets the configured default stored on it.
func (e *RaffleEngine) CreateRaffle(ctx context.Context, params interfaces.CreateRaffleParams) (*entities.Raffle, error) {
	if params.RandomnessMode == "" {
		params.RandomnessMode = e.config.DefaultRandomnessMode
	}

	var raffle *entities.Raffle
	err := e.inTransaction(ctx, "create_raffle", func(uow UnitOfWork) error {
		var err error
		raffle, err = e.raffleService(uow).CreateRaffle(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raffle, nil
}

// GetRaffle returns a raffle or a NotFound error
func (e *RaffleEngine) GetRaffle(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	var raffle *entities.Raffle
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		raffle, err = e.raffleService(uow).GetRaffle(ctx, raffleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raffle, nil
}

// Activate opens a scheduled raffle for entries
func (e *RaffleEngine) Activate(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return e.raffleOp(ctx, "activate_raffle", func(s interfaces.RaffleService) (*entities.Raffle, error) {
		return s.Activate(ctx, raffleID)
	})
}

// Pause suspends entries on an active raffle
func (e *RaffleEngine) Pause(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return e.raffleOp(ctx, "pause_raffle", func(s interfaces.RaffleService) (*entities.Raffle, error) {
		return s.Pause(ctx, raffleID)
	})
}

// Resume reopens a paused raffle
func (e *RaffleEngine) Resume(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return e.raffleOp(ctx, "resume_raffle", func(s interfaces.RaffleService) (*entities.Raffle, error) {
		return s.Resume(ctx, raffleID)
	})
}

// EndEntries closes the entry window early
func (e *RaffleEngine) EndEntries(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return e.raffleOp(ctx, "end_entries", func(s interfaces.RaffleService) (*entities.Raffle, error) {
		return s.EndEntries(ctx, raffleID)
	})
}

// Cancel cancels a raffle and refunds its entries
func (e *RaffleEngine) Cancel(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error) {
	return e.raffleOp(ctx, "cancel_raffle", func(s interfaces.RaffleService) (*entities.Raffle, error) {
		return s.Cancel(ctx, raffleID, reason)
	})
}

func (e *RaffleEngine) raffleOp(ctx context.Context, operation string, fn func(interfaces.RaffleService) (*entities.Raffle, error)) (*entities.Raffle, error) {
	var raffle *entities.Raffle
	err := e.inTransaction(ctx, operation, func(uow UnitOfWork) error {
		var err error
		raffle, err = fn(e.raffleService(uow))
		return err
	})
	if err != nil {
		return nil, err
	}
	return raffle, nil
}

// GetStatusHistory returns a raffle's transitions, oldest first
func (e *RaffleEngine) GetStatusHistory(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error) {
	var history []*entities.RaffleStatusChange
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		history, err = e.raffleService(uow).GetStatusHistory(ctx, raffleID)
		return err
	})
	return history, err
}

// ActivateDue activates scheduled raffles whose start time has passed
func (e *RaffleEngine) ActivateDue(ctx context.Context) ([]*entities.Raffle, error) {
	var raffles []*entities.Raffle
	err := e.inTransaction(ctx, "activate_due", func(uow UnitOfWork) error {
		var err error
		raffles, err = e.raffleService(uow).ActivateDue(ctx)
		return err
	})
	return raffles, err
}

// CloseDue moves active raffles past their end time to ending
func (e *RaffleEngine) CloseDue(ctx context.Context) ([]*entities.Raffle, error) {
	var raffles []*entities.Raffle
	err := e.inTransaction(ctx, "close_due", func(uow UnitOfWork) error {
		var err error
		raffles, err = e.raffleService(uow).CloseDue(ctx)
		return err
	})
	return raffles, err
}

// RafflesAwaitingDraw lists raffles that are ending or stuck in drawing
func (e *RaffleEngine) RafflesAwaitingDraw(ctx context.Context) ([]*entities.Raffle, error) {
	var raffles []*entities.Raffle
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		raffles, err = uow.RaffleRepository().GetByStatus(ctx, entities.RaffleStatusEnding, entities.RaffleStatusDrawing)
		if err != nil {
			return fmt.Errorf("failed to list raffles awaiting draw: %w", err)
		}
		return nil
	})
	return raffles, err
}

// CreateEntry records a purchase after verifying its inbound transfer on
// chain. The transfer hash is reserved for the duration so a concurrent
// submission of the same hash is rejected before reaching the node.
func (e *RaffleEngine) CreateEntry(ctx context.Context, params interfaces.EntryParams) (*entities.Entry, error) {
	params.Wallet = strings.TrimSpace(params.Wallet)
	params.TransferTxHash = strings.TrimSpace(params.TransferTxHash)
	if params.Wallet == "" {
		return nil, entities.NewEntryRejectedError("wallet is required")
	}
	if params.TransferTxHash == "" {
		return nil, entities.NewEntryRejectedError("transfer transaction hash is required")
	}

	if e.reservations != nil {
		if !e.reservations.Reserve(params.TransferTxHash) {
			return nil, entities.NewDuplicateTransactionError(params.TransferTxHash)
		}
		defer e.reservations.Release(params.TransferTxHash)
	}

	// Cheap checks first so a closed raffle never costs a node round trip
	raffle, err := e.GetRaffle(ctx, params.RaffleID)
	if err != nil {
		return nil, err
	}
	if err := raffle.CanAcceptEntries(e.clock.Now()); err != nil {
		return nil, err
	}
	if err := raffle.ValidatePurchase(params.Units, params.AmountPaid); err != nil {
		return nil, err
	}

	err = e.readOnly(ctx, func(uow UnitOfWork) error {
		_, err := e.verificationService(uow).VerifyInboundTransfer(ctx, entities.TransferCheck{
			TxHash:         params.TransferTxHash,
			ExpectedSender: params.Wallet,
			ExpectedAmount: params.AmountPaid,
			Recipient:      e.config.PlatformAddress,
		})
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"raffle_id": params.RaffleID,
			"wallet":    params.Wallet,
			"tx_hash":   params.TransferTxHash,
		}).WithError(err).Warn("Rejected entry transfer")
		return nil, err
	}

	var entry *entities.Entry
	err = e.inTransaction(ctx, "record_entry", func(uow UnitOfWork) error {
		var err error
		entry, err = e.entryService(uow).RecordEntry(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.metrics.RecordEntryCreated()
	return entry, nil
}

// GetEntries returns every entry of a raffle in creation order
func (e *RaffleEngine) GetEntries(ctx context.Context, raffleID int64) ([]*entities.Entry, error) {
	var entries []*entities.Entry
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		entries, err = e.entryService(uow).GetEntries(ctx, raffleID)
		return err
	})
	return entries, err
}
