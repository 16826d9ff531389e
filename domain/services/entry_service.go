package services

import (
	"context"
	"fmt"
	"strings"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/events"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// entryService records verified entry purchases
type entryService struct {
	raffleRepo     interfaces.RaffleRepository
	entryRepo      interfaces.EntryRepository
	eventPublisher interfaces.EventPublisher
	clock          clock.Clock
}

// NewEntryService creates a new entry service
func NewEntryService(
	raffleRepo interfaces.RaffleRepository,
	entryRepo interfaces.EntryRepository,
	eventPublisher interfaces.EventPublisher,
	clk clock.Clock,
) interfaces.EntryService {
	return &entryService{
		raffleRepo:     raffleRepo,
		entryRepo:      entryRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// RecordEntry persists an entry whose transfer has already been verified.
// The raffle row is locked so the status gate and totals cannot race a
// concurrent draw.
func (s *entryService) RecordEntry(ctx context.Context, params interfaces.EntryParams) (*entities.Entry, error) {
	wallet := strings.TrimSpace(params.Wallet)
	if wallet == "" {
		return nil, entities.NewEntryRejectedError("wallet is required")
	}
	txHash := strings.TrimSpace(params.TransferTxHash)
	if txHash == "" {
		return nil, entities.NewEntryRejectedError("transfer transaction hash is required")
	}

	raffle, err := lockRaffle(ctx, s.raffleRepo, params.RaffleID)
	if err != nil {
		return nil, err
	}
	if err := raffle.CanAcceptEntries(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := raffle.ValidatePurchase(params.Units, params.AmountPaid); err != nil {
		return nil, err
	}

	existing, err := s.entryRepo.GetByTransferTxHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check transfer hash: %w", err)
	}
	if existing != nil {
		return nil, entities.NewDuplicateTransactionError(txHash)
	}

	entered, err := s.entryRepo.HasWalletEntered(ctx, raffle.ID, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet participation: %w", err)
	}

	entry := &entities.Entry{
		RaffleID:       raffle.ID,
		Wallet:         wallet,
		Units:          params.Units,
		AmountPaid:     params.AmountPaid,
		TransferTxHash: txHash,
	}
	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	raffle.RecordEntry(entry.Units, entry.AmountPaid, !entered)
	if err := s.raffleRepo.Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update raffle totals: %w", err)
	}

	if err := s.eventPublisher.Publish(events.EntryCreatedEvent{
		RaffleID:       raffle.ID,
		EntryID:        entry.ID,
		Wallet:         entry.Wallet,
		Units:          entry.Units,
		AmountPaid:     entry.AmountPaid,
		TransferTxHash: entry.TransferTxHash,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish entry event: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id": raffle.ID,
		"entry_id":  entry.ID,
		"wallet":    entry.Wallet,
		"units":     entry.Units,
	}).Info("Recorded raffle entry")

	return entry, nil
}

// GetEntries returns every entry of a raffle in creation order
func (s *entryService) GetEntries(ctx context.Context, raffleID int64) ([]*entities.Entry, error) {
	entries, err := s.entryRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	return entries, nil
}
