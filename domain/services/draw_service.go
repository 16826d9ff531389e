package services

import (
	"context"
	"errors"
	"fmt"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/events"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// drawService runs the transactional phases of a raffle draw. Fetching the
// seed happens between PrepareDraw and CommitSeed, outside any transaction.
type drawService struct {
	raffleRepo     interfaces.RaffleRepository
	entryRepo      interfaces.EntryRepository
	drawResultRepo interfaces.DrawResultRepository
	winnerRepo     interfaces.WinnerRepository
	payoutRepo     interfaces.PayoutRecordRepository
	historyRepo    interfaces.RaffleStatusHistoryRepository
	eventPublisher interfaces.EventPublisher
	clock          clock.Clock
}

// NewDrawService creates a new draw service
func NewDrawService(
	raffleRepo interfaces.RaffleRepository,
	entryRepo interfaces.EntryRepository,
	drawResultRepo interfaces.DrawResultRepository,
	winnerRepo interfaces.WinnerRepository,
	payoutRepo interfaces.PayoutRecordRepository,
	historyRepo interfaces.RaffleStatusHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clk clock.Clock,
) interfaces.DrawService {
	return &drawService{
		raffleRepo:     raffleRepo,
		entryRepo:      entryRepo,
		drawResultRepo: drawResultRepo,
		winnerRepo:     winnerRepo,
		payoutRepo:     payoutRepo,
		historyRepo:    historyRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// PrepareDraw checks eligibility and moves the raffle into drawing. If the
// raffle was already drawn the stored result is returned instead, and a
// raffle left in drawing by an interrupted attempt is resumed as is.
func (s *drawService) PrepareDraw(ctx context.Context, raffleID int64) (*interfaces.DrawPreparation, error) {
	raffle, err := lockRaffle(ctx, s.raffleRepo, raffleID)
	if err != nil {
		return nil, err
	}

	existing, err := s.loadResult(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &interfaces.DrawPreparation{Raffle: raffle, Existing: existing}, nil
	}

	if raffle.Status == entities.RaffleStatusDrawing {
		log.WithFields(log.Fields{
			"raffle_id":      raffle.ID,
			"committed_seed": raffle.HasCommittedSeed(),
		}).Warn("Resuming interrupted draw")
		return &interfaces.DrawPreparation{Raffle: raffle}, nil
	}

	pool, err := s.loadPool(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	var poolSize int64
	if pool != nil {
		poolSize = pool.Size()
	}
	if err := raffle.CheckDrawable(s.clock.Now(), poolSize); err != nil {
		return nil, err
	}
	// Nothing has been written yet, so a pool too small for the winner count
	// leaves the raffle where it was
	if err := CheckCapacity(pool, raffle.WinnerCount, raffle.OneWinPerWallet); err != nil {
		return nil, err
	}

	if raffle.Status == entities.RaffleStatusActive {
		if err := transitionRaffle(ctx, s.raffleRepo, s.historyRepo, s.eventPublisher, raffle, entities.RaffleStatusEnding, "end time reached"); err != nil {
			return nil, err
		}
	}
	if err := transitionRaffle(ctx, s.raffleRepo, s.historyRepo, s.eventPublisher, raffle, entities.RaffleStatusDrawing, "draw started"); err != nil {
		return nil, err
	}
	return &interfaces.DrawPreparation{Raffle: raffle}, nil
}

// CommitSeed stores the seed on the raffle before winners are selected.
// If a seed was committed by an earlier attempt that one is kept.
func (s *drawService) CommitSeed(ctx context.Context, raffleID int64, seed *entities.Seed) (*entities.Raffle, error) {
	if seed == nil {
		return nil, entities.NewRandomnessUnavailableError(errors.New("no seed supplied"))
	}
	raffle, err := lockRaffle(ctx, s.raffleRepo, raffleID)
	if err != nil {
		return nil, err
	}
	if raffle.HasCommittedSeed() {
		return raffle, nil
	}
	if err := raffle.CommitSeed(seed); err != nil {
		return nil, err
	}
	if err := s.raffleRepo.Update(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to commit seed: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":       raffle.ID,
		"randomness_mode": seed.Mode,
		"seed":            seed.Value,
	}).Info("Committed draw seed")
	return raffle, nil
}

// FinalizeDraw selects winners from the committed seed and persists the
// draw result, its winners and their first payout attempts.
func (s *drawService) FinalizeDraw(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	raffle, err := lockRaffle(ctx, s.raffleRepo, raffleID)
	if err != nil {
		return nil, err
	}

	existing, err := s.loadResult(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if raffle.Status != entities.RaffleStatusDrawing {
		return nil, entities.NewInvalidStatusTransitionError(raffle.Status, entities.RaffleStatusCompleted)
	}
	seed := raffle.CommittedSeed()
	if seed == nil {
		return nil, entities.NewRandomnessUnavailableError(errors.New("no seed committed for draw"))
	}

	entries, err := s.entryRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	pool, err := BuildTicketPool(entries)
	if err != nil {
		return nil, err
	}

	prizePool := raffle.PrizePool()
	selection, err := SelectWinners(SelectionInput{
		Pool:            pool,
		PrizePool:       prizePool,
		WinnerCount:     raffle.WinnerCount,
		Tiers:           raffle.PrizeTiers,
		Seed:            seed.Value,
		OneWinPerWallet: raffle.OneWinPerWallet,
	})
	if err != nil {
		return nil, err
	}

	result := &entities.DrawResult{
		RaffleID:              raffle.ID,
		Seed:                  seed.Value,
		RandomnessMode:        seed.Mode,
		BlockNumber:           seed.BlockNumber,
		BlockHash:             seed.BlockHash,
		TotalTickets:          selection.TotalTickets,
		PrizePool:             prizePool,
		TotalPrizeDistributed: selection.TotalDistributed,
	}
	if err := s.drawResultRepo.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to create draw result: %w", err)
	}

	winners := make([]*entities.Winner, 0, len(selection.Winners))
	for _, selected := range selection.Winners {
		winners = append(winners, &entities.Winner{
			RaffleID:     raffle.ID,
			DrawResultID: result.ID,
			Position:     selected.Position,
			Wallet:       selected.Ticket.Owner,
			TicketIndex:  selected.Ticket.Index,
			TotalTickets: selection.TotalTickets,
			EntryID:      selected.Ticket.EntryID,
			TierLabel:    selected.TierLabel,
			PrizeAmount:  selected.Amount,
			PayoutStatus: entities.PayoutStatusPending,
		})
	}
	if err := s.winnerRepo.CreateBatch(ctx, winners); err != nil {
		return nil, fmt.Errorf("failed to create winners: %w", err)
	}

	for _, winner := range winners {
		record := entities.NewPayoutRecord(winner, 1, uuid.NewString())
		if err := s.payoutRepo.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create payout record: %w", err)
		}
	}
	result.Winners = winners

	if err := transitionRaffle(ctx, s.raffleRepo, s.historyRepo, s.eventPublisher, raffle, entities.RaffleStatusCompleted, "draw completed"); err != nil {
		return nil, err
	}

	if err := s.eventPublisher.Publish(drawCompletedEvent(raffle, result)); err != nil {
		return nil, fmt.Errorf("failed to publish draw completed event: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":         raffle.ID,
		"draw_result_id":    result.ID,
		"randomness_mode":   result.RandomnessMode,
		"total_tickets":     result.TotalTickets,
		"winners":           len(winners),
		"total_distributed": result.TotalPrizeDistributed,
		"sequence_draws":    selection.Draws,
	}).Info("Raffle draw completed")

	return result, nil
}

// AbortDraw cancels a raffle stuck in drawing without a result and refunds
// its entries
func (s *drawService) AbortDraw(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error) {
	raffle, err := lockRaffle(ctx, s.raffleRepo, raffleID)
	if err != nil {
		return nil, err
	}

	existing, err := s.drawResultRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw result: %w", err)
	}
	if existing != nil {
		return nil, entities.NewRaffleNotDrawableError(entities.DrawReasonAlreadyDrawn)
	}
	if raffle.Status != entities.RaffleStatusDrawing {
		return nil, entities.NewInvalidStatusTransitionError(raffle.Status, entities.RaffleStatusCancelled)
	}

	if reason == "" {
		reason = "draw aborted by operator"
	}
	if err := cancelRaffle(ctx, s.raffleRepo, s.entryRepo, s.historyRepo, s.eventPublisher, raffle, reason); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"raffle_id": raffle.ID,
		"reason":    reason,
	}).Warn("Aborted raffle draw")
	return raffle, nil
}

// GetDrawResult returns the stored result with its winners
func (s *drawService) GetDrawResult(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	result, err := s.loadResult(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, entities.NewNotFoundError("draw result for raffle", raffleID)
	}
	return result, nil
}

func (s *drawService) loadResult(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	result, err := s.drawResultRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw result: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	winners, err := s.winnerRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get winners: %w", err)
	}
	result.Winners = winners
	return result, nil
}

// loadPool returns the raffle's ticket pool, or nil if it has no tickets
func (s *drawService) loadPool(ctx context.Context, raffleID int64) (*TicketPool, error) {
	entries, err := s.entryRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	pool, err := BuildTicketPool(entries)
	if errors.Is(err, entities.ErrEmptyPool) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func drawCompletedEvent(raffle *entities.Raffle, result *entities.DrawResult) events.DrawCompletedEvent {
	winners := make([]events.DrawWinner, 0, len(result.Winners))
	for _, w := range result.Winners {
		winners = append(winners, events.DrawWinner{
			Position:    w.Position,
			Wallet:      w.Wallet,
			TicketIndex: w.TicketIndex,
			TierLabel:   w.TierLabel,
			PrizeAmount: w.PrizeAmount,
		})
	}
	return events.DrawCompletedEvent{
		RaffleID:         raffle.ID,
		RaffleTitle:      raffle.Title,
		DrawResultID:     result.ID,
		Seed:             result.Seed,
		RandomnessMode:   string(result.RandomnessMode),
		BlockNumber:      result.BlockNumber,
		BlockHash:        result.BlockHash,
		TotalTickets:     result.TotalTickets,
		TotalDistributed: result.TotalPrizeDistributed,
		Winners:          winners,
	}
}
