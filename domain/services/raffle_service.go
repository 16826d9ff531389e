package services

import (
	"context"
	"fmt"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/events"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// raffleService implements the raffle life cycle
type raffleService struct {
	raffleRepo     interfaces.RaffleRepository
	entryRepo      interfaces.EntryRepository
	historyRepo    interfaces.RaffleStatusHistoryRepository
	eventPublisher interfaces.EventPublisher
	clock          clock.Clock
}

// NewRaffleService creates a new raffle service
func NewRaffleService(
	raffleRepo interfaces.RaffleRepository,
	entryRepo interfaces.EntryRepository,
	historyRepo interfaces.RaffleStatusHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clk clock.Clock,
) interfaces.RaffleService {
	return &raffleService{
		raffleRepo:     raffleRepo,
		entryRepo:      entryRepo,
		historyRepo:    historyRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// CreateRaffle validates and persists a new raffle. A raffle whose start
// time has already passed is activated immediately.
func (s *raffleService) CreateRaffle(ctx context.Context, params interfaces.CreateRaffleParams) (*entities.Raffle, error) {
	oneWin := true
	if params.OneWinPerWallet != nil {
		oneWin = *params.OneWinPerWallet
	}

	raffle := &entities.Raffle{
		Type:             params.Type,
		Title:            params.Title,
		EntryPrice:       params.EntryPrice,
		StartTime:        params.StartTime.UTC(),
		EndTime:          params.EndTime.UTC(),
		WinnerCount:      params.WinnerCount,
		PrizeTiers:       params.PrizeTiers,
		PlatformFeeBps:   params.PlatformFeeBps,
		FixedPrizeAmount: params.FixedPrizeAmount,
		RandomnessMode:   params.RandomnessMode,
		OneWinPerWallet:  oneWin,
		Status:           entities.RaffleStatusScheduled,
	}
	if raffle.Type == "" {
		raffle.Type = entities.RaffleTypeStandard
	}
	if err := raffle.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !raffle.EndTime.After(now) {
		return nil, entities.NewInvalidConfigurationError("end time must be in the future")
	}

	if err := s.raffleRepo.Create(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":       raffle.ID,
		"type":            raffle.Type,
		"randomness_mode": raffle.RandomnessMode,
		"winner_count":    raffle.WinnerCount,
	}).Info("Created raffle")

	if !now.Before(raffle.StartTime) {
		if err := s.transition(ctx, raffle, entities.RaffleStatusActive, "start time reached"); err != nil {
			return nil, err
		}
	}
	return raffle, nil
}

// GetRaffle returns a raffle or a NotFound error
func (s *raffleService) GetRaffle(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	raffle, err := s.raffleRepo.GetByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if raffle == nil {
		return nil, entities.NewNotFoundError("raffle", raffleID)
	}
	return raffle, nil
}

// Activate opens a scheduled raffle for entries
func (s *raffleService) Activate(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return s.lockAndTransition(ctx, raffleID, entities.RaffleStatusActive, "activated by operator")
}

// Pause suspends entries on an active raffle
func (s *raffleService) Pause(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return s.lockAndTransition(ctx, raffleID, entities.RaffleStatusPaused, "paused by operator")
}

// Resume reopens a paused raffle
func (s *raffleService) Resume(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return s.lockAndTransition(ctx, raffleID, entities.RaffleStatusActive, "resumed by operator")
}

// EndEntries closes the entry window of an active or paused raffle
func (s *raffleService) EndEntries(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	raffle, err := s.lock(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if err := s.closeEntries(ctx, raffle, "entries closed by operator"); err != nil {
		return nil, err
	}
	return raffle, nil
}

// Cancel cancels a raffle and marks its entries refunded
func (s *raffleService) Cancel(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error) {
	raffle, err := s.lock(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "cancelled by operator"
	}
	if err := cancelRaffle(ctx, s.raffleRepo, s.entryRepo, s.historyRepo, s.eventPublisher, raffle, reason); err != nil {
		return nil, err
	}
	return raffle, nil
}

// ActivateDue activates every scheduled raffle whose start time has passed
func (s *raffleService) ActivateDue(ctx context.Context) ([]*entities.Raffle, error) {
	due, err := s.raffleRepo.GetDueForActivation(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to get raffles due for activation: %w", err)
	}

	activated := make([]*entities.Raffle, 0, len(due))
	for _, candidate := range due {
		raffle, err := s.lock(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if raffle.Status != entities.RaffleStatusScheduled {
			continue
		}
		if err := s.transition(ctx, raffle, entities.RaffleStatusActive, "start time reached"); err != nil {
			return nil, err
		}
		activated = append(activated, raffle)
	}
	return activated, nil
}

// CloseDue moves every active raffle whose end time has passed to ending
func (s *raffleService) CloseDue(ctx context.Context) ([]*entities.Raffle, error) {
	due, err := s.raffleRepo.GetDueForClosing(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to get raffles due for closing: %w", err)
	}

	closed := make([]*entities.Raffle, 0, len(due))
	for _, candidate := range due {
		raffle, err := s.lock(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if raffle.Status != entities.RaffleStatusActive {
			continue
		}
		if err := s.closeEntries(ctx, raffle, "end time reached"); err != nil {
			return nil, err
		}
		closed = append(closed, raffle)
	}
	return closed, nil
}

// GetStatusHistory returns the recorded transitions of a raffle
func (s *raffleService) GetStatusHistory(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error) {
	history, err := s.historyRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	return history, nil
}

func (s *raffleService) lock(ctx context.Context, raffleID int64) (*entities.Raffle, error) {
	return lockRaffle(ctx, s.raffleRepo, raffleID)
}

func (s *raffleService) lockAndTransition(ctx context.Context, raffleID int64, next entities.RaffleStatus, reason string) (*entities.Raffle, error) {
	raffle, err := s.lock(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, raffle, next, reason); err != nil {
		return nil, err
	}
	return raffle, nil
}

func (s *raffleService) transition(ctx context.Context, raffle *entities.Raffle, next entities.RaffleStatus, reason string) error {
	return transitionRaffle(ctx, s.raffleRepo, s.historyRepo, s.eventPublisher, raffle, next, reason)
}

func (s *raffleService) closeEntries(ctx context.Context, raffle *entities.Raffle, reason string) error {
	from := raffle.Status
	if err := raffle.CloseEntries(s.clock.Now()); err != nil {
		return err
	}
	return persistTransition(ctx, s.raffleRepo, s.historyRepo, s.eventPublisher, raffle, from, reason)
}

// lockRaffle loads a raffle with a row lock or returns NotFound
func lockRaffle(ctx context.Context, repo interfaces.RaffleRepository, raffleID int64) (*entities.Raffle, error) {
	raffle, err := repo.GetByIDForUpdate(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	if raffle == nil {
		return nil, entities.NewNotFoundError("raffle", raffleID)
	}
	return raffle, nil
}

// transitionRaffle applies a state machine transition and persists it
func transitionRaffle(
	ctx context.Context,
	raffleRepo interfaces.RaffleRepository,
	historyRepo interfaces.RaffleStatusHistoryRepository,
	publisher interfaces.EventPublisher,
	raffle *entities.Raffle,
	next entities.RaffleStatus,
	reason string,
) error {
	from := raffle.Status
	if err := raffle.TransitionTo(next); err != nil {
		return err
	}
	return persistTransition(ctx, raffleRepo, historyRepo, publisher, raffle, from, reason)
}

// persistTransition saves a raffle whose status already changed from from,
// records the history row and publishes the change
func persistTransition(
	ctx context.Context,
	raffleRepo interfaces.RaffleRepository,
	historyRepo interfaces.RaffleStatusHistoryRepository,
	publisher interfaces.EventPublisher,
	raffle *entities.Raffle,
	from entities.RaffleStatus,
	reason string,
) error {
	if err := raffleRepo.Update(ctx, raffle); err != nil {
		return fmt.Errorf("failed to update raffle: %w", err)
	}

	change := &entities.RaffleStatusChange{
		RaffleID:   raffle.ID,
		FromStatus: from,
		ToStatus:   raffle.Status,
		Reason:     reason,
	}
	if err := historyRepo.Record(ctx, change); err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}

	if err := publisher.Publish(events.RaffleStatusChangedEvent{
		RaffleID:  raffle.ID,
		OldStatus: string(from),
		NewStatus: string(raffle.Status),
		Reason:    reason,
	}); err != nil {
		return fmt.Errorf("failed to publish status change: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id": raffle.ID,
		"from":      from,
		"to":        raffle.Status,
		"reason":    reason,
	}).Info("Raffle status changed")
	return nil
}

// cancelRaffle moves a raffle to cancelled and refunds its entries
func cancelRaffle(
	ctx context.Context,
	raffleRepo interfaces.RaffleRepository,
	entryRepo interfaces.EntryRepository,
	historyRepo interfaces.RaffleStatusHistoryRepository,
	publisher interfaces.EventPublisher,
	raffle *entities.Raffle,
	reason string,
) error {
	if err := transitionRaffle(ctx, raffleRepo, historyRepo, publisher, raffle, entities.RaffleStatusCancelled, reason); err != nil {
		return err
	}

	refunded, err := entryRepo.MarkRefundedByRaffle(ctx, raffle.ID)
	if err != nil {
		return fmt.Errorf("failed to refund entries: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":        raffle.ID,
		"refunded_entries": refunded,
	}).Info("Marked raffle entries refunded")
	return nil
}
