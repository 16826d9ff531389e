package services

import (
	"context"
	"fmt"
	"strings"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/events"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// payoutService implements the per-winner payout state machine. Every
// status change goes through a compare-and-swap on the winner row so two
// concurrent callers cannot both move the same winner.
type payoutService struct {
	winnerRepo     interfaces.WinnerRepository
	payoutRepo     interfaces.PayoutRecordRepository
	retryRepo      interfaces.PayoutRetryRepository
	eventPublisher interfaces.EventPublisher
	clock          clock.Clock
}

// NewPayoutService creates a new payout service
func NewPayoutService(
	winnerRepo interfaces.WinnerRepository,
	payoutRepo interfaces.PayoutRecordRepository,
	retryRepo interfaces.PayoutRetryRepository,
	eventPublisher interfaces.EventPublisher,
	clk clock.Clock,
) interfaces.PayoutService {
	return &payoutService{
		winnerRepo:     winnerRepo,
		payoutRepo:     payoutRepo,
		retryRepo:      retryRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// ClaimPayout moves a pending winner to processing and returns the attempt
// to execute. Paid winners are rejected with PayoutAlreadyProcessed.
func (s *payoutService) ClaimPayout(ctx context.Context, winnerID int64) (*entities.Winner, *entities.PayoutRecord, error) {
	winner, err := s.getWinner(ctx, winnerID)
	if err != nil {
		return nil, nil, err
	}
	if err := winner.CheckSendable(); err != nil {
		return nil, nil, err
	}

	swapped, err := s.winnerRepo.CompareAndSwapPayoutStatus(ctx, winnerID, entities.PayoutStatusPending, entities.PayoutStatusProcessing)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to claim payout: %w", err)
	}
	if !swapped {
		// Lost the race; report whatever state the winner is in now
		current, err := s.getWinner(ctx, winnerID)
		if err != nil {
			return nil, nil, err
		}
		if err := current.CheckSendable(); err != nil {
			return nil, nil, err
		}
		return nil, nil, entities.NewPayoutInProgressError(winnerID)
	}
	winner.PayoutStatus = entities.PayoutStatusProcessing

	record, err := s.payoutRepo.GetActiveByWinner(ctx, winnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get payout record: %w", err)
	}
	if record == nil {
		record, err = s.newAttempt(ctx, winner)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := record.MarkProcessing(s.clock.Now()); err != nil {
		return nil, nil, err
	}
	if err := s.payoutRepo.Update(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("failed to update payout record: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id": winner.RaffleID,
		"winner_id": winner.ID,
		"payout_id": record.ID,
		"attempt":   record.Attempt,
		"amount":    record.Amount,
	}).Info("Claimed payout")
	return winner, record, nil
}

// RecordPayoutSuccess marks the winner paid with the transfer's transaction id
func (s *payoutService) RecordPayoutSuccess(ctx context.Context, winnerID, recordID int64, transactionID string) (*entities.PayoutRecord, error) {
	winner, record, err := s.finish(ctx, winnerID, recordID, entities.PayoutStatusPaid)
	if err != nil {
		return nil, err
	}
	if err := record.MarkPaid(transactionID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update payout record: %w", err)
	}

	if err := s.eventPublisher.Publish(events.PayoutSucceededEvent{
		RaffleID:      winner.RaffleID,
		WinnerID:      winner.ID,
		PayoutID:      record.ID,
		Wallet:        record.Wallet,
		Amount:        record.Amount,
		Attempt:       record.Attempt,
		TransactionID: transactionID,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish payout event: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":      winner.RaffleID,
		"winner_id":      winner.ID,
		"payout_id":      record.ID,
		"transaction_id": transactionID,
	}).Info("Payout paid")
	return record, nil
}

// RecordPayoutFailure marks the winner failed with a human-readable reason
func (s *payoutService) RecordPayoutFailure(ctx context.Context, winnerID, recordID int64, reason string) (*entities.PayoutRecord, error) {
	winner, record, err := s.finish(ctx, winnerID, recordID, entities.PayoutStatusFailed)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "transfer failed"
	}
	if err := record.MarkFailed(reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update payout record: %w", err)
	}

	if err := s.eventPublisher.Publish(events.PayoutFailedEvent{
		RaffleID: winner.RaffleID,
		WinnerID: winner.ID,
		PayoutID: record.ID,
		Wallet:   record.Wallet,
		Amount:   record.Amount,
		Attempt:  record.Attempt,
		Reason:   reason,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish payout event: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id": winner.RaffleID,
		"winner_id": winner.ID,
		"payout_id": record.ID,
		"reason":    reason,
	}).Warn("Payout failed")
	return record, nil
}

// RequestRetry reopens a failed payout. It is the only way out of failed
// and leaves an audit row naming who asked.
func (s *payoutService) RequestRetry(ctx context.Context, request interfaces.RetryRequest) (*entities.PayoutRecord, error) {
	requestedBy := strings.TrimSpace(request.RequestedBy)
	if requestedBy == "" {
		return nil, entities.NewInvalidConfigurationError("retry requests must name the requester")
	}

	winner, err := s.getWinner(ctx, request.WinnerID)
	if err != nil {
		return nil, err
	}
	if err := winner.CheckRetryable(); err != nil {
		return nil, err
	}

	swapped, err := s.winnerRepo.CompareAndSwapPayoutStatus(ctx, winner.ID, entities.PayoutStatusFailed, entities.PayoutStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen payout: %w", err)
	}
	if !swapped {
		current, err := s.getWinner(ctx, winner.ID)
		if err != nil {
			return nil, err
		}
		if err := current.CheckRetryable(); err != nil {
			return nil, err
		}
		return nil, entities.NewPayoutInProgressError(winner.ID)
	}
	winner.PayoutStatus = entities.PayoutStatusPending

	audit := &entities.PayoutRetryRequest{
		WinnerID:    winner.ID,
		RequestedBy: requestedBy,
		Reason:      request.Reason,
	}
	if err := s.retryRepo.Create(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to record retry request: %w", err)
	}

	record, err := s.newAttempt(ctx, winner)
	if err != nil {
		return nil, err
	}

	if err := s.eventPublisher.Publish(events.PayoutRetryRequestedEvent{
		RaffleID:    winner.RaffleID,
		WinnerID:    winner.ID,
		PayoutID:    record.ID,
		Attempt:     record.Attempt,
		RequestedBy: requestedBy,
		Reason:      request.Reason,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish retry event: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":    winner.RaffleID,
		"winner_id":    winner.ID,
		"payout_id":    record.ID,
		"attempt":      record.Attempt,
		"requested_by": requestedBy,
	}).Info("Payout retry requested")
	return record, nil
}

// GetPendingWinners returns winners of a raffle still waiting for payout
func (s *payoutService) GetPendingWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error) {
	winners, err := s.winnerRepo.GetByRaffleAndStatus(ctx, raffleID, entities.PayoutStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending winners: %w", err)
	}
	return winners, nil
}

// GetWinners returns every winner of a raffle
func (s *payoutService) GetWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error) {
	winners, err := s.winnerRepo.GetByRaffle(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get winners: %w", err)
	}
	return winners, nil
}

// GetPayoutHistory returns every payout attempt for a winner
func (s *payoutService) GetPayoutHistory(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error) {
	records, err := s.payoutRepo.GetByWinner(ctx, winnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payout history: %w", err)
	}
	return records, nil
}

func (s *payoutService) getWinner(ctx context.Context, winnerID int64) (*entities.Winner, error) {
	winner, err := s.winnerRepo.GetByID(ctx, winnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}
	if winner == nil {
		return nil, entities.NewNotFoundError("winner", winnerID)
	}
	return winner, nil
}

// newAttempt creates the next pending payout record for winner
func (s *payoutService) newAttempt(ctx context.Context, winner *entities.Winner) (*entities.PayoutRecord, error) {
	history, err := s.payoutRepo.GetByWinner(ctx, winner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payout history: %w", err)
	}
	attempt := 1
	for _, previous := range history {
		if previous.Attempt >= attempt {
			attempt = previous.Attempt + 1
		}
	}

	record := entities.NewPayoutRecord(winner, attempt, uuid.NewString())
	if err := s.payoutRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create payout record: %w", err)
	}
	return record, nil
}

// finish moves a processing winner to a terminal status and returns the
// processing record that must be completed
func (s *payoutService) finish(ctx context.Context, winnerID, recordID int64, to entities.PayoutStatus) (*entities.Winner, *entities.PayoutRecord, error) {
	winner, err := s.getWinner(ctx, winnerID)
	if err != nil {
		return nil, nil, err
	}

	record, err := s.payoutRepo.GetActiveByWinner(ctx, winnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get payout record: %w", err)
	}
	if record == nil || record.ID != recordID {
		return nil, nil, entities.NewNotFoundError("active payout record", recordID)
	}

	swapped, err := s.winnerRepo.CompareAndSwapPayoutStatus(ctx, winnerID, entities.PayoutStatusProcessing, to)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to complete payout: %w", err)
	}
	if !swapped {
		return nil, nil, &entities.RaffleError{
			Kind:   entities.ErrorKindInvalidStatusTransition,
			Reason: fmt.Sprintf("winner %d payout is not processing", winnerID),
		}
	}
	winner.PayoutStatus = to
	return winner, record, nil
}
