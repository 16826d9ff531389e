package application

import (
	"context"
	"errors"
	"fmt"

	"raffler/domain/entities"
	"raffler/domain/interfaces"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PayoutOutcome is the result of one winner's payout in a batch
type PayoutOutcome struct {
	WinnerID int64                  `json:"winner_id"`
	Record   *entities.PayoutRecord `json:"record,omitempty"`
	Error    string                 `json:"error,omitempty"`
	err      error
}

// Err returns the error that stopped the attempt, if any
func (o PayoutOutcome) Err() error {
	return o.err
}

// BatchResult summarizes a batch payout run
type BatchResult struct {
	RaffleID  int64           `json:"raffle_id"`
	Attempted int             `json:"attempted"`
	Paid      int             `json:"paid"`
	Failed    int             `json:"failed"`
	Rejected  int             `json:"rejected"`
	Outcomes  []PayoutOutcome `json:"outcomes"`
}

// SendPayout pays one winner. The winner is claimed pending -> processing
// before any transfer is made, so a paid winner is rejected with
// PayoutAlreadyProcessed and never receives a second transfer. A transfer
// that fails is recorded on the winner and returned as a failed record,
// not as an error.
func (e *RaffleEngine) SendPayout(ctx context.Context, winnerID int64) (*entities.PayoutRecord, error) {
	unlock := e.payoutLocks.Lock(winnerID)
	defer unlock()

	if e.transfers == nil {
		return nil, entities.NewInvalidConfigurationError("no transfer executor configured")
	}

	start := e.clock.Now()

	var winner *entities.Winner
	var claimed *entities.PayoutRecord
	err := e.inTransaction(ctx, "claim_payout", func(uow UnitOfWork) error {
		var err error
		winner, claimed, err = e.payoutService(uow).ClaimPayout(ctx, winnerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	txID, sendErr := e.transfer(ctx, winner, claimed.Reference)

	// The outcome must be recorded even if the caller has gone away
	recordCtx := context.WithoutCancel(ctx)

	var record *entities.PayoutRecord
	if sendErr != nil {
		err = e.inTransaction(recordCtx, "record_payout_failure", func(uow UnitOfWork) error {
			var err error
			record, err = e.payoutService(uow).RecordPayoutFailure(recordCtx, winner.ID, claimed.ID, sendErr.Error())
			return err
		})
	} else {
		err = e.inTransaction(recordCtx, "record_payout_success", func(uow UnitOfWork) error {
			var err error
			record, err = e.payoutService(uow).RecordPayoutSuccess(recordCtx, winner.ID, claimed.ID, txID)
			return err
		})
	}
	if err != nil {
		log.WithFields(log.Fields{
			"raffle_id":      winner.RaffleID,
			"winner_id":      winner.ID,
			"payout_id":      claimed.ID,
			"transaction_id": txID,
			"transfer_error": sendErr,
		}).WithError(err).Error("Failed to record payout outcome, winner left in processing")
		return nil, fmt.Errorf("failed to record payout outcome: %w", err)
	}

	e.metrics.RecordPayout(string(record.Status), e.clock.Since(start))
	return record, nil
}

// transfer sends the winner's prize, bounded by the payout timeout. A
// transfer that times out may still complete on the node; RequestRetry
// checks for it before another attempt is allowed.
func (e *RaffleEngine) transfer(ctx context.Context, winner *entities.Winner, reference string) (string, error) {
	if e.config.PayoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.PayoutTimeout)
		defer cancel()
	}

	txID, err := e.transfers.Send(ctx, winner.Wallet, winner.PrizeAmount, reference)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("transfer timed out after %s", e.config.PayoutTimeout)
		}
		return "", err
	}
	if txID == "" {
		return "", errors.New("transfer returned no transaction id")
	}
	return txID, nil
}

// SendAllPayouts pays every pending winner of a raffle with bounded
// parallelism. Each winner is independent: a failure is recorded on that
// winner and never stops the others.
func (e *RaffleEngine) SendAllPayouts(ctx context.Context, raffleID int64) (*BatchResult, error) {
	var pending []*entities.Winner
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		pending, err = e.payoutService(uow).GetPendingWinners(ctx, raffleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	outcomes := make([]PayoutOutcome, len(pending))

	var g errgroup.Group
	g.SetLimit(e.config.PayoutConcurrency)
	for i, winner := range pending {
		g.Go(func() error {
			outcome := PayoutOutcome{WinnerID: winner.ID}
			if err := ctx.Err(); err != nil {
				outcome.err = err
			} else {
				outcome.Record, outcome.err = e.SendPayout(ctx, winner.ID)
			}
			if outcome.err != nil {
				outcome.Error = outcome.err.Error()
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{RaffleID: raffleID, Attempted: len(pending), Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			result.Rejected++
		case o.Record.Status == entities.PayoutStatusPaid:
			result.Paid++
		default:
			result.Failed++
		}
	}

	log.WithFields(log.Fields{
		"raffle_id": raffleID,
		"attempted": result.Attempted,
		"paid":      result.Paid,
		"failed":    result.Failed,
		"rejected":  result.Rejected,
	}).Info("Completed payout batch")
	return result, nil
}

// RequestRetry reopens a failed payout on an operator's request. It does
// not send anything; the next SendPayout does. A failed attempt may still
// have reached the chain, for example when the transfer timed out after the
// node accepted it, so the node wallet is searched for the attempt's
// reference first and the retry is refused if a transfer is found.
func (e *RaffleEngine) RequestRetry(ctx context.Context, request interfaces.RetryRequest) (*entities.PayoutRecord, error) {
	unlock := e.payoutLocks.Lock(request.WinnerID)
	defer unlock()

	if err := e.checkNoLandedTransfer(ctx, request.WinnerID); err != nil {
		return nil, err
	}

	var record *entities.PayoutRecord
	err := e.inTransaction(ctx, "request_retry", func(uow UnitOfWork) error {
		var err error
		record, err = e.payoutService(uow).RequestRetry(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// checkNoLandedTransfer fails if the winner's last failed attempt has a
// matching transfer in the node wallet
func (e *RaffleEngine) checkNoLandedTransfer(ctx context.Context, winnerID int64) error {
	if e.transfers == nil {
		return nil
	}

	history, err := e.GetPayoutHistory(ctx, winnerID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	if last.Status != entities.PayoutStatusFailed {
		return nil
	}

	lookupCtx := ctx
	if e.config.RPCTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, e.config.RPCTimeout)
		defer cancel()
	}
	txID, err := e.transfers.FindTransfer(lookupCtx, last.Reference)
	if err != nil {
		return fmt.Errorf("failed to check for an earlier transfer: %w", err)
	}
	if txID != "" {
		log.WithFields(log.Fields{
			"raffle_id":      last.RaffleID,
			"winner_id":      winnerID,
			"payout_id":      last.ID,
			"attempt":        last.Attempt,
			"reference":      last.Reference,
			"transaction_id": txID,
		}).Error("Failed payout attempt reached the chain, refusing retry")
		return entities.NewTransferLandedError(winnerID, last.Attempt, txID)
	}
	return nil
}

// GetWinners returns a raffle's winners ordered by position
func (e *RaffleEngine) GetWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error) {
	var winners []*entities.Winner
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		winners, err = e.payoutService(uow).GetWinners(ctx, raffleID)
		return err
	})
	return winners, err
}

// GetPayoutHistory returns every payout attempt for a winner
func (e *RaffleEngine) GetPayoutHistory(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error) {
	var records []*entities.PayoutRecord
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		records, err = e.payoutService(uow).GetPayoutHistory(ctx, winnerID)
		return err
	})
	return records, err
}
