package application

import (
	"context"

	"raffler/domain/entities"
	"raffler/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// InitiateDraw draws a raffle's winners. It is idempotent: a drawn raffle
// returns its stored result, and a raffle left in drawing by an interrupted
// attempt resumes with the seed it already committed.
func (e *RaffleEngine) InitiateDraw(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	var prep *interfaces.DrawPreparation
	err := e.inTransaction(ctx, "prepare_draw", func(uow UnitOfWork) error {
		var err error
		prep, err = e.drawService(uow).PrepareDraw(ctx, raffleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if prep.Existing != nil {
		return prep.Existing, nil
	}

	if !prep.Raffle.HasCommittedSeed() {
		seed, err := e.generateSeed(ctx, prep.Raffle)
		if err != nil {
			log.WithFields(log.Fields{
				"raffle_id":       raffleID,
				"randomness_mode": prep.Raffle.RandomnessMode,
			}).WithError(err).Error("Draw seed unavailable, raffle left in drawing")
			return nil, err
		}

		err = e.inTransaction(ctx, "commit_seed", func(uow UnitOfWork) error {
			_, err := e.drawService(uow).CommitSeed(ctx, raffleID, seed)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var result *entities.DrawResult
	err = e.inTransaction(ctx, "finalize_draw", func(uow UnitOfWork) error {
		var err error
		result, err = e.drawService(uow).FinalizeDraw(ctx, raffleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.metrics.RecordDrawCompleted(string(result.RandomnessMode))
	return result, nil
}

// generateSeed asks the raffle's randomness source for a seed. It runs
// outside any transaction; the source bounds its own RPC calls.
func (e *RaffleEngine) generateSeed(ctx context.Context, raffle *entities.Raffle) (*entities.Seed, error) {
	source, err := e.randomness.For(raffle.RandomnessMode)
	if err != nil {
		return nil, err
	}
	return source.Generate(ctx)
}

// AbortDraw cancels a raffle stuck in drawing and refunds its entries
func (e *RaffleEngine) AbortDraw(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error) {
	var raffle *entities.Raffle
	err := e.inTransaction(ctx, "abort_draw", func(uow UnitOfWork) error {
		var err error
		raffle, err = e.drawService(uow).AbortDraw(ctx, raffleID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raffle, nil
}

// GetDrawResult returns the stored draw result with its winners
func (e *RaffleEngine) GetDrawResult(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	var result *entities.DrawResult
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		result, err = e.drawService(uow).GetDrawResult(ctx, raffleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyDraw recomputes a raffle's winners from its stored seed and reports
// whether they match the stored ones
func (e *RaffleEngine) VerifyDraw(ctx context.Context, raffleID int64) (bool, error) {
	var match bool
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		match, err = e.verificationService(uow).VerifyDraw(ctx, raffleID)
		return err
	})
	if err != nil {
		return false, err
	}

	log.WithFields(log.Fields{
		"raffle_id": raffleID,
		"match":     match,
	}).Info("Verified draw")
	return match, nil
}

// AuditDraw returns the full re-verification report of a draw
func (e *RaffleEngine) AuditDraw(ctx context.Context, raffleID int64) (*interfaces.DrawAudit, error) {
	var audit *interfaces.DrawAudit
	err := e.readOnly(ctx, func(uow UnitOfWork) error {
		var err error
		audit, err = e.verificationService(uow).AuditDraw(ctx, raffleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"raffle_id":  raffleID,
		"match":      audit.Match,
		"mismatches": len(audit.Mismatches),
	}).Info("Audited draw")
	return audit, nil
}
