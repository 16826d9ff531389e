package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"raffler/domain/entities"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// DrawEngine is the part of the engine the draw worker drives
type DrawEngine interface {
	ActivateDue(ctx context.Context) ([]*entities.Raffle, error)
	CloseDue(ctx context.Context) ([]*entities.Raffle, error)
	RafflesAwaitingDraw(ctx context.Context) ([]*entities.Raffle, error)
	InitiateDraw(ctx context.Context, raffleID int64) (*entities.DrawResult, error)
	SendAllPayouts(ctx context.Context, raffleID int64) (*BatchResult, error)
}

// DrawWorker moves raffles through their schedule: it opens raffles whose
// start time passed, closes those whose end time passed, draws closed ones
// and, with auto payout on, runs one payout batch per fresh draw. Failed
// payouts are left for an operator.
type DrawWorker struct {
	engine     DrawEngine
	interval   time.Duration
	autoPayout bool
	clock      clock.Clock

	// parked holds raffles whose draw cannot succeed until an operator acts.
	// They are skipped until they leave the awaiting list.
	mu     sync.Mutex
	parked map[int64]struct{}
}

// NewDrawWorker creates a new draw worker
func NewDrawWorker(engine DrawEngine, interval time.Duration, autoPayout bool, clk clock.Clock) *DrawWorker {
	return &DrawWorker{
		engine:     engine,
		interval:   interval,
		autoPayout: autoPayout,
		clock:      clk,
		parked:     make(map[int64]struct{}),
	}
}

// Start runs the worker until ctx is cancelled or the returned stop func is
// called. Stop blocks until the current tick has finished.
func (w *DrawWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})
	done := make(chan struct{})
	ticker := w.clock.Ticker(w.interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		log.WithField("interval", w.interval).Info("Draw worker started")

		for {
			w.RunOnce(ctx)

			select {
			case <-ctx.Done():
				log.Info("Draw worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Draw worker shutting down (stop requested)...")
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(stopChan)
		<-done
	}
}

// TickSummary counts what one worker pass did
type TickSummary struct {
	Activated int
	Closed    int
	Drawn     int
	DrawFails int
	Skipped   int
	Batches   int
}

// RunOnce performs a single pass over the schedule
func (w *DrawWorker) RunOnce(ctx context.Context) TickSummary {
	var summary TickSummary

	activated, err := w.engine.ActivateDue(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to activate due raffles")
	}
	summary.Activated = len(activated)

	closed, err := w.engine.CloseDue(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to close due raffles")
	}
	summary.Closed = len(closed)

	awaiting, err := w.engine.RafflesAwaitingDraw(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list raffles awaiting draw")
		return summary
	}

	w.forgetResolved(awaiting)

	for _, raffle := range awaiting {
		if ctx.Err() != nil {
			return summary
		}
		if w.isParked(raffle.ID) {
			summary.Skipped++
			continue
		}

		result, err := w.engine.InitiateDraw(ctx, raffle.ID)
		if err != nil {
			summary.DrawFails++
			if needsOperator(err) {
				w.park(raffle.ID)
				log.WithFields(log.Fields{
					"raffle_id": raffle.ID,
					"status":    raffle.Status,
				}).WithError(err).Warn("Raffle cannot be drawn, skipping until an operator cancels or aborts it")
				continue
			}
			log.WithFields(log.Fields{
				"raffle_id": raffle.ID,
				"status":    raffle.Status,
			}).WithError(err).Error("Error processing raffle draw")
			continue
		}
		summary.Drawn++

		log.WithFields(log.Fields{
			"raffle_id":         raffle.ID,
			"seed":              result.Seed,
			"total_tickets":     result.TotalTickets,
			"total_distributed": result.TotalPrizeDistributed,
			"winner_count":      len(result.Winners),
		}).Info("Raffle draw completed")

		if !w.autoPayout {
			continue
		}
		batch, err := w.engine.SendAllPayouts(ctx, raffle.ID)
		if err != nil {
			log.WithField("raffle_id", raffle.ID).WithError(err).Error("Failed to run payout batch")
			continue
		}
		summary.Batches++
		if batch.Failed > 0 || batch.Rejected > 0 {
			log.WithFields(log.Fields{
				"raffle_id": raffle.ID,
				"failed":    batch.Failed,
				"rejected":  batch.Rejected,
			}).Warn("Some payouts did not complete and need an operator retry")
		}
	}

	if summary != (TickSummary{Skipped: summary.Skipped}) {
		log.WithFields(log.Fields{
			"activated":  summary.Activated,
			"closed":     summary.Closed,
			"drawn":      summary.Drawn,
			"draw_fails": summary.DrawFails,
			"skipped":    summary.Skipped,
			"batches":    summary.Batches,
		}).Info("Completed draw worker pass")
	}
	return summary
}

// needsOperator reports whether a draw failed for a reason no later tick can
// fix on its own
func needsOperator(err error) bool {
	if errors.Is(err, entities.ErrInsufficientTickets) {
		return true
	}
	var re *entities.RaffleError
	return errors.As(err, &re) &&
		re.Kind == entities.ErrorKindRaffleNotDrawable &&
		re.Reason == string(entities.DrawReasonNoEntries)
}

func (w *DrawWorker) isParked(raffleID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.parked[raffleID]
	return ok
}

func (w *DrawWorker) park(raffleID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parked[raffleID] = struct{}{}
}

// forgetResolved drops parked raffles that are no longer awaiting a draw
func (w *DrawWorker) forgetResolved(awaiting []*entities.Raffle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.parked) == 0 {
		return
	}
	still := make(map[int64]struct{}, len(awaiting))
	for _, raffle := range awaiting {
		still[raffle.ID] = struct{}{}
	}
	for id := range w.parked {
		if _, ok := still[id]; !ok {
			delete(w.parked, id)
		}
	}
}
