package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"raffler/application"
	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/domain/services"
	"raffler/domain/testhelpers"
	"raffler/events"
	"raffler/infrastructure/cache"
	"raffler/repository"
	"raffler/repository/testutil"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	platformAddress = "DPlatform"
	// nextUniformInt(0, 10) on this seed yields 6
	seedPickingSix = "391790355538ede380cce0726d47ed1b98f15369865cbf1be7e495f27165af3a"
)

var engineEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type engineHarness struct {
	engine       *application.RaffleEngine
	clock        *clock.Mock
	chain        *testhelpers.MockChainReader
	transfers    *testhelpers.MockTransferExecutor
	opaque       *testhelpers.MockRandomnessSource
	verifiable   *testhelpers.MockRandomnessSource
	reservations *cache.HashReservations
	bus          *events.Bus
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()
	testDB := testutil.SetupTestDatabase(t)

	clk := clock.NewMock()
	clk.Set(engineEpoch)

	h := &engineHarness{
		clock:        clk,
		chain:        new(testhelpers.MockChainReader),
		transfers:    new(testhelpers.MockTransferExecutor),
		opaque:       new(testhelpers.MockRandomnessSource),
		verifiable:   new(testhelpers.MockRandomnessSource),
		reservations: cache.NewHashReservations(time.Minute, clk),
		bus:          events.NewBus(),
	}

	h.engine = application.NewRaffleEngine(
		repository.NewUnitOfWorkFactory(testDB.DB, h.bus),
		application.EngineDeps{
			Chain:     h.chain,
			Transfers: h.transfers,
			Randomness: services.RandomnessSources{
				Verifiable: h.verifiable,
				Opaque:     h.opaque,
			},
			Receipts:     cache.NewReceiptCache(30*time.Second, clk),
			Reservations: h.reservations,
		},
		application.EngineConfig{
			PlatformAddress:       platformAddress,
			MinConfirmations:      1,
			RPCTimeout:            time.Second,
			PayoutTimeout:         time.Second,
			PayoutConcurrency:     2,
			DefaultRandomnessMode: entities.RandomnessModeOpaque,
		},
		clk,
	)
	return h
}

func (h *engineHarness) createRaffle(t *testing.T, winnerCount int, feeBps int64) *entities.Raffle {
	t.Helper()
	raffle, err := h.engine.CreateRaffle(context.Background(), interfaces.CreateRaffleParams{
		Title:          "Spring Raffle",
		EntryPrice:     100,
		StartTime:      engineEpoch,
		EndTime:        engineEpoch.Add(time.Hour),
		WinnerCount:    winnerCount,
		PlatformFeeBps: feeBps,
	})
	require.NoError(t, err)
	require.Equal(t, entities.RaffleStatusActive, raffle.Status, "raffle starting now should open immediately")
	return raffle
}

// buy records an entry backed by a matching confirmed transfer
func (h *engineHarness) buy(t *testing.T, raffleID int64, wallet string, units int64) *entities.Entry {
	t.Helper()
	txHash := "tx-" + wallet
	h.chain.On("GetTransaction", mock.Anything, txHash).Return(&entities.TransferReceipt{
		TxHash:        txHash,
		Succeeded:     true,
		Confirmations: 3,
		Sender:        wallet,
		Outputs:       []entities.TransferOutput{{Address: platformAddress, Amount: units * 100}},
	}, nil).Once()

	entry, err := h.engine.CreateEntry(context.Background(), interfaces.EntryParams{
		RaffleID:       raffleID,
		Wallet:         wallet,
		Units:          units,
		AmountPaid:     units * 100,
		TransferTxHash: txHash,
	})
	require.NoError(t, err)
	return entry
}

func TestRaffleEngine_DrawAndPayoutLifecycle(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	raffle := h.createRaffle(t, 1, 250)
	assert.Equal(t, entities.RandomnessModeOpaque, raffle.RandomnessMode, "default mode should be stored on the raffle")

	h.buy(t, raffle.ID, "A", 5)
	h.buy(t, raffle.ID, "B", 3)
	h.buy(t, raffle.ID, "C", 2)

	t.Run("reused transfer hash is rejected", func(t *testing.T) {
		_, err := h.engine.CreateEntry(ctx, interfaces.EntryParams{
			RaffleID:       raffle.ID,
			Wallet:         "B",
			Units:          3,
			AmountPaid:     300,
			TransferTxHash: "tx-B",
		})
		assert.ErrorIs(t, err, entities.ErrDuplicateTransaction)
	})

	t.Run("draw before end time is rejected", func(t *testing.T) {
		_, err := h.engine.InitiateDraw(ctx, raffle.ID)
		assert.ErrorIs(t, err, entities.ErrRaffleNotDrawable)
	})

	h.clock.Add(time.Hour)
	h.opaque.On("Generate", mock.Anything).Return(&entities.Seed{
		Value: seedPickingSix,
		Mode:  entities.RandomnessModeOpaque,
	}, nil).Once()

	result, err := h.engine.InitiateDraw(ctx, raffle.ID)
	require.NoError(t, err)
	require.Len(t, result.Winners, 1)

	winner := result.Winners[0]
	assert.Equal(t, "B", winner.Wallet)
	assert.Equal(t, int64(6), winner.TicketIndex)
	assert.Equal(t, "1st", winner.TierLabel)
	assert.Equal(t, int64(975), winner.PrizeAmount)
	assert.Equal(t, int64(10), result.TotalTickets)

	t.Run("draw is idempotent", func(t *testing.T) {
		again, err := h.engine.InitiateDraw(ctx, raffle.ID)
		require.NoError(t, err)
		assert.Equal(t, result.ID, again.ID)
		h.opaque.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("draw verifies", func(t *testing.T) {
		match, err := h.engine.VerifyDraw(ctx, raffle.ID)
		require.NoError(t, err)
		assert.True(t, match)
	})

	// First transfer fails, operator retries, second succeeds
	h.transfers.On("Send", mock.Anything, "B", int64(975), mock.Anything).Return("", errors.New("wallet locked")).Once()
	failed, err := h.engine.SendPayout(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PayoutStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Contains(t, *failed.FailureReason, "wallet locked")
	require.NotEmpty(t, failed.Reference)
	h.transfers.AssertCalled(t, "Send", mock.Anything, "B", int64(975), failed.Reference)

	_, err = h.engine.SendPayout(ctx, winner.ID)
	assert.ErrorIs(t, err, entities.ErrPayoutNotRetryable, "failed payouts need an explicit retry request")

	h.transfers.On("FindTransfer", mock.Anything, failed.Reference).Return("", nil).Once()
	retry, err := h.engine.RequestRetry(ctx, interfaces.RetryRequest{WinnerID: winner.ID, RequestedBy: "ops", Reason: "wallet unlocked"})
	require.NoError(t, err)
	assert.Equal(t, entities.PayoutStatusPending, retry.Status)
	assert.Equal(t, 2, retry.Attempt)

	assert.NotEqual(t, failed.Reference, retry.Reference, "each attempt carries its own reference")

	h.transfers.On("Send", mock.Anything, "B", int64(975), retry.Reference).Return("doge-tx-2", nil).Once()
	paid, err := h.engine.SendPayout(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PayoutStatusPaid, paid.Status)
	require.NotNil(t, paid.TransactionID)
	assert.Equal(t, "doge-tx-2", *paid.TransactionID)

	_, err = h.engine.SendPayout(ctx, winner.ID)
	assert.ErrorIs(t, err, entities.ErrPayoutAlreadyProcessed)
	h.transfers.AssertNumberOfCalls(t, "Send", 2)

	history, err := h.engine.GetPayoutHistory(ctx, winner.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	paidCount := 0
	for _, record := range history {
		if record.Status == entities.PayoutStatusPaid {
			paidCount++
		}
	}
	assert.Equal(t, 1, paidCount)

	statuses, err := h.engine.GetStatusHistory(ctx, raffle.ID)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	assert.Equal(t, entities.RaffleStatusCompleted, statuses[len(statuses)-1].ToStatus)
}

func TestRaffleEngine_SendAllPayoutsIsolatesFailures(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	raffle := h.createRaffle(t, 3, 0)
	h.buy(t, raffle.ID, "A", 5)
	h.buy(t, raffle.ID, "B", 3)
	h.buy(t, raffle.ID, "C", 2)

	h.clock.Add(time.Hour)
	h.opaque.On("Generate", mock.Anything).Return(&entities.Seed{
		Value: seedPickingSix,
		Mode:  entities.RandomnessModeOpaque,
	}, nil).Once()

	result, err := h.engine.InitiateDraw(ctx, raffle.ID)
	require.NoError(t, err)
	require.Len(t, result.Winners, 3)
	assert.Equal(t, int64(1000), result.TotalPrizeDistributed)

	h.transfers.On("Send", mock.Anything, "A", mock.Anything, mock.Anything).Return("tx-a", nil).Once()
	h.transfers.On("Send", mock.Anything, "B", mock.Anything, mock.Anything).Return("", errors.New("node rejected transfer")).Once()
	h.transfers.On("Send", mock.Anything, "C", mock.Anything, mock.Anything).Return("tx-c", nil).Once()

	batch, err := h.engine.SendAllPayouts(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Attempted)
	assert.Equal(t, 2, batch.Paid)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 0, batch.Rejected)

	winners, err := h.engine.GetWinners(ctx, raffle.ID)
	require.NoError(t, err)
	for _, w := range winners {
		if w.Wallet == "B" {
			assert.Equal(t, entities.PayoutStatusFailed, w.PayoutStatus)
		} else {
			assert.Equal(t, entities.PayoutStatusPaid, w.PayoutStatus)
		}
	}

	again, err := h.engine.SendAllPayouts(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Attempted, "failed winners are never retried automatically")
	h.transfers.AssertNumberOfCalls(t, "Send", 3)
}

// drawSingleWinner runs a one-winner draw that B wins
func (h *engineHarness) drawSingleWinner(t *testing.T) *entities.Winner {
	t.Helper()
	raffle := h.createRaffle(t, 1, 250)
	h.buy(t, raffle.ID, "A", 5)
	h.buy(t, raffle.ID, "B", 3)
	h.buy(t, raffle.ID, "C", 2)

	h.clock.Add(time.Hour)
	h.opaque.On("Generate", mock.Anything).Return(&entities.Seed{
		Value: seedPickingSix,
		Mode:  entities.RandomnessModeOpaque,
	}, nil).Once()

	result, err := h.engine.InitiateDraw(context.Background(), raffle.ID)
	require.NoError(t, err)
	require.Len(t, result.Winners, 1)
	return result.Winners[0]
}

func TestRaffleEngine_ConcurrentPayoutsTransferOnce(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	winner := h.drawSingleWinner(t)

	h.transfers.On("Send", mock.Anything, "B", int64(975), mock.Anything).
		After(20*time.Millisecond).
		Return("doge-tx-once", nil)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		paid     int
		rejected []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(batch bool) {
			defer wg.Done()
			<-start

			if batch {
				result, err := h.engine.SendAllPayouts(ctx, winner.RaffleID)
				mu.Lock()
				defer mu.Unlock()
				if assert.NoError(t, err) {
					paid += result.Paid
					for _, o := range result.Outcomes {
						if o.Err() != nil {
							rejected = append(rejected, o.Err())
						}
					}
				}
				return
			}

			record, err := h.engine.SendPayout(ctx, winner.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected = append(rejected, err)
				return
			}
			if record.Status == entities.PayoutStatusPaid {
				paid++
			}
		}(i%2 == 0)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, paid)
	for _, err := range rejected {
		assert.True(t,
			errors.Is(err, entities.ErrPayoutAlreadyProcessed) || errors.Is(err, entities.ErrPayoutInProgress),
			"unexpected rejection: %v", err)
	}
	h.transfers.AssertNumberOfCalls(t, "Send", 1)

	history, err := h.engine.GetPayoutHistory(ctx, winner.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entities.PayoutStatusPaid, history[0].Status)
}

func TestRaffleEngine_RetryRefusedWhenFailedTransferLanded(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	winner := h.drawSingleWinner(t)

	h.transfers.On("Send", mock.Anything, "B", int64(975), mock.Anything).
		Return("", context.DeadlineExceeded).Once()
	failed, err := h.engine.SendPayout(ctx, winner.ID)
	require.NoError(t, err)
	require.Equal(t, entities.PayoutStatusFailed, failed.Status)

	h.transfers.On("FindTransfer", mock.Anything, failed.Reference).Return("doge-tx-late", nil).Once()
	_, err = h.engine.RequestRetry(ctx, interfaces.RetryRequest{WinnerID: winner.ID, RequestedBy: "ops"})
	assert.ErrorIs(t, err, entities.ErrPayoutAlreadyProcessed)
	assert.Contains(t, err.Error(), "doge-tx-late")

	winners, err := h.engine.GetWinners(ctx, winner.RaffleID)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, entities.PayoutStatusFailed, winners[0].PayoutStatus)

	history, err := h.engine.GetPayoutHistory(ctx, winner.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "no new attempt is opened")
	h.transfers.AssertNumberOfCalls(t, "Send", 1)
}

func TestRaffleEngine_DrawRejectsTooFewWalletsWithoutMutation(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	raffle := h.createRaffle(t, 3, 0)
	h.buy(t, raffle.ID, "A", 5)
	h.buy(t, raffle.ID, "B", 3)

	h.clock.Add(time.Hour)
	_, err := h.engine.InitiateDraw(ctx, raffle.ID)
	assert.ErrorIs(t, err, entities.ErrInsufficientTickets)
	h.opaque.AssertNotCalled(t, "Generate", mock.Anything)

	after, err := h.engine.GetRaffle(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RaffleStatusActive, after.Status)
	assert.False(t, after.HasCommittedSeed())
}

func TestRaffleEngine_RandomnessOutageThenAbort(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	raffle, err := h.engine.CreateRaffle(ctx, interfaces.CreateRaffleParams{
		Title:          "Chain Raffle",
		EntryPrice:     100,
		StartTime:      engineEpoch,
		EndTime:        engineEpoch.Add(time.Hour),
		WinnerCount:    1,
		RandomnessMode: entities.RandomnessModeVerifiable,
	})
	require.NoError(t, err)
	h.buy(t, raffle.ID, "A", 2)

	h.clock.Add(time.Hour)
	h.verifiable.On("Generate", mock.Anything).
		Return(nil, entities.NewRandomnessUnavailableError(errors.New("rpc timeout"))).Once()

	_, err = h.engine.InitiateDraw(ctx, raffle.ID)
	assert.ErrorIs(t, err, entities.ErrRandomnessUnavailable)
	h.opaque.AssertNotCalled(t, "Generate", mock.Anything)

	stuck, err := h.engine.GetRaffle(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RaffleStatusDrawing, stuck.Status)
	assert.False(t, stuck.HasCommittedSeed())

	aborted, err := h.engine.AbortDraw(ctx, raffle.ID, "chain node down")
	require.NoError(t, err)
	assert.Equal(t, entities.RaffleStatusCancelled, aborted.Status)

	entries, err := h.engine.GetEntries(ctx, raffle.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Refunded)

	_, err = h.engine.InitiateDraw(ctx, raffle.ID)
	assert.ErrorIs(t, err, entities.ErrRaffleNotDrawable)
}

func TestRaffleEngine_CreateEntryRejections(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	raffle := h.createRaffle(t, 1, 0)

	t.Run("hash reserved by a concurrent submission", func(t *testing.T) {
		require.True(t, h.reservations.Reserve("tx-held"))
		defer h.reservations.Release("tx-held")

		_, err := h.engine.CreateEntry(ctx, interfaces.EntryParams{
			RaffleID: raffle.ID, Wallet: "A", Units: 1, AmountPaid: 100, TransferTxHash: "tx-held",
		})
		assert.ErrorIs(t, err, entities.ErrDuplicateTransaction)
	})

	t.Run("amount does not match units", func(t *testing.T) {
		_, err := h.engine.CreateEntry(ctx, interfaces.EntryParams{
			RaffleID: raffle.ID, Wallet: "A", Units: 2, AmountPaid: 150, TransferTxHash: "tx-short",
		})
		assert.ErrorIs(t, err, entities.ErrEntryRejected)
	})

	t.Run("transfer paid someone else", func(t *testing.T) {
		h.chain.On("GetTransaction", mock.Anything, "tx-elsewhere").Return(&entities.TransferReceipt{
			TxHash:        "tx-elsewhere",
			Succeeded:     true,
			Confirmations: 3,
			Sender:        "A",
			Outputs:       []entities.TransferOutput{{Address: "DOther", Amount: 100}},
		}, nil).Once()

		_, err := h.engine.CreateEntry(ctx, interfaces.EntryParams{
			RaffleID: raffle.ID, Wallet: "A", Units: 1, AmountPaid: 100, TransferTxHash: "tx-elsewhere",
		})
		assert.ErrorIs(t, err, entities.ErrTransferVerificationFailed)
	})

	t.Run("raffle not found", func(t *testing.T) {
		_, err := h.engine.CreateEntry(ctx, interfaces.EntryParams{
			RaffleID: 999999, Wallet: "A", Units: 1, AmountPaid: 100, TransferTxHash: "tx-nowhere",
		})
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("paused raffle", func(t *testing.T) {
		_, err := h.engine.Pause(ctx, raffle.ID)
		require.NoError(t, err)
		defer func() {
			_, err := h.engine.Resume(ctx, raffle.ID)
			require.NoError(t, err)
		}()

		_, err = h.engine.CreateEntry(ctx, interfaces.EntryParams{
			RaffleID: raffle.ID, Wallet: "A", Units: 1, AmountPaid: 100, TransferTxHash: "tx-paused",
		})
		assert.ErrorIs(t, err, entities.ErrEntryRejected)
	})

	entries, err := h.engine.GetEntries(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
