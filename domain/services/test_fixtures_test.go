package services

import (
	"testing"
	"time"

	"raffler/domain/entities"
	"raffler/domain/testhelpers"
	"raffler/events"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/mock"
)

// TestMocks aggregates every mock a service test may need
type TestMocks struct {
	RaffleRepo     *testhelpers.MockRaffleRepository
	EntryRepo      *testhelpers.MockEntryRepository
	DrawResultRepo *testhelpers.MockDrawResultRepository
	WinnerRepo     *testhelpers.MockWinnerRepository
	PayoutRepo     *testhelpers.MockPayoutRecordRepository
	RetryRepo      *testhelpers.MockPayoutRetryRepository
	HistoryRepo    *testhelpers.MockRaffleStatusHistoryRepository
	EventPublisher *testhelpers.MockEventPublisher
	Chain          *testhelpers.MockChainReader
	Receipts       *testhelpers.MockReceiptCache
	Clock          *clock.Mock
}

// NewTestMocks creates a new set of mocks with the clock at testEpoch
func NewTestMocks() *TestMocks {
	clk := clock.NewMock()
	clk.Set(testEpoch)
	return &TestMocks{
		RaffleRepo:     new(testhelpers.MockRaffleRepository),
		EntryRepo:      new(testhelpers.MockEntryRepository),
		DrawResultRepo: new(testhelpers.MockDrawResultRepository),
		WinnerRepo:     new(testhelpers.MockWinnerRepository),
		PayoutRepo:     new(testhelpers.MockPayoutRecordRepository),
		RetryRepo:      new(testhelpers.MockPayoutRetryRepository),
		HistoryRepo:    new(testhelpers.MockRaffleStatusHistoryRepository),
		EventPublisher: new(testhelpers.MockEventPublisher),
		Chain:          new(testhelpers.MockChainReader),
		Receipts:       new(testhelpers.MockReceiptCache),
		Clock:          clk,
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.RaffleRepo.AssertExpectations(t)
	m.EntryRepo.AssertExpectations(t)
	m.DrawResultRepo.AssertExpectations(t)
	m.WinnerRepo.AssertExpectations(t)
	m.PayoutRepo.AssertExpectations(t)
	m.RetryRepo.AssertExpectations(t)
	m.HistoryRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
	m.Chain.AssertExpectations(t)
	m.Receipts.AssertExpectations(t)
}

// ExpectTransition sets up the writes every raffle status change makes
func (m *TestMocks) ExpectTransition(from, to entities.RaffleStatus) {
	m.RaffleRepo.On("Update", mock.Anything, mock.MatchedBy(func(r *entities.Raffle) bool {
		return r.Status == to
	})).Return(nil).Once()
	m.HistoryRepo.On("Record", mock.Anything, mock.MatchedBy(func(c *entities.RaffleStatusChange) bool {
		return c.FromStatus == from && c.ToStatus == to
	})).Return(nil).Once()
	m.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		ev, ok := e.(events.RaffleStatusChangedEvent)
		return ok && ev.OldStatus == string(from) && ev.NewStatus == string(to)
	})).Return(nil).Once()
}

// createTestRaffle returns an active standard raffle whose window spans testEpoch
func createTestRaffle(id int64, opts ...func(*entities.Raffle)) *entities.Raffle {
	raffle := &entities.Raffle{
		ID:              id,
		Type:            entities.RaffleTypeStandard,
		Title:           "Weekly raffle",
		EntryPrice:      100,
		StartTime:       testEpoch.Add(-24 * time.Hour),
		EndTime:         testEpoch.Add(24 * time.Hour),
		WinnerCount:     1,
		PlatformFeeBps:  250,
		RandomnessMode:  entities.RandomnessModeOpaque,
		OneWinPerWallet: true,
		Status:          entities.RaffleStatusActive,
	}
	for _, opt := range opts {
		opt(raffle)
	}
	return raffle
}

func withStatus(status entities.RaffleStatus) func(*entities.Raffle) {
	return func(r *entities.Raffle) { r.Status = status }
}

func withEnded() func(*entities.Raffle) {
	return func(r *entities.Raffle) { r.EndTime = testEpoch.Add(-time.Minute) }
}

func withSeed(seed string) func(*entities.Raffle) {
	return func(r *entities.Raffle) { r.PendingSeed = &seed }
}

func createTestWinner(id int64, status entities.PayoutStatus) *entities.Winner {
	return &entities.Winner{
		ID:           id,
		RaffleID:     1,
		DrawResultID: 1,
		Position:     1,
		Wallet:       "DWinnerWallet",
		TicketIndex:  6,
		TotalTickets: 10,
		EntryID:      2,
		TierLabel:    "1st",
		PrizeAmount:  975,
		PayoutStatus: status,
	}
}
