package testhelpers

import (
	"context"
	"time"

	"raffler/domain/entities"
	"raffler/events"

	"github.com/stretchr/testify/mock"
)

// MockRaffleRepository is a mock implementation of RaffleRepository
type MockRaffleRepository struct {
	mock.Mock
}

func (m *MockRaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	args := m.Called(ctx, raffle)
	return args.Error(0)
}

func (m *MockRaffleRepository) GetByID(ctx context.Context, id int64) (*entities.Raffle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Raffle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) Update(ctx context.Context, raffle *entities.Raffle) error {
	args := m.Called(ctx, raffle)
	return args.Error(0)
}

func (m *MockRaffleRepository) GetByStatus(ctx context.Context, statuses ...entities.RaffleStatus) ([]*entities.Raffle, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) GetDueForActivation(ctx context.Context, now time.Time) ([]*entities.Raffle, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) GetDueForClosing(ctx context.Context, now time.Time) ([]*entities.Raffle, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Raffle), args.Error(1)
}

// MockEntryRepository is a mock implementation of EntryRepository
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *entities.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.Entry, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Entry), args.Error(1)
}

func (m *MockEntryRepository) GetByTransferTxHash(ctx context.Context, txHash string) (*entities.Entry, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Entry), args.Error(1)
}

func (m *MockEntryRepository) HasWalletEntered(ctx context.Context, raffleID int64, wallet string) (bool, error) {
	args := m.Called(ctx, raffleID, wallet)
	return args.Bool(0), args.Error(1)
}

func (m *MockEntryRepository) MarkRefundedByRaffle(ctx context.Context, raffleID int64) (int64, error) {
	args := m.Called(ctx, raffleID)
	return args.Get(0).(int64), args.Error(1)
}

// MockDrawResultRepository is a mock implementation of DrawResultRepository
type MockDrawResultRepository struct {
	mock.Mock
}

func (m *MockDrawResultRepository) Create(ctx context.Context, result *entities.DrawResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockDrawResultRepository) GetByRaffle(ctx context.Context, raffleID int64) (*entities.DrawResult, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DrawResult), args.Error(1)
}

// MockWinnerRepository is a mock implementation of WinnerRepository
type MockWinnerRepository struct {
	mock.Mock
}

func (m *MockWinnerRepository) CreateBatch(ctx context.Context, winners []*entities.Winner) error {
	args := m.Called(ctx, winners)
	return args.Error(0)
}

func (m *MockWinnerRepository) GetByID(ctx context.Context, id int64) (*entities.Winner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Winner), args.Error(1)
}

func (m *MockWinnerRepository) GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.Winner, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Winner), args.Error(1)
}

func (m *MockWinnerRepository) GetByRaffleAndStatus(ctx context.Context, raffleID int64, status entities.PayoutStatus) ([]*entities.Winner, error) {
	args := m.Called(ctx, raffleID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Winner), args.Error(1)
}

func (m *MockWinnerRepository) CompareAndSwapPayoutStatus(ctx context.Context, winnerID int64, from, to entities.PayoutStatus) (bool, error) {
	args := m.Called(ctx, winnerID, from, to)
	return args.Bool(0), args.Error(1)
}

// MockPayoutRecordRepository is a mock implementation of PayoutRecordRepository
type MockPayoutRecordRepository struct {
	mock.Mock
}

func (m *MockPayoutRecordRepository) Create(ctx context.Context, record *entities.PayoutRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPayoutRecordRepository) Update(ctx context.Context, record *entities.PayoutRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPayoutRecordRepository) GetActiveByWinner(ctx context.Context, winnerID int64) (*entities.PayoutRecord, error) {
	args := m.Called(ctx, winnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PayoutRecord), args.Error(1)
}

func (m *MockPayoutRecordRepository) GetByWinner(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error) {
	args := m.Called(ctx, winnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PayoutRecord), args.Error(1)
}

// MockPayoutRetryRepository is a mock implementation of PayoutRetryRepository
type MockPayoutRetryRepository struct {
	mock.Mock
}

func (m *MockPayoutRetryRepository) Create(ctx context.Context, request *entities.PayoutRetryRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockPayoutRetryRepository) GetByWinner(ctx context.Context, winnerID int64) ([]*entities.PayoutRetryRequest, error) {
	args := m.Called(ctx, winnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PayoutRetryRequest), args.Error(1)
}

// MockRaffleStatusHistoryRepository is a mock implementation of RaffleStatusHistoryRepository
type MockRaffleStatusHistoryRepository struct {
	mock.Mock
}

func (m *MockRaffleStatusHistoryRepository) Record(ctx context.Context, change *entities.RaffleStatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockRaffleStatusHistoryRepository) GetByRaffle(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error) {
	args := m.Called(ctx, raffleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.RaffleStatusChange), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
