package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
	"raffler/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEntryServiceForTest(m *TestMocks) interfaces.EntryService {
	return NewEntryService(m.RaffleRepo, m.EntryRepo, m.EventPublisher, m.Clock)
}

func entryParams() interfaces.EntryParams {
	return interfaces.EntryParams{
		RaffleID:       1,
		Wallet:         "DWalletA",
		Units:          5,
		AmountPaid:     500,
		TransferTxHash: "hash-1",
	}
}

func TestEntryService_RecordEntry(t *testing.T) {
	t.Parallel()

	m := NewTestMocks()
	raffle := createTestRaffle(1, func(r *entities.Raffle) {
		r.TotalEntries = 3
		r.PoolValue = 300
		r.TotalParticipants = 1
	})
	m.RaffleRepo.On("GetByIDForUpdate", mock.Anything, int64(1)).Return(raffle, nil)
	m.EntryRepo.On("GetByTransferTxHash", mock.Anything, "hash-1").Return(nil, nil)
	m.EntryRepo.On("HasWalletEntered", mock.Anything, int64(1), "DWalletA").Return(false, nil)
	m.EntryRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Entry")).
		Run(func(args mock.Arguments) { args.Get(1).(*entities.Entry).ID = 11 }).
		Return(nil)
	m.RaffleRepo.On("Update", mock.Anything, raffle).Return(nil)
	m.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		ev, ok := e.(events.EntryCreatedEvent)
		return ok && ev.EntryID == 11 && ev.Units == 5
	})).Return(nil)

	entry, err := newEntryServiceForTest(m).RecordEntry(context.Background(), entryParams())
	require.NoError(t, err)

	assert.Equal(t, int64(11), entry.ID)
	assert.Equal(t, int64(8), raffle.TotalEntries)
	assert.Equal(t, int64(800), raffle.PoolValue)
	assert.Equal(t, int64(2), raffle.TotalParticipants)
	m.AssertAllExpectations(t)
}

func TestEntryService_RecordEntry_ReturningWalletNotCountedTwice(t *testing.T) {
	t.Parallel()

	m := NewTestMocks()
	raffle := createTestRaffle(1, func(r *entities.Raffle) { r.TotalParticipants = 1 })
	m.RaffleRepo.On("GetByIDForUpdate", mock.Anything, int64(1)).Return(raffle, nil)
	m.EntryRepo.On("GetByTransferTxHash", mock.Anything, "hash-1").Return(nil, nil)
	m.EntryRepo.On("HasWalletEntered", mock.Anything, int64(1), "DWalletA").Return(true, nil)
	m.EntryRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.RaffleRepo.On("Update", mock.Anything, raffle).Return(nil)
	m.EventPublisher.On("Publish", mock.Anything).Return(nil)

	_, err := newEntryServiceForTest(m).RecordEntry(context.Background(), entryParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), raffle.TotalParticipants)
}

func TestEntryService_RecordEntry_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		params     func() interfaces.EntryParams
		raffle     *entities.Raffle
		setupMocks func(*TestMocks)
		wantErr    error
	}{
		{
			name:    "paused raffle",
			params:  entryParams,
			raffle:  createTestRaffle(1, withStatus(entities.RaffleStatusPaused)),
			wantErr: entities.ErrEntryRejected,
		},
		{
			name:    "drawing raffle",
			params:  entryParams,
			raffle:  createTestRaffle(1, withStatus(entities.RaffleStatusDrawing)),
			wantErr: entities.ErrEntryRejected,
		},
		{
			name:   "window not open yet",
			params: entryParams,
			raffle: createTestRaffle(1, func(r *entities.Raffle) {
				r.StartTime = testEpoch.Add(time.Minute)
			}),
			wantErr: entities.ErrEntryRejected,
		},
		{
			name:    "window closed at end time",
			params:  entryParams,
			raffle:  createTestRaffle(1, func(r *entities.Raffle) { r.EndTime = testEpoch }),
			wantErr: entities.ErrEntryRejected,
		},
		{
			name: "amount does not match units",
			params: func() interfaces.EntryParams {
				p := entryParams()
				p.AmountPaid = 499
				return p
			},
			raffle:  createTestRaffle(1),
			wantErr: entities.ErrEntryRejected,
		},
		{
			name: "zero units",
			params: func() interfaces.EntryParams {
				p := entryParams()
				p.Units = 0
				p.AmountPaid = 0
				return p
			},
			raffle:  createTestRaffle(1),
			wantErr: entities.ErrEntryRejected,
		},
		{
			name:   "transfer hash already used",
			params: entryParams,
			raffle: createTestRaffle(1),
			setupMocks: func(m *TestMocks) {
				m.EntryRepo.On("GetByTransferTxHash", mock.Anything, "hash-1").Return(&entities.Entry{ID: 3}, nil)
			},
			wantErr: entities.ErrDuplicateTransaction,
		},
		{
			name:    "unknown raffle",
			params:  entryParams,
			wantErr: entities.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewTestMocks()
			if tt.raffle != nil {
				m.RaffleRepo.On("GetByIDForUpdate", mock.Anything, int64(1)).Return(tt.raffle, nil)
			} else {
				m.RaffleRepo.On("GetByIDForUpdate", mock.Anything, int64(1)).Return(nil, nil)
			}
			if tt.setupMocks != nil {
				tt.setupMocks(m)
			}

			entry, err := newEntryServiceForTest(m).RecordEntry(context.Background(), tt.params())
			assert.Nil(t, entry)
			assert.ErrorIs(t, err, tt.wantErr)
			m.EntryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			m.RaffleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestEntryService_RecordEntry_RepositoryFailure(t *testing.T) {
	t.Parallel()

	m := NewTestMocks()
	m.RaffleRepo.On("GetByIDForUpdate", mock.Anything, int64(1)).Return(nil, errors.New("connection reset"))

	_, err := newEntryServiceForTest(m).RecordEntry(context.Background(), entryParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to lock raffle")
	assert.Empty(t, entities.KindOf(err))
}
