package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTransactionalBus_FlushDeliversAfterCommit(t *testing.T) {
	defer goleak.VerifyNone(t)

	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	var mu sync.Mutex
	var received []Event
	mainBus.Subscribe(EventTypeDrawCompleted, func(ctx context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
	})

	event := DrawCompletedEvent{RaffleID: 7, Seed: "ab", TotalTickets: 10}
	require.NoError(t, txBus.Publish(event))
	assert.Equal(t, 1, txBus.Pending())

	mainBus.Wait()
	mu.Lock()
	assert.Empty(t, received, "events must not be delivered before flush")
	mu.Unlock()

	require.NoError(t, txBus.Flush(context.Background()))
	mainBus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, event, received[0])
	assert.Equal(t, 0, txBus.Pending())
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	var calls atomic.Int32
	mainBus.SubscribeAll(func(ctx context.Context, event Event) {
		calls.Add(1)
	})

	require.NoError(t, txBus.Publish(PayoutFailedEvent{WinnerID: 1, Reason: "rpc down"}))
	require.NoError(t, txBus.Publish(EntryCreatedEvent{EntryID: 2}))
	txBus.Discard()

	require.NoError(t, txBus.Flush(context.Background()))
	mainBus.Wait()

	assert.Equal(t, int32(0), calls.Load())
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewBus()

	var delivered atomic.Bool
	bus.Subscribe(EventTypePayoutSucceeded, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypePayoutSucceeded, func(ctx context.Context, event Event) {
		delivered.Store(true)
	})

	require.NoError(t, bus.Publish(PayoutSucceededEvent{WinnerID: 3, TransactionID: "tx"}))
	bus.Wait()

	assert.True(t, delivered.Load(), "second handler should still run")
}

func TestAllEventTypes_MatchEventImplementations(t *testing.T) {
	t.Parallel()

	implemented := []Event{
		RaffleStatusChangedEvent{},
		EntryCreatedEvent{},
		DrawCompletedEvent{},
		PayoutSucceededEvent{},
		PayoutFailedEvent{},
		PayoutRetryRequestedEvent{},
	}

	var types []EventType
	for _, e := range implemented {
		types = append(types, e.Type())
	}
	assert.ElementsMatch(t, AllEventTypes(), types)
}
