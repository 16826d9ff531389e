package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeRaffleStatusChanged  EventType = "raffle_status_changed"
	EventTypeEntryCreated         EventType = "entry_created"
	EventTypeDrawCompleted        EventType = "draw_completed"
	EventTypePayoutSucceeded      EventType = "payout_succeeded"
	EventTypePayoutFailed         EventType = "payout_failed"
	EventTypePayoutRetryRequested EventType = "payout_retry_requested"
)

// AllEventTypes lists every event type emitted by the engine
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeRaffleStatusChanged,
		EventTypeEntryCreated,
		EventTypeDrawCompleted,
		EventTypePayoutSucceeded,
		EventTypePayoutFailed,
		EventTypePayoutRetryRequested,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// RaffleStatusChangedEvent represents a raffle state machine transition
type RaffleStatusChangedEvent struct {
	RaffleID  int64  `json:"raffle_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason"`
}

func (e RaffleStatusChangedEvent) Type() EventType {
	return EventTypeRaffleStatusChanged
}

// EntryCreatedEvent represents a verified entry purchase
type EntryCreatedEvent struct {
	RaffleID       int64  `json:"raffle_id"`
	EntryID        int64  `json:"entry_id"`
	Wallet         string `json:"wallet"`
	Units          int64  `json:"units"`
	AmountPaid     int64  `json:"amount_paid"`
	TransferTxHash string `json:"transfer_tx_hash"`
}

func (e EntryCreatedEvent) Type() EventType {
	return EventTypeEntryCreated
}

// DrawWinner is a winner summary carried by DrawCompletedEvent
type DrawWinner struct {
	Position    int    `json:"position"`
	Wallet      string `json:"wallet"`
	TicketIndex int64  `json:"ticket_index"`
	TierLabel   string `json:"tier_label"`
	PrizeAmount int64  `json:"prize_amount"`
}

// DrawCompletedEvent represents a persisted draw result
type DrawCompletedEvent struct {
	RaffleID         int64        `json:"raffle_id"`
	RaffleTitle      string       `json:"raffle_title"`
	DrawResultID     int64        `json:"draw_result_id"`
	Seed             string       `json:"seed"`
	RandomnessMode   string       `json:"randomness_mode"`
	BlockNumber      *int64       `json:"block_number,omitempty"`
	BlockHash        *string      `json:"block_hash,omitempty"`
	TotalTickets     int64        `json:"total_tickets"`
	TotalDistributed int64        `json:"total_distributed"`
	Winners          []DrawWinner `json:"winners"`
}

func (e DrawCompletedEvent) Type() EventType {
	return EventTypeDrawCompleted
}

// PayoutSucceededEvent represents a prize transfer that reached paid
type PayoutSucceededEvent struct {
	RaffleID      int64  `json:"raffle_id"`
	WinnerID      int64  `json:"winner_id"`
	PayoutID      int64  `json:"payout_id"`
	Wallet        string `json:"wallet"`
	Amount        int64  `json:"amount"`
	Attempt       int    `json:"attempt"`
	TransactionID string `json:"transaction_id"`
}

func (e PayoutSucceededEvent) Type() EventType {
	return EventTypePayoutSucceeded
}

// PayoutFailedEvent represents a prize transfer that ended in failed
type PayoutFailedEvent struct {
	RaffleID int64  `json:"raffle_id"`
	WinnerID int64  `json:"winner_id"`
	PayoutID int64  `json:"payout_id"`
	Wallet   string `json:"wallet"`
	Amount   int64  `json:"amount"`
	Attempt  int    `json:"attempt"`
	Reason   string `json:"reason"`
}

func (e PayoutFailedEvent) Type() EventType {
	return EventTypePayoutFailed
}

// PayoutRetryRequestedEvent records an operator reopening a failed payout
type PayoutRetryRequestedEvent struct {
	RaffleID    int64  `json:"raffle_id"`
	WinnerID    int64  `json:"winner_id"`
	PayoutID    int64  `json:"payout_id"`
	Attempt     int    `json:"attempt"`
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason"`
}

func (e PayoutRetryRequestedEvent) Type() EventType {
	return EventTypePayoutRetryRequested
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit dispatches an event to all registered handlers asynchronously
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler, handlerIndex int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits the event immediately. It lets the bus stand in wherever
// an event publisher is expected outside a transaction.
func (b *Bus) Publish(event Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// Wait blocks until every handler dispatched so far has returned
func (b *Bus) Wait() {
	b.wg.Wait()
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus after commit.
type TransactionalBus struct {
	mu      sync.Mutex
	real    *Bus
	pending []Event // stashed until Flush
}

// NewTransactionalBus creates a transactional bus that flushes to real
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until Flush or Discard
func (b *TransactionalBus) Publish(e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
	return nil
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush emits all pending events; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	log.WithFields(log.Fields{
		"pendingEventCount": len(pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	if b.real == nil {
		return nil
	}

	// Handlers outlive the transaction context
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	return nil
}

// Discard drops pending events; called after rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
