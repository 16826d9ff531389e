package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"raffler/events"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

// recordingPublisher captures messages instead of sending them
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) snapshot() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func TestSubjectFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "raffler.draw_completed", SubjectFor(events.EventTypeDrawCompleted))
	assert.Len(t, AllSubjects(), len(events.AllEventTypes()))
	assert.Contains(t, AllSubjects(), "raffler.payout_retry_requested")
}

func TestNATSEventPublisher_Envelope(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rec := &recordingPublisher{}
	publisher := NewNATSEventPublisher(rec, clk)

	event := events.PayoutSucceededEvent{RaffleID: 7, WinnerID: 3, Amount: 975, Attempt: 1, TransactionID: "abc"}
	require.NoError(t, publisher.Publish(event))

	msgs := rec.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "raffler.payout_succeeded", msgs[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msgs[0].data, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "payout_succeeded", envelope.EventType)
	assert.Equal(t, "raffler", envelope.SourceService)
	assert.True(t, envelope.Timestamp.Equal(clk.Now()))

	var payload events.PayoutSucceededEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	t.Parallel()

	rec := &recordingPublisher{err: errors.New("no responders")}
	publisher := NewNATSEventPublisher(rec, clock.NewMock())

	err := publisher.Publish(events.EntryCreatedEvent{RaffleID: 1})
	assert.ErrorContains(t, err, "no responders")
}

func TestNATSEventPublisher_AttachForwardsBusEvents(t *testing.T) {
	t.Parallel()

	rec := &recordingPublisher{}
	bus := events.NewBus()
	NewNATSEventPublisher(rec, clock.NewMock()).Attach(bus)

	bus.Emit(context.Background(), events.RaffleStatusChangedEvent{RaffleID: 1, OldStatus: "active", NewStatus: "ending"})
	bus.Emit(context.Background(), events.DrawCompletedEvent{RaffleID: 1})
	bus.Wait()

	msgs := rec.snapshot()
	require.Len(t, msgs, 2)
	subjects := []string{msgs[0].subject, msgs[1].subject}
	assert.ElementsMatch(t, []string{"raffler.raffle_status_changed", "raffler.draw_completed"}, subjects)
}
