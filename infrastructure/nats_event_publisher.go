package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raffler/events"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// EventStreamName is the JetStream stream holding every raffle event
	EventStreamName = "raffler_events"
	subjectPrefix   = "raffler."
	sourceService   = "raffler"
)

// EventEnvelope wraps an event payload for the message bus
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// SubjectFor maps an event type to its message bus subject
func SubjectFor(eventType events.EventType) string {
	return subjectPrefix + string(eventType)
}

// AllSubjects returns every subject the engine publishes to
func AllSubjects() []string {
	types := events.AllEventTypes()
	subjects := make([]string, 0, len(types))
	for _, t := range types {
		subjects = append(subjects, SubjectFor(t))
	}
	return subjects
}

// MessagePublisher sends raw bytes to a subject. NATSClient implements it.
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSEventPublisher forwards committed domain events to the message bus
type NATSEventPublisher struct {
	publisher MessagePublisher
	clock     clock.Clock
}

// NewNATSEventPublisher creates a new event publisher over publisher
func NewNATSEventPublisher(publisher MessagePublisher, clk clock.Clock) *NATSEventPublisher {
	return &NATSEventPublisher{
		publisher: publisher,
		clock:     clk,
	}
}

// PublishContext wraps the event in an envelope and publishes it
func (p *NATSEventPublisher) PublishContext(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     p.clock.Now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := SubjectFor(event.Type())
	if err := p.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")
	return nil
}

// Publish implements interfaces.EventPublisher
func (p *NATSEventPublisher) Publish(event events.Event) error {
	return p.PublishContext(context.Background(), event)
}

// Attach forwards every event emitted on bus. Publish failures are logged;
// the database already holds the source of truth.
func (p *NATSEventPublisher) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := p.PublishContext(ctx, event); err != nil {
			log.WithError(err).WithField("eventType", event.Type()).Error("Failed to forward event to NATS")
		}
	})
}
