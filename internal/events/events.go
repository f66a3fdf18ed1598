// Package events publishes marketplace domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeLedgerOperation    = "ledger.operation"
	TypeCompanyCreated     = "company.created"
)

const publishTimeout = 5 * time.Second

// Event is the envelope written to the topic
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent builds an event keyed by the given entity id
func NewEvent(eventType string, key uint, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        strconv.FormatUint(uint64(key), 10),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New returns a Kafka publisher, or a no-op one when no brokers are configured
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}

// KafkaPublisher writes events to one topic, keyed so an entity's events stay ordered
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a writer for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish encodes ev as JSON and writes it synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(ev.Key),
		Value:   data,
		Headers: []kafka.Header{{Key: "type", Value: []byte(ev.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MemoryPublisher keeps published events in memory
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of what was published so far
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Emit publishes ev after a commit. Delivery failures are logged, never returned:
// the database state is already final.
func Emit(pub Publisher, ev Event) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		logrus.WithFields(logrus.Fields{
			"event_id": ev.ID,
			"type":     ev.Type,
			"key":      ev.Key,
			"error":    err.Error(),
		}).Error("Failed to publish event")
	}
}
