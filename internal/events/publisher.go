// Package events publishes workout changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/observability"
)

// Event types.
const (
	TypeAdded   = "workout.added"
	TypeUpdated = "workout.updated"
	TypeRemoved = "workout.removed"
	TypeCleared = "workouts.cleared"
)

// Event is the JSON value of each Kafka message. The message key is the
// workout id, so changes to one workout stay ordered within a partition.
// Events are queued in the order the store made the changes.
type Event struct {
	Type      string         `json:"type"`
	WorkoutID string         `json:"workoutId,omitempty"`
	Workout   *models.Record `json:"workout,omitempty"`
	At        time.Time      `json:"at"`
}

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Publisher is a tracker observer that forwards each change to Kafka from
// a background goroutine. When the queue is full, events are dropped and
// counted rather than blocking the store.
type Publisher struct {
	writer  messageWriter
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

// NewKafkaPublisher creates a Publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}
	return newPublisher(w, log, 256)
}

func newPublisher(w messageWriter, log *slog.Logger, size int) *Publisher {
	p := &Publisher{
		writer:  w,
		log:     log,
		timeout: 10 * time.Second,
		queue:   make(chan kafka.Message, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		eventType := headerValue(msg, "event_type")
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.log.Error("publishing workout event failed", "type", eventType, "key", string(msg.Key), "error", err)
			observability.RecordEvent(eventType, observability.ResultError)
			continue
		}
		observability.RecordEvent(eventType, observability.ResultOK)
	}
}

// Close stops accepting events, flushes the queue and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

// WorkoutAdded queues a workout.added event carrying the new record.
func (p *Publisher) WorkoutAdded(w models.Workout) {
	rec := models.ToRecord(w)
	p.enqueue(Event{Type: TypeAdded, WorkoutID: w.ID, Workout: &rec, At: time.Now().UTC()})
}

// WorkoutUpdated queues a workout.updated event carrying the edited record.
func (p *Publisher) WorkoutUpdated(w models.Workout) {
	rec := models.ToRecord(w)
	p.enqueue(Event{Type: TypeUpdated, WorkoutID: w.ID, Workout: &rec, At: time.Now().UTC()})
}

// WorkoutRemoved queues a workout.removed event keyed by id.
func (p *Publisher) WorkoutRemoved(id string) {
	p.enqueue(Event{Type: TypeRemoved, WorkoutID: id, At: time.Now().UTC()})
}

// WorkoutsCleared queues a workouts.cleared event with an empty key.
func (p *Publisher) WorkoutsCleared() {
	p.enqueue(Event{Type: TypeCleared, At: time.Now().UTC()})
}

func (p *Publisher) enqueue(ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("encoding workout event", "type", ev.Type, "error", err)
		observability.RecordEvent(ev.Type, observability.ResultError)
		return
	}
	msg := kafka.Message{
		Key:     []byte(ev.WorkoutID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(ev.Type)}},
		Time:    ev.At,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		observability.RecordEvent(ev.Type, observability.ResultDropped)
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.log.Warn("event queue full, dropping workout event", "type", ev.Type, "id", ev.WorkoutID)
		observability.RecordEvent(ev.Type, observability.ResultDropped)
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
