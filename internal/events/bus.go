package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventEarningCreated   EventType = "EARNING_CREATED"
	EventEarningCancelled EventType = "EARNING_CANCELLED"
	EventPayoutCompleted  EventType = "PAYOUT_COMPLETED"
	EventPayoutFailed     EventType = "PAYOUT_FAILED"
	EventPayoutBlocked    EventType = "PAYOUT_BLOCKED"
	EventBatchCompleted   EventType = "BATCH_COMPLETED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Subscribers run in goroutines so a slow sink never blocks settlement
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishEarningCreated publishes an earning created event
func (eb *EventBus) PublishEarningCreated(earningID, workerID string, gross, fee, net float64) {
	eb.Publish(Event{
		Type: EventEarningCreated,
		Data: map[string]interface{}{
			"earning_id": earningID,
			"worker_id":  workerID,
			"gross":      gross,
			"fee":        fee,
			"net":        net,
		},
	})
}

// PublishEarningCancelled publishes an earning cancelled event
func (eb *EventBus) PublishEarningCancelled(earningID, workerID, reason string) {
	eb.Publish(Event{
		Type: EventEarningCancelled,
		Data: map[string]interface{}{
			"earning_id": earningID,
			"worker_id":  workerID,
			"reason":     reason,
		},
	})
}

// PublishPayoutCompleted publishes a payout completed event
func (eb *EventBus) PublishPayoutCompleted(earningID, workerID, transferID string, net float64) {
	eb.Publish(Event{
		Type: EventPayoutCompleted,
		Data: map[string]interface{}{
			"earning_id":  earningID,
			"worker_id":   workerID,
			"transfer_id": transferID,
			"net":         net,
		},
	})
}

// PublishPayoutFailed publishes a payout failed event
func (eb *EventBus) PublishPayoutFailed(earningID, workerID, category, message string, retryable bool) {
	eb.Publish(Event{
		Type: EventPayoutFailed,
		Data: map[string]interface{}{
			"earning_id": earningID,
			"worker_id":  workerID,
			"category":   category,
			"message":    message,
			"retryable":  retryable,
		},
	})
}

// PublishPayoutBlocked publishes a payout blocked event for a worker with no
// usable payout destination
func (eb *EventBus) PublishPayoutBlocked(earningID, workerID, message string) {
	eb.Publish(Event{
		Type: EventPayoutBlocked,
		Data: map[string]interface{}{
			"earning_id": earningID,
			"worker_id":  workerID,
			"message":    message,
		},
	})
}

// PublishBatchCompleted publishes a batch completed event
func (eb *EventBus) PublishBatchCompleted(batchID string, total, succeeded, alreadySettled, failed int) {
	eb.Publish(Event{
		Type: EventBatchCompleted,
		Data: map[string]interface{}{
			"batch_id":        batchID,
			"total":           total,
			"succeeded":       succeeded,
			"already_settled": alreadySettled,
			"failed":          failed,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
