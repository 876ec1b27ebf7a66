package events

import (
	"context"
	"sync"
	"testing"

	"gig-marketplace/internal/database"
)

type fakeAuditStore struct {
	mu     sync.Mutex
	events []*database.PayoutEvent
	err    error
}

func (f *fakeAuditStore) CreatePayoutEvent(_ context.Context, event *database.PayoutEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestAuditWriterSplitsIdentifiers(t *testing.T) {
	store := &fakeAuditStore{}
	writer := NewAuditWriter(store)

	writer.Handle(Event{
		Type: EventPayoutCompleted,
		Data: map[string]interface{}{
			"earning_id":  "earn-1",
			"worker_id":   "worker-1",
			"transfer_id": "tr_123",
			"net":         47.50,
		},
	})

	if len(store.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(store.events))
	}

	got := store.events[0]
	if got.EventType != string(EventPayoutCompleted) {
		t.Errorf("event type = %s, want %s", got.EventType, EventPayoutCompleted)
	}
	if got.EarningID == nil || *got.EarningID != "earn-1" {
		t.Errorf("earning id not extracted: %v", got.EarningID)
	}
	if got.WorkerID == nil || *got.WorkerID != "worker-1" {
		t.Errorf("worker id not extracted: %v", got.WorkerID)
	}
	if got.BatchID != nil {
		t.Errorf("batch id should be nil, got %v", *got.BatchID)
	}
	if got.Detail["transfer_id"] != "tr_123" {
		t.Errorf("transfer id should stay in detail, got %v", got.Detail["transfer_id"])
	}
	if _, exists := got.Detail["earning_id"]; exists {
		t.Error("earning_id should not be duplicated into detail")
	}
}

func TestAuditWriterBatchEvent(t *testing.T) {
	store := &fakeAuditStore{}
	writer := NewAuditWriter(store)

	writer.Handle(Event{
		Type: EventBatchCompleted,
		Data: map[string]interface{}{
			"batch_id": "batch-1",
			"total":    3,
		},
	})

	got := store.events[0]
	if got.BatchID == nil || *got.BatchID != "batch-1" {
		t.Errorf("batch id not extracted: %v", got.BatchID)
	}
	if got.Detail["total"] != 3 {
		t.Errorf("total should stay in detail, got %v", got.Detail["total"])
	}
}

func TestAuditWriterSwallowsStoreFailure(t *testing.T) {
	store := &fakeAuditStore{err: context.DeadlineExceeded}
	writer := NewAuditWriter(store)

	// Must not panic
	writer.Handle(Event{Type: EventError, Data: map[string]interface{}{"message": "boom"}})

	if len(store.events) != 0 {
		t.Errorf("no events should be recorded on store failure")
	}
}
