package events

import (
	"context"
	"time"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/logging"
)

// AuditStore persists events into the payout_events table
type AuditStore interface {
	CreatePayoutEvent(ctx context.Context, event *database.PayoutEvent) error
}

// AuditWriter subscribes to the event bus and records every event as an
// audit row. Write failures are logged and dropped; the audit trail is
// advisory, settlement correctness lives in the earnings table.
type AuditWriter struct {
	store  AuditStore
	logger *logging.Logger
}

func NewAuditWriter(store AuditStore) *AuditWriter {
	return &AuditWriter{
		store:  store,
		logger: logging.WithComponent("audit"),
	}
}

// Handle records one event. Registered via EventBus.SubscribeAll.
func (w *AuditWriter) Handle(event Event) {
	record := &database.PayoutEvent{
		EventType: string(event.Type),
		Detail:    make(map[string]interface{}),
	}

	for key, value := range event.Data {
		switch key {
		case "earning_id":
			if id, ok := value.(string); ok && id != "" {
				record.EarningID = &id
				continue
			}
		case "worker_id":
			if id, ok := value.(string); ok && id != "" {
				record.WorkerID = &id
				continue
			}
		case "batch_id":
			if id, ok := value.(string); ok && id != "" {
				record.BatchID = &id
				continue
			}
		}
		record.Detail[key] = value
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.CreatePayoutEvent(ctx, record); err != nil {
		w.logger.Error("Failed to record audit event", "type", event.Type, "error", err)
	}
}
