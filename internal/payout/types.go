// Package payout drives the pending -> paid settlement of earnings through
// the payment processor.
package payout

import (
	"context"
	"time"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/gateway"
)

// LedgerStore is the slice of the repository the engine needs. Status writes
// are conditional transitions only; nothing here can overwrite a terminal
// earning.
type LedgerStore interface {
	GetEarning(ctx context.Context, earningID string) (*database.Earning, error)
	ListPendingEarnings(ctx context.Context, limit int) ([]database.Earning, error)
	ListWorkerEarnings(ctx context.Context, workerID, status string, limit int) ([]database.Earning, error)
	TransitionEarningPaid(ctx context.Context, earningID, transferID, accountRef string, paidAt time.Time) error
	CreateTransferPayment(ctx context.Context, payment *database.Payment) error
}

// WorkerDirectory resolves payout destinations. An empty account ref means
// the worker cannot be paid yet.
type WorkerDirectory interface {
	GetWorkerPayoutDestination(ctx context.Context, workerID string) (string, error)
}

// TransferGateway creates transfers at the payment processor
type TransferGateway interface {
	CreateTransfer(ctx context.Context, amount float64, destinationAccount, idempotencyKey string) (*gateway.TransferData, error)
}

// NotificationSink receives fire-and-forget payee notifications. Failures
// never affect settlement outcome.
type NotificationSink interface {
	NotifyPayoutCompleted(workerID, earningID string, amount float64)
	NotifyPayoutBlocked(workerID, earningID, reason string)
}

// Failure categories surfaced in PayoutResult. Each maps to a distinct
// operator action.
const (
	CategoryNotFound           = "not_found"
	CategoryMissingDestination = "missing_destination"
	CategoryCapability         = "capability"
	CategoryTransient          = "transient"
	CategoryGateway            = "gateway"
)

// PayoutResult is the per-earning outcome of a payout attempt. Business
// failures ride in the result; an error return from the engine means
// infrastructure trouble, not a failed payout.
type PayoutResult struct {
	EarningID      string  `json:"earning_id"`
	WorkerID       string  `json:"worker_id,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	Success        bool    `json:"success"`
	AlreadySettled bool    `json:"already_settled,omitempty"`
	Retryable      bool    `json:"retryable,omitempty"`
	Category       string  `json:"category,omitempty"`
	Message        string  `json:"message,omitempty"`
	TransferID     string  `json:"transfer_id,omitempty"`
}

// BatchResult aggregates a bulk payout run
type BatchResult struct {
	BatchID             string         `json:"batch_id"`
	WorkerID            string         `json:"worker_id,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	TotalProcessed      int            `json:"total_processed"`
	SuccessCount        int            `json:"success_count"`
	AlreadySettledCount int            `json:"already_settled_count"`
	FailureCount        int            `json:"failure_count"`
	FailuresByCategory  map[string]int `json:"failures_by_category,omitempty"`
	Results             []PayoutResult `json:"results"`
}
