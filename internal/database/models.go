package database

import (
	"time"
)

// EarningStatus values. Transitions are pending -> paid or pending ->
// cancelled only; paid and cancelled are terminal.
const (
	EarningStatusPending   = "pending"
	EarningStatusPaid      = "paid"
	EarningStatusCancelled = "cancelled"
)

// Earning represents money owed to a worker for a completed unit of work.
// Amounts are locked in at creation time and never recomputed.
type Earning struct {
	ID                 string     `json:"id"`
	WorkerID           string     `json:"worker_id"`
	JobID              *string    `json:"job_id,omitempty"`
	GrossAmount        float64    `json:"gross_amount"`
	ServiceFee         float64    `json:"service_fee"`
	NetAmount          float64    `json:"net_amount"`
	Status             string     `json:"status"`
	DateEarned         time.Time  `json:"date_earned"`
	DatePaid           *time.Time `json:"date_paid,omitempty"`
	ExternalTransferID *string    `json:"external_transfer_id,omitempty"`
	PayeeAccountRef    *string    `json:"payee_account_ref,omitempty"`
	CancelReason       *string    `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Payment direction values
const (
	PaymentDirectionCharge   = "charge"
	PaymentDirectionTransfer = "transfer"
	PaymentDirectionRefund   = "refund"
)

// Payment status values
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Payment records an external money movement for audit. A completed transfer
// payment corresponds 1:1 with a paid earning (enforced by a unique index on
// related_earning_id for transfers).
type Payment struct {
	ID                    string     `json:"id"`
	Direction             string     `json:"direction"`
	CounterpartyUserID    string     `json:"counterparty_user_id"`
	Amount                float64    `json:"amount"`
	Status                string     `json:"status"`
	ExternalTransactionID *string    `json:"external_transaction_id,omitempty"`
	RelatedJobID          *string    `json:"related_job_id,omitempty"`
	RelatedEarningID      *string    `json:"related_earning_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// Worker is the read model this service keeps for payees. The payout account
// reference is an opaque processor account id ("" means not configured).
type Worker struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name"`
	PayoutAccountRef *string   `json:"payout_account_ref,omitempty"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Job is the read model consumed when a job-linked earning is created.
// Job lifecycle itself is owned by the surrounding marketplace application.
type Job struct {
	ID          string     `json:"id"`
	PosterID    string     `json:"poster_id"`
	WorkerID    *string    `json:"worker_id,omitempty"`
	Title       string     `json:"title"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// EarningsSummary aggregates a worker's earnings by status
type EarningsSummary struct {
	WorkerID     string  `json:"worker_id"`
	TotalNet     float64 `json:"total_net"`
	PendingNet   float64 `json:"pending_net"`
	PaidNet      float64 `json:"paid_net"`
	PendingCount int     `json:"pending_count"`
	PaidCount    int     `json:"paid_count"`
}

// PayoutEvent is an append-only audit row written off the event bus
type PayoutEvent struct {
	ID        int64                  `json:"id"`
	EventType string                 `json:"event_type"`
	EarningID *string                `json:"earning_id,omitempty"`
	WorkerID  *string                `json:"worker_id,omitempty"`
	BatchID   *string                `json:"batch_id,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
