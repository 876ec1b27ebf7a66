package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access for the settlement service
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Worker directory methods

// GetWorker retrieves a worker by id
func (r *Repository) GetWorker(ctx context.Context, workerID string) (*Worker, error) {
	query := `
		SELECT id, display_name, payout_account_ref, payouts_enabled, created_at, updated_at
		FROM workers
		WHERE id = $1`

	var w Worker
	err := r.db.Pool.QueryRow(ctx, query, workerID).Scan(
		&w.ID, &w.DisplayName, &w.PayoutAccountRef, &w.PayoutsEnabled, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &w, nil
}

// GetWorkerPayoutDestination returns the worker's payout account reference.
// An empty string means the worker has not configured a payout destination or
// the processor has not enabled payouts for the account yet.
func (r *Repository) GetWorkerPayoutDestination(ctx context.Context, workerID string) (string, error) {
	query := `
		SELECT COALESCE(payout_account_ref, ''), payouts_enabled
		FROM workers
		WHERE id = $1`

	var accountRef string
	var enabled bool
	err := r.db.Pool.QueryRow(ctx, query, workerID).Scan(&accountRef, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	if !enabled {
		return "", nil
	}

	return accountRef, nil
}

// SetWorkerPayoutDestination updates the worker's payout account reference
// and capability flag. Driven by processor onboarding webhooks.
func (r *Repository) SetWorkerPayoutDestination(ctx context.Context, workerID, accountRef string, enabled bool) error {
	query := `
		UPDATE workers
		SET payout_account_ref = NULLIF($2, ''), payouts_enabled = $3
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, workerID, accountRef, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetWorkerByPayoutAccount finds the worker that owns a processor account ref
func (r *Repository) GetWorkerByPayoutAccount(ctx context.Context, accountRef string) (*Worker, error) {
	query := `
		SELECT id, display_name, payout_account_ref, payouts_enabled, created_at, updated_at
		FROM workers
		WHERE payout_account_ref = $1`

	var w Worker
	err := r.db.Pool.QueryRow(ctx, query, accountRef).Scan(
		&w.ID, &w.DisplayName, &w.PayoutAccountRef, &w.PayoutsEnabled, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &w, nil
}

// Job read methods

// GetJob retrieves a job by id
func (r *Repository) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, poster_id, worker_id, title, amount, status, completed_at
		FROM jobs
		WHERE id = $1`

	var j Job
	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(
		&j.ID, &j.PosterID, &j.WorkerID, &j.Title, &j.Amount, &j.Status, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &j, nil
}

// Audit trail

// CreatePayoutEvent appends a payout audit event
func (r *Repository) CreatePayoutEvent(ctx context.Context, event *PayoutEvent) error {
	query := `
		INSERT INTO payout_events (event_type, earning_id, worker_id, batch_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`

	return r.db.Pool.QueryRow(ctx, query,
		event.EventType,
		event.EarningID,
		event.WorkerID,
		event.BatchID,
		event.Detail,
	).Scan(&event.ID)
}

// ListPayoutEvents returns the most recent audit events for an earning
func (r *Repository) ListPayoutEvents(ctx context.Context, earningID string, limit int) ([]PayoutEvent, error) {
	query := `
		SELECT id, event_type, earning_id, worker_id, batch_id, detail, created_at
		FROM payout_events
		WHERE earning_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, earningID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []PayoutEvent
	for rows.Next() {
		var e PayoutEvent
		err := rows.Scan(&e.ID, &e.EventType, &e.EarningID, &e.WorkerID, &e.BatchID, &e.Detail, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// HealthCheck verifies database connectivity
func (r *Repository) HealthCheck(ctx context.Context) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.Pool.Ping(ctx)
}
