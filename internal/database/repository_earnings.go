package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Earnings ledger methods

// CreateEarning inserts a new pending earning row. Gross, fee and net amounts
// are computed by the caller before insert so the row is immutable once written.
func (r *Repository) CreateEarning(ctx context.Context, earning *Earning) error {
	query := `
		INSERT INTO earnings (worker_id, job_id, gross_amount, service_fee, net_amount, status, date_earned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	if earning.Status == "" {
		earning.Status = EarningStatusPending
	}
	if earning.DateEarned.IsZero() {
		earning.DateEarned = time.Now()
	}

	return r.db.Pool.QueryRow(ctx, query,
		earning.WorkerID,
		earning.JobID,
		earning.GrossAmount,
		earning.ServiceFee,
		earning.NetAmount,
		earning.Status,
		earning.DateEarned,
	).Scan(&earning.ID, &earning.CreatedAt, &earning.UpdatedAt)
}

// GetEarning retrieves an earning by id
func (r *Repository) GetEarning(ctx context.Context, earningID string) (*Earning, error) {
	query := `
		SELECT id, worker_id, job_id, gross_amount, service_fee, net_amount, status,
		       date_earned, date_paid, external_transfer_id, payee_account_ref, cancel_reason,
		       created_at, updated_at
		FROM earnings
		WHERE id = $1`

	var e Earning
	err := r.db.Pool.QueryRow(ctx, query, earningID).Scan(
		&e.ID, &e.WorkerID, &e.JobID, &e.GrossAmount, &e.ServiceFee, &e.NetAmount, &e.Status,
		&e.DateEarned, &e.DatePaid, &e.ExternalTransferID, &e.PayeeAccountRef, &e.CancelReason,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &e, nil
}

// ListPendingEarnings returns pending earnings oldest first, up to limit.
// A limit of zero means no cap.
func (r *Repository) ListPendingEarnings(ctx context.Context, limit int) ([]Earning, error) {
	query := `
		SELECT id, worker_id, job_id, gross_amount, service_fee, net_amount, status,
		       date_earned, date_paid, external_transfer_id, payee_account_ref, cancel_reason,
		       created_at, updated_at
		FROM earnings
		WHERE status = 'pending'
		ORDER BY date_earned ASC`

	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Pool.Query(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEarnings(rows)
}

// ListWorkerEarnings returns a worker's earnings newest first, optionally
// filtered by status
func (r *Repository) ListWorkerEarnings(ctx context.Context, workerID, status string, limit int) ([]Earning, error) {
	query := `
		SELECT id, worker_id, job_id, gross_amount, service_fee, net_amount, status,
		       date_earned, date_paid, external_transfer_id, payee_account_ref, cancel_reason,
		       created_at, updated_at
		FROM earnings
		WHERE worker_id = $1`

	args := []interface{}{workerID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY date_earned DESC"
	if limit > 0 {
		args = append(args, limit)
		if status != "" {
			query += " LIMIT $3"
		} else {
			query += " LIMIT $2"
		}
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEarnings(rows)
}

// GetWorkerEarningsSummary aggregates a worker's lifetime, pending and paid totals
func (r *Repository) GetWorkerEarningsSummary(ctx context.Context, workerID string) (*EarningsSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(net_amount) FILTER (WHERE status != 'cancelled'), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE status = 'pending'), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE status = 'paid'), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'paid')
		FROM earnings
		WHERE worker_id = $1`

	var s EarningsSummary
	s.WorkerID = workerID
	err := r.db.Pool.QueryRow(ctx, query, workerID).Scan(
		&s.TotalNet, &s.PendingNet, &s.PaidNet, &s.PendingCount, &s.PaidCount,
	)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// TransitionEarningPaid atomically moves a pending earning to paid, recording
// the processor transfer id and the destination account it was paid to. The
// status predicate in the WHERE clause is the concurrency guard: only one
// caller can win the pending -> paid transition. On zero rows affected the
// row is re-read to report why the transition lost.
func (r *Repository) TransitionEarningPaid(ctx context.Context, earningID, transferID, accountRef string, paidAt time.Time) error {
	query := `
		UPDATE earnings
		SET status = 'paid', date_paid = $2, external_transfer_id = $3, payee_account_ref = $4
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Pool.Exec(ctx, query, earningID, paidAt, transferID, accountRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	return r.classifyTransitionConflict(ctx, earningID)
}

// TransitionEarningCancelled atomically moves a pending earning to cancelled.
// Paid earnings cannot be cancelled; reversal goes through the refund path.
func (r *Repository) TransitionEarningCancelled(ctx context.Context, earningID, reason string) error {
	query := `
		UPDATE earnings
		SET status = 'cancelled', cancel_reason = $2
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Pool.Exec(ctx, query, earningID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	return r.classifyTransitionConflict(ctx, earningID)
}

// classifyTransitionConflict explains a lost compare-and-set: the row is
// either already paid, already cancelled, or gone.
func (r *Repository) classifyTransitionConflict(ctx context.Context, earningID string) error {
	var status string
	err := r.db.Pool.QueryRow(ctx, `SELECT status FROM earnings WHERE id = $1`, earningID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	switch status {
	case EarningStatusPaid:
		return ErrAlreadyPaid
	case EarningStatusCancelled:
		return ErrEarningCancelled
	default:
		// Raced with another state change between the update and the re-read
		return ErrNotFound
	}
}

func scanEarnings(rows pgx.Rows) ([]Earning, error) {
	var earnings []Earning
	for rows.Next() {
		var e Earning
		err := rows.Scan(
			&e.ID, &e.WorkerID, &e.JobID, &e.GrossAmount, &e.ServiceFee, &e.NetAmount, &e.Status,
			&e.DateEarned, &e.DatePaid, &e.ExternalTransferID, &e.PayeeAccountRef, &e.CancelReason,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		earnings = append(earnings, e)
	}

	return earnings, rows.Err()
}
