package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Payment methods

// CreateTransferPayment records the outbound transfer for an earning. The
// partial unique index on (related_earning_id) for transfer rows makes a
// duplicate insert fail, which surfaces as ErrPaymentExists.
func (r *Repository) CreateTransferPayment(ctx context.Context, payment *Payment) error {
	query := `
		INSERT INTO payments (direction, counterparty_user_id, amount, status, external_transaction_id, related_job_id, related_earning_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	if payment.Direction == "" {
		payment.Direction = PaymentDirectionTransfer
	}
	if payment.Status == "" {
		payment.Status = PaymentStatusCompleted
	}
	if payment.CompletedAt == nil && payment.Status == PaymentStatusCompleted {
		now := time.Now()
		payment.CompletedAt = &now
	}

	err := r.db.Pool.QueryRow(ctx, query,
		payment.Direction,
		payment.CounterpartyUserID,
		payment.Amount,
		payment.Status,
		payment.ExternalTransactionID,
		payment.RelatedJobID,
		payment.RelatedEarningID,
		payment.CompletedAt,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPaymentExists
		}
		return err
	}

	return nil
}

// GetPayment retrieves a payment by id
func (r *Repository) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	query := `
		SELECT id, direction, counterparty_user_id, amount, status, external_transaction_id, related_job_id, related_earning_id, created_at, completed_at
		FROM payments
		WHERE id = $1`

	var p Payment
	err := r.db.Pool.QueryRow(ctx, query, paymentID).Scan(
		&p.ID, &p.Direction, &p.CounterpartyUserID, &p.Amount, &p.Status,
		&p.ExternalTransactionID, &p.RelatedJobID, &p.RelatedEarningID, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &p, nil
}

// GetPaymentByExternalID finds the payment that matches a processor object id
func (r *Repository) GetPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	query := `
		SELECT id, direction, counterparty_user_id, amount, status, external_transaction_id, related_job_id, related_earning_id, created_at, completed_at
		FROM payments
		WHERE external_transaction_id = $1`

	var p Payment
	err := r.db.Pool.QueryRow(ctx, query, externalID).Scan(
		&p.ID, &p.Direction, &p.CounterpartyUserID, &p.Amount, &p.Status,
		&p.ExternalTransactionID, &p.RelatedJobID, &p.RelatedEarningID, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &p, nil
}

// ListUserPayments returns a user's payments newest first
func (r *Repository) ListUserPayments(ctx context.Context, userID string, limit int) ([]Payment, error) {
	query := `
		SELECT id, direction, counterparty_user_id, amount, status, external_transaction_id, related_job_id, related_earning_id, created_at, completed_at
		FROM payments
		WHERE counterparty_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		err := rows.Scan(
			&p.ID, &p.Direction, &p.CounterpartyUserID, &p.Amount, &p.Status,
			&p.ExternalTransactionID, &p.RelatedJobID, &p.RelatedEarningID, &p.CreatedAt, &p.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// UpdatePaymentStatusByExternalID moves a payment to a new status, keyed by
// the processor object id. Used by webhook handlers for transfer reversals.
func (r *Repository) UpdatePaymentStatusByExternalID(ctx context.Context, externalID, status string) error {
	query := `
		UPDATE payments
		SET status = $2
		WHERE external_transaction_id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, externalID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
