package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/events"
)

// Engine settles a single earning: resolve destination, create the transfer,
// commit the paid transition. The store's conditional update is what makes a
// concurrent double invocation safe; the gateway idempotency key is what
// makes a crash-retry safe.
type Engine struct {
	store          LedgerStore
	directory      WorkerDirectory
	gateway        TransferGateway
	notifier       NotificationSink
	bus            *events.EventBus
	gatewayTimeout time.Duration
	logger         zerolog.Logger
}

// NewEngine creates a payout engine. Notifier and bus may be nil.
func NewEngine(
	store LedgerStore,
	directory WorkerDirectory,
	gw TransferGateway,
	notifier NotificationSink,
	bus *events.EventBus,
	gatewayTimeout time.Duration,
	logger zerolog.Logger,
) *Engine {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 30 * time.Second
	}
	return &Engine{
		store:          store,
		directory:      directory,
		gateway:        gw,
		notifier:       notifier,
		bus:            bus,
		gatewayTimeout: gatewayTimeout,
		logger:         logger.With().Str("component", "PayoutEngine").Logger(),
	}
}

// PayoutEarning attempts to settle one earning. The returned error is
// reserved for infrastructure failure (store unreachable); every business
// outcome, including failures, is reported through the PayoutResult.
func (e *Engine) PayoutEarning(ctx context.Context, earningID string) (*PayoutResult, error) {
	result := &PayoutResult{EarningID: earningID}

	// Step 1: fetch and short-circuit settled earnings
	earning, err := e.store.GetEarning(ctx, earningID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			result.Category = CategoryNotFound
			result.Message = "earning not found"
			return result, nil
		}
		return nil, fmt.Errorf("failed to load earning %s: %w", earningID, err)
	}

	result.WorkerID = earning.WorkerID
	result.Amount = earning.NetAmount

	// A repeated call on a paid earning is a success, same as losing the CAS
	// race below: the money moved exactly once. Cancelled is terminal but
	// not a success.
	if earning.Status != database.EarningStatusPending {
		result.AlreadySettled = true
		if earning.Status == database.EarningStatusPaid {
			result.Success = true
			result.Message = "already settled"
			if earning.ExternalTransferID != nil {
				result.TransferID = *earning.ExternalTransferID
			}
		} else {
			result.Message = "earning cancelled"
		}
		return result, nil
	}

	// Step 2: resolve the payout destination before touching the gateway
	destination, err := e.directory.GetWorkerPayoutDestination(ctx, earning.WorkerID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve payout destination for worker %s: %w", earning.WorkerID, err)
	}
	if destination == "" {
		result.Category = CategoryMissingDestination
		result.Message = "worker has no payout destination configured"

		e.logger.Warn().
			Str("earning_id", earningID).
			Str("worker_id", earning.WorkerID).
			Msg("Payout blocked: no destination")

		if e.bus != nil {
			e.bus.PublishPayoutBlocked(earningID, earning.WorkerID, result.Message)
		}
		if e.notifier != nil {
			e.notifier.NotifyPayoutBlocked(earning.WorkerID, earningID, result.Message)
		}
		return result, nil
	}

	// Step 3: create the transfer, keyed on the earning id so the processor
	// deduplicates a crash-retry of the same earning
	gwCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	transfer, err := e.gateway.CreateTransfer(gwCtx, earning.NetAmount, destination, earning.ID)
	cancel()
	if err != nil {
		category, retryable := classifyGatewayFailure(err)
		result.Category = category
		result.Retryable = retryable
		result.Message = err.Error()

		e.logger.Error().
			Err(err).
			Str("earning_id", earningID).
			Str("worker_id", earning.WorkerID).
			Str("category", category).
			Bool("retryable", retryable).
			Msg("Transfer failed")

		if e.bus != nil {
			e.bus.PublishPayoutFailed(earningID, earning.WorkerID, category, result.Message, retryable)
		}
		return result, nil
	}

	// Step 4: commit pending -> paid. A conflict means a concurrent payout
	// already settled this earning; the idempotency key guarantees both
	// callers hold the same transfer, so this is a success, and the winner
	// already wrote the payment record.
	now := time.Now()
	err = e.store.TransitionEarningPaid(ctx, earning.ID, transfer.ID, destination, now)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyPaid):
			result.Success = true
			result.AlreadySettled = true
			result.TransferID = transfer.ID
			result.Message = "settled by concurrent payout"
			return result, nil
		case errors.Is(err, database.ErrEarningCancelled):
			// Cancelled between fetch and commit. The transfer exists but the
			// ledger refused it; this needs an operator, not a retry.
			result.Category = CategoryGateway
			result.Message = fmt.Sprintf("earning cancelled during payout; transfer %s requires manual reversal", transfer.ID)
			result.TransferID = transfer.ID

			e.logger.Error().
				Str("earning_id", earningID).
				Str("transfer_id", transfer.ID).
				Msg("Earning cancelled mid-payout, transfer needs reversal")
			return result, nil
		default:
			return nil, fmt.Errorf("failed to commit paid transition for %s: %w", earning.ID, err)
		}
	}

	// Step 5: audit payment record. A duplicate here means the schema
	// backstop caught a replay; the settlement itself already committed.
	payment := &database.Payment{
		Direction:             database.PaymentDirectionTransfer,
		CounterpartyUserID:    earning.WorkerID,
		Amount:                earning.NetAmount,
		Status:                database.PaymentStatusCompleted,
		ExternalTransactionID: &transfer.ID,
		RelatedJobID:          earning.JobID,
		RelatedEarningID:      &earning.ID,
		CompletedAt:           &now,
	}
	if err := e.store.CreateTransferPayment(ctx, payment); err != nil && !errors.Is(err, database.ErrPaymentExists) {
		e.logger.Error().
			Err(err).
			Str("earning_id", earning.ID).
			Str("transfer_id", transfer.ID).
			Msg("Failed to write payment audit record")
	}

	result.Success = true
	result.TransferID = transfer.ID
	result.Message = "paid"

	e.logger.Info().
		Str("earning_id", earning.ID).
		Str("worker_id", earning.WorkerID).
		Str("transfer_id", transfer.ID).
		Float64("amount", earning.NetAmount).
		Msg("Payout completed")

	// Step 6: side effects, fire-and-forget
	if e.bus != nil {
		e.bus.PublishPayoutCompleted(earning.ID, earning.WorkerID, transfer.ID, earning.NetAmount)
	}
	if e.notifier != nil {
		e.notifier.NotifyPayoutCompleted(earning.WorkerID, earning.ID, earning.NetAmount)
	}

	return result, nil
}
