package database

import "errors"

// Sentinel errors returned by the repository. Callers branch on these with
// errors.Is; anything else is an infrastructure failure.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyPaid is the conflict result when a CAS transition finds the
	// earning already paid. For payout callers this is an idempotent no-op.
	ErrAlreadyPaid = errors.New("earning already paid")

	// ErrEarningCancelled is the conflict result when a CAS transition finds
	// the earning cancelled. This is a hard failure for payout callers.
	ErrEarningCancelled = errors.New("earning cancelled")

	// ErrPaymentExists means a transfer payment for the earning was already
	// recorded. Backstop against duplicate audit rows on concurrent payouts.
	ErrPaymentExists = errors.New("transfer payment already recorded")

	// ErrJobNotCompleted means an earning was requested for a job that is not
	// in a completed state.
	ErrJobNotCompleted = errors.New("job is not completed")
)
