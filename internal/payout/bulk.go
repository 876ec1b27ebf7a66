package payout

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/events"
)

// Coordinator runs the payout engine over a set of pending earnings. One
// earning's failure never stops the rest of the batch; only a listing
// failure aborts.
type Coordinator struct {
	store       LedgerStore
	engine      *Engine
	bus         *events.EventBus
	workerCount int
	logger      zerolog.Logger
}

// NewCoordinator creates a bulk payout coordinator. A workerCount of 1 runs
// the batch sequentially.
func NewCoordinator(store LedgerStore, engine *Engine, bus *events.EventBus, workerCount int, logger zerolog.Logger) *Coordinator {
	if workerCount <= 0 {
		workerCount = 4
	}
	return &Coordinator{
		store:       store,
		engine:      engine,
		bus:         bus,
		workerCount: workerCount,
		logger:      logger.With().Str("component", "PayoutCoordinator").Logger(),
	}
}

// PayoutAllPending settles every pending earning, scoped to one worker when
// workerID is non-nil. Re-running is safe: the second run reports the first
// run's successes as already settled.
func (c *Coordinator) PayoutAllPending(ctx context.Context, workerID *string) (*BatchResult, error) {
	batch := &BatchResult{
		BatchID:            uuid.New().String(),
		StartedAt:          time.Now(),
		FailuresByCategory: make(map[string]int),
	}
	if workerID != nil {
		batch.WorkerID = *workerID
	}

	var pending []database.Earning
	var err error
	if workerID != nil {
		pending, err = c.store.ListWorkerEarnings(ctx, *workerID, database.EarningStatusPending, 0)
	} else {
		pending, err = c.store.ListPendingEarnings(ctx, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list pending earnings: %w", err)
	}

	c.logger.Info().
		Str("batch_id", batch.BatchID).
		Int("pending", len(pending)).
		Int("workers", c.workerCount).
		Msg("Starting payout batch")

	results := make([]PayoutResult, len(pending))

	// An infrastructure error (store unreachable) aborts the whole batch:
	// cancel the remaining work and propagate it. Business failures stay
	// per-item.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		jobs     = make(chan int)
		wg       sync.WaitGroup
		mu       sync.Mutex
		infraErr error
	)
	for w := 0; w < c.workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				res, err := c.payoutOne(runCtx, pending[i].ID)
				if err != nil {
					mu.Lock()
					if infraErr == nil {
						infraErr = err
					}
					mu.Unlock()
					cancel()
					continue
				}
				results[i] = res
			}
		}()
	}
	for i := range pending {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if infraErr != nil {
		c.logger.Error().
			Str("batch_id", batch.BatchID).
			Err(infraErr).
			Msg("Payout batch aborted")
		return nil, fmt.Errorf("payout batch aborted: %w", infraErr)
	}

	for _, r := range results {
		batch.TotalProcessed++
		switch {
		case r.AlreadySettled:
			batch.AlreadySettledCount++
		case r.Success:
			batch.SuccessCount++
		default:
			batch.FailureCount++
			category := r.Category
			if category == "" {
				category = CategoryGateway
			}
			batch.FailuresByCategory[category]++
		}
	}
	batch.Results = results
	batch.FinishedAt = time.Now()

	c.logger.Info().
		Str("batch_id", batch.BatchID).
		Int("total", batch.TotalProcessed).
		Int("succeeded", batch.SuccessCount).
		Int("already_settled", batch.AlreadySettledCount).
		Int("failed", batch.FailureCount).
		Msg("Payout batch finished")

	if c.bus != nil {
		c.bus.PublishBatchCompleted(batch.BatchID, batch.TotalProcessed, batch.SuccessCount, batch.AlreadySettledCount, batch.FailureCount)
	}

	return batch, nil
}

// payoutOne runs the engine for a single item. A panic becomes a failed
// result so one bad earning cannot take down the batch; an engine error is
// infrastructure failure and propagates so the caller can abort.
func (c *Coordinator) payoutOne(ctx context.Context, earningID string) (result PayoutResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("earning_id", earningID).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Payout panicked")
			result = PayoutResult{
				EarningID: earningID,
				Category:  CategoryGateway,
				Message:   fmt.Sprintf("internal error: %v", r),
			}
			err = nil
		}
	}()

	res, engineErr := c.engine.PayoutEarning(ctx, earningID)
	if engineErr != nil {
		return PayoutResult{}, engineErr
	}
	return *res, nil
}
