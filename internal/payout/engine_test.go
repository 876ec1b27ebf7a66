package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gig-marketplace/internal/database"
	"gig-marketplace/internal/gateway"
)

// fakeStore is an in-memory ledger with the same conditional-transition
// semantics as the real repository.
type fakeStore struct {
	mu       sync.Mutex
	earnings map[string]*database.Earning
	payments map[string]*database.Payment // keyed by earning id

	transitionCalls int
	paymentCalls    int

	getErr   error
	getErrOn string // when set, getErr fires only for this earning id
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		earnings: make(map[string]*database.Earning),
		payments: make(map[string]*database.Payment),
	}
}

func (s *fakeStore) addPending(id, workerID string, net float64) {
	s.earnings[id] = &database.Earning{
		ID:          id,
		WorkerID:    workerID,
		GrossAmount: net / 0.95,
		ServiceFee:  net/0.95 - net,
		NetAmount:   net,
		Status:      database.EarningStatusPending,
		DateEarned:  time.Now(),
	}
}

func (s *fakeStore) GetEarning(ctx context.Context, earningID string) (*database.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil && (s.getErrOn == "" || s.getErrOn == earningID) {
		return nil, s.getErr
	}
	e, ok := s.earnings[earningID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *fakeStore) ListPendingEarnings(ctx context.Context, limit int) ([]database.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []database.Earning
	for _, e := range s.earnings {
		if e.Status == database.EarningStatusPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) ListWorkerEarnings(ctx context.Context, workerID, status string, limit int) ([]database.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []database.Earning
	for _, e := range s.earnings {
		if e.WorkerID == workerID && (status == "" || e.Status == status) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) TransitionEarningPaid(ctx context.Context, earningID, transferID, accountRef string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionCalls++

	e, ok := s.earnings[earningID]
	if !ok {
		return database.ErrNotFound
	}
	switch e.Status {
	case database.EarningStatusPaid:
		return database.ErrAlreadyPaid
	case database.EarningStatusCancelled:
		return database.ErrEarningCancelled
	}
	e.Status = database.EarningStatusPaid
	e.ExternalTransferID = &transferID
	e.PayeeAccountRef = &accountRef
	e.DatePaid = &paidAt
	return nil
}

func (s *fakeStore) CreateTransferPayment(ctx context.Context, payment *database.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentCalls++

	key := ""
	if payment.RelatedEarningID != nil {
		key = *payment.RelatedEarningID
	}
	if _, exists := s.payments[key]; exists {
		return database.ErrPaymentExists
	}
	s.payments[key] = payment
	return nil
}

// fakeDirectory maps worker ids to payout destinations
type fakeDirectory struct {
	destinations map[string]string
	calls        int
}

func (d *fakeDirectory) GetWorkerPayoutDestination(ctx context.Context, workerID string) (string, error) {
	d.calls++
	dest, ok := d.destinations[workerID]
	if !ok {
		return "", database.ErrNotFound
	}
	return dest, nil
}

// fakeGateway counts transfer creations, optionally failing, and
// deduplicates on the idempotency key the way the real processor does.
type fakeGateway struct {
	mu        sync.Mutex
	calls     int
	failWith  error
	transfers map[string]*gateway.TransferData // keyed by idempotency key
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{transfers: make(map[string]*gateway.TransferData)}
}

func (g *fakeGateway) CreateTransfer(ctx context.Context, amount float64, destination, idempotencyKey string) (*gateway.TransferData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failWith != nil {
		return nil, g.failWith
	}
	if existing, ok := g.transfers[idempotencyKey]; ok {
		return existing, nil
	}
	transfer := &gateway.TransferData{
		ID:          fmt.Sprintf("tr_%s", idempotencyKey),
		Amount:      int64(amount * 100),
		Currency:    "usd",
		Destination: destination,
	}
	g.transfers[idempotencyKey] = transfer
	return transfer, nil
}

// fakeNotifier records notifications
type fakeNotifier struct {
	mu        sync.Mutex
	completed int
	blocked   int
}

func (n *fakeNotifier) NotifyPayoutCompleted(workerID, earningID string, amount float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
}

func (n *fakeNotifier) NotifyPayoutBlocked(workerID, earningID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocked++
}

func newTestEngine(store *fakeStore, dir *fakeDirectory, gw *fakeGateway, notifier *fakeNotifier) *Engine {
	return NewEngine(store, dir, gw, notifier, nil, 5*time.Second, zerolog.Nop())
}

func TestPayoutEarningSuccess(t *testing.T) {
	store := newFakeStore()
	store.addPending("e1", "w1", 47.50)
	dir := &fakeDirectory{destinations: map[string]string{"w1": "acct_1"}}
	gw := newFakeGateway()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, dir, gw, notifier)

	result, err := engine.PayoutEarning(context.Background(), "e1")
	if err != nil {
		t.Fatalf("PayoutEarning: %v", err)
	}

	if !result.Success {
		t.Errorf("success = false, message = %s", result.Message)
	}
	if result.TransferID != "tr_e1" {
		t.Errorf("transfer id = %s, want tr_e1", result.TransferID)
	}
	if gw.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", gw.calls)
	}
	if store.earnings["e1"].Status != database.EarningStatusPaid {
		t.Errorf("status = %s, want paid", store.earnings["e1"].Status)
	}
	if len(store.payments) != 1 {
		t.Errorf("payments = %d, want 1", len(store.payments))
	}
	if notifier.completed != 1 {
		t.Errorf("completed notifications = %d, want 1", notifier.completed)
	}
}

func TestPayoutEarningIdempotentSecondCall(t *testing.T) {
	store := newFakeStore()
	store.addPending("e1", "w1", 47.50)
	dir := &fakeDirectory{destinations: map[string]string{"w1": "acct_1"}}
	gw := newFakeGateway()
	engine := newTestEngine(store, dir, gw, &fakeNotifier{})

	first, err := engine.PayoutEarning(context.Background(), "e1")
	if err != nil || !first.Success {
		t.Fatalf("first payout: result=%+v err=%v", first, err)
	}

	second, err := engine.PayoutEarning(context.Background(), "e1")
	if err != nil {
		t.Fatalf("second payout: %v", err)
	}
	if !second.Success {
		t.Error("second call on a paid earning should still report success")
	}
	if !second.AlreadySettled {
		t.Error("second call should report already settled")
	}
	if second.Message != "already settled" {
		t.Errorf("second call message = %q, want %q", second.Message, "already settled")
	}
	if second.TransferID != "tr_e1" {
		t.Errorf("second call transfer id = %s, want the original", second.TransferID)
	}
	if gw.calls != 1 {
		t.Errorf("gateway calls = %d, want 1 (no second transfer)", gw.calls)
	}
	if len(store.payments) != 1 {
		t.Errorf("payments = %d, want 1", len(store.payments))
	}
}

func TestPayoutEarningCancelledEarning(t *testing.T) {
	store := newFakeStore()
	store.addPending("e1", "w1", 10.00)
	store.earnings["e1"].Status = database.EarningStatusCancelled
	dir := &fakeDirectory{destinations: map[string]string{"w1": "acct_1"}}
	gw := newFakeGateway()
	engine := newTestEngine(store, dir, gw, &fakeNotifier{})

	result, err := engine.PayoutEarning(context.Background(), "e1")
	if err != nil {
		t.Fatalf("PayoutEarning: %v", err)
	}
	if result.Success {
		t.Error("a cancelled earning is terminal but never a success")
	}
	if !result.AlreadySettled {
		t.Error("a cancelled earning should short-circuit as settled")
	}
	if gw.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", gw.calls)
	}
}

func TestPayoutEarningConcurrentCallsSingleTransfer(t *testing.T) {
	store := newFakeStore()
	store.addPending("e1", "w1", 47.50)
	dir := &fakeDirectory{destinations: map[string]string{"w1": "acct_1"}}
	gw := newFakeGateway()
	engine := newTestEngine(store, dir, gw, &fakeNotifier{})

	const callers = 8
	results := make([]*PayoutResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := engine.PayoutEarning(context.Background(), "e1")
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	// Every caller that raced past the status read shares the same transfer;
	// the payment record is written exactly once.
	if len(gw.transfers) != 1 {
		t.Fatalf("distinct transfers = %d, want 1", len(gw.transfers))
	}
	if len(store.payments) != 1 {
		t.Errorf("payments = %d, want 1", len(store.payments))
	}

	freshSuccesses := 0
	for i, r := range results {
		if r == nil {
			t.Fatalf("caller %d produced no result", i)
		}
		if !r.Success && !r.AlreadySettled {
			t.Errorf("caller %d: unexpected failure %+v", i, r)
		}
		if r.Success && !r.AlreadySettled {
			freshSuccesses++
		}
	}
	if freshSuccesses != 1 {
		t.Errorf("fresh successes = %d, want exactly 1", freshSuccesses)
	}
}

func TestPayoutEarningMissingDestination(t *testing.T) {
	store := newFakeStore()
	store.addPending("e1", "w1", 47.50)
	dir := &fakeDirectory{destinations: map[string]string{}}
	gw := newFakeGateway()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, dir, gw, notifier)

	result, err := engine.PayoutEarning(context.Background(), "e1")
	if err != nil {
		t.Fatalf("PayoutEarning: %v", err)
	}

	if result.Success {
		t.Error("payout should not succeed without a destination")
	}
	if result.Category != CategoryMissingDestination {
		t.Errorf("category = %s, want missing_destination", result.Category)
	}
	if result.Retryable {
		t.Error("missing destination must not be retryable")
	}
	if gw.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", gw.calls)
	}
	if store.earnings["e1"].Status != database.EarningStatusPending {
		t.Errorf("earning should stay pending, got %s", store.earnings["e1"].Status)
	}
	if notifier.blocked != 1 {
		t.Errorf("blocked notifications = %d, want 1", notifier.blocked)
	}
}

func TestPayoutEarningGatewayFailureClassification(t *testing.T) {
	tests := []struct {
		name          string
		failWith      error
		wantCategory  string
		wantRetryable bool
	}{
		{
			name:          "capability failure",
			failWith:      &gateway.GatewayError{Kind: gateway.KindCapability, Code: "transfers_not_allowed", Message: "account cannot receive transfers"},
			wantCategory:  CategoryCapability,
			wantRetryable: false,
		},
		{
			name:          "transient failure",
			failWith:      &gateway.GatewayError{Kind: gateway.KindTransient, Code: "rate_limit", Message: "too many requests"},
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
		{
			name:          "other gateway failure",
			failWith:      &gateway.GatewayError{Kind: gateway.KindOther, Message: "invalid parameter"},
			wantCategory:  CategoryGateway,
			wantRetryable: false,
		},
		{
			name:          "unclassified timeout",
			failWith:      errors.New("request failed: dial tcp: i/o timeout"),
			wantCategory:  CategoryTransient,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.addPending("e1", "w1", 10.00)
			dir := &fakeDirectory{destinations: map[string]string{"w1": "acct_1"}}
			gw := newFakeGateway()
			gw.failWith = tt.failWith
			engine := newTestEngine(store, dir, gw, &fakeNotifier{})

			result, err := engine.PayoutEarning(context.Background(), "e1")
			if err != nil {
				t.Fatalf("PayoutEarning: %v", err)
			}

			if result.Success {
				t.Error("payout should fail")
			}
			if result.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", result.Category, tt.wantCategory)
			}
			if result.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", result.Retryable, tt.wantRetryable)
			}
			if store.earnings["e1"].Status != database.EarningStatusPending {
				t.Errorf("earning should stay pending after gateway failure, got %s", store.earnings["e1"].Status)
			}
			if store.transitionCalls != 0 {
				t.Errorf("transition calls = %d, want 0", store.transitionCalls)
			}
		})
	}
}

func TestPayoutEarningNotFound(t *testing.T) {
	engine := newTestEngine(newFakeStore(), &fakeDirectory{}, newFakeGateway(), &fakeNotifier{})

	result, err := engine.PayoutEarning(context.Background(), "missing")
	if err != nil {
		t.Fatalf("PayoutEarning: %v", err)
	}
	if result.Success {
		t.Error("payout of a missing earning should not succeed")
	}
	if result.Category != CategoryNotFound {
		t.Errorf("category = %s, want not_found", result.Category)
	}
}

func TestPayoutEarningStoreFailureIsError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	engine := newTestEngine(store, &fakeDirectory{}, newFakeGateway(), &fakeNotifier{})

	_, err := engine.PayoutEarning(context.Background(), "e1")
	if err == nil {
		t.Fatal("expected infrastructure error")
	}
}

func TestPayoutEarningCancelledMidFlight(t *testing.T) {
	store := newFakeStore()
	store.addPending("e1", "w1", 20.00)
	dir := &fakeDirectory{destinations: map[string]string{"w1": "acct_1"}}
	gw := newFakeGateway()

	// The gateway hook cancels the earning while the transfer is in flight,
	// so the paid transition must lose to the cancellation.
	flippingGateway := &flipGateway{inner: gw, store: store, earningID: "e1"}
	engine := NewEngine(store, dir, flippingGateway, nil, nil, 5*time.Second, zerolog.Nop())

	result, err := engine.PayoutEarning(context.Background(), "e1")
	if err != nil {
		t.Fatalf("PayoutEarning: %v", err)
	}
	if result.Success {
		t.Error("payout should not report success for a cancelled earning")
	}
	if result.TransferID == "" {
		t.Error("result should carry the orphaned transfer id for manual reversal")
	}
	if len(store.payments) != 0 {
		t.Errorf("payments = %d, want 0", len(store.payments))
	}
	if store.earnings["e1"].Status != database.EarningStatusCancelled {
		t.Errorf("status = %s, want cancelled", store.earnings["e1"].Status)
	}
}

// flipGateway cancels the earning while the transfer is in flight
type flipGateway struct {
	inner     *fakeGateway
	store     *fakeStore
	earningID string
}

func (g *flipGateway) CreateTransfer(ctx context.Context, amount float64, destination, idempotencyKey string) (*gateway.TransferData, error) {
	transfer, err := g.inner.CreateTransfer(ctx, amount, destination, idempotencyKey)
	g.store.mu.Lock()
	g.store.earnings[g.earningID].Status = database.EarningStatusCancelled
	g.store.mu.Unlock()
	return transfer, err
}
