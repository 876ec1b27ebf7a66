package cache

import (
	"context"
	"testing"
)

type countingResolver struct {
	destinations map[string]string
	calls        int
}

func (r *countingResolver) GetWorkerPayoutDestination(ctx context.Context, workerID string) (string, error) {
	r.calls++
	return r.destinations[workerID], nil
}

func TestDestinationCacheWithoutRedis(t *testing.T) {
	resolver := &countingResolver{destinations: map[string]string{"w1": "acct_1"}}
	dc := NewDestinationCache(nil, resolver)

	dest, err := dc.GetWorkerPayoutDestination(context.Background(), "w1")
	if err != nil {
		t.Fatalf("GetWorkerPayoutDestination: %v", err)
	}
	if dest != "acct_1" {
		t.Errorf("destination = %s, want acct_1", dest)
	}

	// Every lookup hits the resolver when no cache is configured
	if _, err := dc.GetWorkerPayoutDestination(context.Background(), "w1"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if resolver.calls != 2 {
		t.Errorf("resolver calls = %d, want 2", resolver.calls)
	}

	// Invalidate must be a no-op without redis
	dc.Invalidate(context.Background(), "w1")
}

func TestDestinationCacheEmptyDestination(t *testing.T) {
	resolver := &countingResolver{destinations: map[string]string{}}
	dc := NewDestinationCache(nil, resolver)

	dest, err := dc.GetWorkerPayoutDestination(context.Background(), "w-unknown")
	if err != nil {
		t.Fatalf("GetWorkerPayoutDestination: %v", err)
	}
	if dest != "" {
		t.Errorf("destination = %q, want empty", dest)
	}
}
