package lock

import (
	"context"
	"testing"
	"time"
)

func TestKeyNamespacing(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		lock   string
		want   string
	}{
		{"default prefix", "", "batch", "payouts:lock:batch"},
		{"custom prefix", "svc:", "batch", "svc:batch"},
		{"trims lock name", "", "  batch ", "payouts:lock:batch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil, tt.prefix)
			if got := c.Key(tt.lock); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.lock, got, tt.want)
			}
		})
	}
}

func TestTokenUniqueness(t *testing.T) {
	a, err := Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	b, err := Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}

	if len(a) != 32 {
		t.Errorf("token length = %d, want 32 hex chars", len(a))
	}
	if a == b {
		t.Error("two tokens should not collide")
	}
}

func TestAcquireRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	var nilClient *Client
	if _, err := nilClient.Acquire(ctx, "k", "t", time.Minute); err == nil {
		t.Error("nil client should error")
	}

	c := New(nil, "")
	if _, err := c.Acquire(ctx, "k", "t", time.Minute); err == nil {
		t.Error("client without redis should error")
	}
}
