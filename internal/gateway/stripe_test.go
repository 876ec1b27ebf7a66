package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*StripeService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewStripeService(&Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		BaseURL:       server.URL,
	})
	return svc, server
}

func TestCreateTransfer(t *testing.T) {
	var gotIdempotencyKey, gotBody string

	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transfers" {
			t.Errorf("path = %s, want /transfers", r.URL.Path)
		}
		if user, _, _ := r.BasicAuth(); user != "sk_test_123" {
			t.Errorf("basic auth user = %s, want secret key", user)
		}
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotBody = r.PostForm.Encode()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"tr_abc123","amount":4750,"currency":"usd","destination":"acct_worker1","created":1700000000}`)
	})

	transfer, err := svc.CreateTransfer(context.Background(), 47.50, "acct_worker1", "earning-uuid-1")
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	if transfer.ID != "tr_abc123" {
		t.Errorf("transfer id = %s, want tr_abc123", transfer.ID)
	}
	if transfer.Amount != 4750 {
		t.Errorf("amount = %d, want 4750", transfer.Amount)
	}
	if gotIdempotencyKey != "earning-uuid-1" {
		t.Errorf("Idempotency-Key = %q, want earning-uuid-1", gotIdempotencyKey)
	}
	if gotBody != "amount=4750&currency=usd&destination=acct_worker1&metadata%5Bearning_id%5D=earning-uuid-1" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestCreateTransferRejectsEmptyDestination(t *testing.T) {
	svc := NewStripeService(&Config{SecretKey: "sk_test_123"})

	_, err := svc.CreateTransfer(context.Background(), 10.00, "", "earning-1")
	ge, ok := AsGatewayError(err)
	if !ok {
		t.Fatalf("error = %v, want GatewayError", err)
	}
	if ge.Kind != KindCapability {
		t.Errorf("kind = %s, want capability", ge.Kind)
	}
}

func TestCreateTransferErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantKind   string
		retryable  bool
	}{
		{
			name:       "destination cannot receive transfers",
			statusCode: 400,
			body:       `{"error":{"type":"invalid_request_error","code":"transfers_not_allowed","message":"Your destination account needs to have at least one of the following capabilities enabled: transfers"}}`,
			wantKind:   KindCapability,
			retryable:  false,
		},
		{
			name:       "invalid account",
			statusCode: 400,
			body:       `{"error":{"type":"invalid_request_error","code":"account_invalid","message":"No such destination"}}`,
			wantKind:   KindCapability,
			retryable:  false,
		},
		{
			name:       "rate limited",
			statusCode: 429,
			body:       `{"error":{"type":"rate_limit_error","code":"rate_limit","message":"Too many requests"}}`,
			wantKind:   KindTransient,
			retryable:  true,
		},
		{
			name:       "processor outage",
			statusCode: 503,
			body:       `{"error":{"type":"api_error","message":"Service unavailable"}}`,
			wantKind:   KindTransient,
			retryable:  true,
		},
		{
			name:       "lock timeout",
			statusCode: 400,
			body:       `{"error":{"type":"api_error","code":"lock_timeout","message":"Try again"}}`,
			wantKind:   KindTransient,
			retryable:  true,
		},
		{
			name:       "platform balance insufficient",
			statusCode: 400,
			body:       `{"error":{"type":"invalid_request_error","code":"balance_insufficient","message":"Your account has insufficient funds"}}`,
			wantKind:   KindTransient,
			retryable:  true,
		},
		{
			name:       "generic rejection",
			statusCode: 400,
			body:       `{"error":{"type":"invalid_request_error","code":"parameter_invalid_integer","message":"Invalid integer"}}`,
			wantKind:   KindOther,
			retryable:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.body)
			})

			_, err := svc.CreateTransfer(context.Background(), 25.00, "acct_worker1", "earning-2")
			ge, ok := AsGatewayError(err)
			if !ok {
				t.Fatalf("error = %v, want GatewayError", err)
			}
			if ge.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", ge.Kind, tt.wantKind)
			}
			if ge.Retryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", ge.Retryable(), tt.retryable)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	svc := NewStripeService(&Config{
		SecretKey: "sk_test_123",
		BaseURL:   "http://127.0.0.1:1", // nothing listening
		Timeout:   500 * time.Millisecond,
	})

	_, err := svc.CreateTransfer(context.Background(), 10.00, "acct_worker1", "earning-3")
	ge, ok := AsGatewayError(err)
	if !ok {
		t.Fatalf("error = %v, want GatewayError", err)
	}
	if ge.Kind != KindTransient {
		t.Errorf("kind = %s, want transient", ge.Kind)
	}
}

func signPayload(secret string, timestamp int64, payload []byte) string {
	signed := fmt.Sprintf("%d.%s", timestamp, payload)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(h.Sum(nil)))
}

func TestParseWebhook(t *testing.T) {
	svc := NewStripeService(&Config{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"})
	payload := []byte(`{"id":"evt_1","type":"transfer.reversed","data":{"object":{"id":"tr_abc123","reversed":true}}}`)

	t.Run("valid signature", func(t *testing.T) {
		sig := signPayload("whsec_test", time.Now().Unix(), payload)
		event, err := svc.ParseWebhook(payload, sig)
		if err != nil {
			t.Fatalf("ParseWebhook: %v", err)
		}
		if event.Type != "transfer.reversed" {
			t.Errorf("type = %s, want transfer.reversed", event.Type)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := signPayload("whsec_wrong", time.Now().Unix(), payload)
		if _, err := svc.ParseWebhook(payload, sig); err == nil {
			t.Error("expected signature error")
		}
	})

	t.Run("missing signature header", func(t *testing.T) {
		if _, err := svc.ParseWebhook(payload, ""); err == nil {
			t.Error("expected signature error")
		}
	})
}

func TestToCents(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{47.50, 4750},
		{0.01, 1},
		{2.50, 250},
		{100.00, 10000},
	}

	for _, tt := range tests {
		if got := toCents(tt.amount); got != tt.want {
			t.Errorf("toCents(%v) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}
