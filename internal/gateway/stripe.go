// Package gateway is the Stripe Connect client used to move earnings to
// worker accounts.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gig-marketplace/internal/logging"
)

// StripeService handles Stripe Connect transfer integration
type StripeService struct {
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	baseURL       string
	logger        *logging.Logger
}

// Config holds Stripe configuration
type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

// NewStripeService creates a new Stripe service
func NewStripeService(config *Config) *StripeService {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &StripeService{
		secretKey:     config.SecretKey,
		webhookSecret: config.WebhookSecret,
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		logger:        logging.WithComponent("stripe"),
	}
}

// IsConfigured returns true if Stripe is properly configured
func (s *StripeService) IsConfigured() bool {
	return s.secretKey != ""
}

// TransferData represents a Stripe transfer object
type TransferData struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	Created     int64  `json:"created"`
	Reversed    bool   `json:"reversed"`
}

// CreateTransfer moves money to a connected account. The idempotency key is
// the earning id, so a crash-retry of the same earning returns the original
// transfer instead of creating a second one.
func (s *StripeService) CreateTransfer(ctx context.Context, amount float64, destinationAccount, idempotencyKey string) (*TransferData, error) {
	if destinationAccount == "" {
		return nil, &GatewayError{Kind: KindCapability, Message: "no destination account"}
	}

	data := map[string]string{
		"amount":      strconv.FormatInt(toCents(amount), 10),
		"currency":    "usd",
		"destination": destinationAccount,
	}

	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
		// The key is the earning id; mirror it into metadata so the transfer
		// is traceable from the Stripe dashboard too
		data["metadata[earning_id]"] = idempotencyKey
	}

	resp, err := s.makeRequest(ctx, "POST", "/transfers", data, headers)
	if err != nil {
		return nil, err
	}

	var transfer TransferData
	if err := json.Unmarshal(resp, &transfer); err != nil {
		return nil, fmt.Errorf("failed to parse transfer response: %w", err)
	}

	s.logger.Info("Transfer created", "transfer_id", transfer.ID, "destination", destinationAccount, "amount_cents", transfer.Amount)

	return &transfer, nil
}

// GetTransfer retrieves an existing transfer
func (s *StripeService) GetTransfer(ctx context.Context, transferID string) (*TransferData, error) {
	resp, err := s.makeRequest(ctx, "GET", "/transfers/"+transferID, nil, nil)
	if err != nil {
		return nil, err
	}

	var transfer TransferData
	if err := json.Unmarshal(resp, &transfer); err != nil {
		return nil, fmt.Errorf("failed to parse transfer response: %w", err)
	}

	return &transfer, nil
}

// AccountData represents the payout-relevant slice of a connected account
type AccountData struct {
	ID               string `json:"id"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// GetAccount retrieves a connected account's capability state
func (s *StripeService) GetAccount(ctx context.Context, accountID string) (*AccountData, error) {
	resp, err := s.makeRequest(ctx, "GET", "/accounts/"+accountID, nil, nil)
	if err != nil {
		return nil, err
	}

	var account AccountData
	if err := json.Unmarshal(resp, &account); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %w", err)
	}

	return &account, nil
}

// WebhookEvent is the envelope Stripe posts to the webhook endpoint
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies the signature and decodes the event envelope.
// Event dispatch stays with the caller so the gateway has no ledger
// dependency.
func (s *StripeService) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if !s.verifyWebhookSignature(payload, signature) {
		return nil, fmt.Errorf("invalid webhook signature")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}

	return &event, nil
}

// makeRequest performs an authenticated form-encoded request to the Stripe API
func (s *StripeService) makeRequest(ctx context.Context, method, path string, data, headers map[string]string) ([]byte, error) {
	endpoint := s.baseURL + path

	form := url.Values{}
	for k, v := range data {
		form.Set(k, v)
	}
	body := form.Encode()

	var req *http.Request
	var err error
	if method == "GET" {
		if body != "" {
			endpoint += "?" + body
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(body))
	}
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode >= 400 {
		return nil, s.parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseAPIError decodes Stripe's error envelope and classifies it
func (s *StripeService) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return classifyError(statusCode, "", string(body))
	}

	return classifyError(statusCode, errResp.Error.Code, errResp.Error.Message)
}

// verifyWebhookSignature verifies the Stripe webhook signature
func (s *StripeService) verifyWebhookSignature(payload []byte, signatureHeader string) bool {
	if s.webhookSecret == "" {
		return true // Skip verification if no secret configured (dev mode)
	}

	parts := strings.Split(signatureHeader, ",")
	var timestamp string
	var signatures []string

	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	signedPayload := timestamp + "." + string(payload)
	h := hmac.New(sha256.New, []byte(s.webhookSecret))
	h.Write([]byte(signedPayload))
	expectedSig := hex.EncodeToString(h.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			return true
		}
	}

	return false
}

// toCents converts a dollar amount to the integer cents Stripe expects
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
