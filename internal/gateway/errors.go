package gateway

import (
	"errors"
	"fmt"
)

// Error kinds partition processor failures by how the caller should react.
const (
	// KindCapability means the destination account cannot receive transfers.
	// Retrying without the payee fixing onboarding is pointless.
	KindCapability = "capability"

	// KindTransient covers rate limits, timeouts and processor outages.
	// Safe to retry later.
	KindTransient = "transient"

	// KindOther is everything else the processor rejected
	KindOther = "other"
)

// GatewayError wraps a processor failure with a classification kind
type GatewayError struct {
	Kind       string
	Code       string
	Message    string
	StatusCode int
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error (%s/%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is worth retrying
func (e *GatewayError) Retryable() bool {
	return e.Kind == KindTransient
}

// AsGatewayError unwraps a GatewayError from an error chain
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// capabilityCodes are processor error codes that mean the destination
// account is not able to receive transfers
var capabilityCodes = map[string]bool{
	"account_invalid":                        true,
	"transfers_not_allowed":                  true,
	"insufficient_capabilities_for_transfer": true,
	"account_capabilities_unsupported":       true,
	"payouts_not_allowed":                    true,
}

// transientCodes are processor error codes safe to retry. A platform balance
// shortfall comes back as HTTP 400 but clears once funds land, so it is
// retryable despite the 4xx status.
var transientCodes = map[string]bool{
	"lock_timeout":         true,
	"rate_limit":           true,
	"processing_error":     true,
	"api_connection_error": true,
	"balance_insufficient": true,
}

// classifyError maps a processor error response to a GatewayError kind
func classifyError(statusCode int, code, message string) *GatewayError {
	kind := KindOther

	switch {
	case capabilityCodes[code]:
		kind = KindCapability
	case transientCodes[code]:
		kind = KindTransient
	case statusCode == 429 || statusCode >= 500:
		kind = KindTransient
	}

	return &GatewayError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// transportError wraps a failure to reach the processor at all. Network
// errors are always transient.
func transportError(err error) *GatewayError {
	return &GatewayError{
		Kind:    KindTransient,
		Message: fmt.Sprintf("request failed: %v", err),
	}
}
