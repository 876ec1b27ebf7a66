package payout

import (
	"context"
	"errors"
	"strings"

	"gig-marketplace/internal/gateway"
)

// classifyGatewayFailure maps a transfer failure to a result category and
// retryability. Classified gateway errors carry their own kind; anything
// else falls back to string matching the way transient network errors
// usually surface.
func classifyGatewayFailure(err error) (category string, retryable bool) {
	if ge, ok := gateway.AsGatewayError(err); ok {
		switch ge.Kind {
		case gateway.KindCapability:
			return CategoryCapability, false
		case gateway.KindTransient:
			return CategoryTransient, true
		default:
			return CategoryGateway, false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient, true
	}

	if isTransientMessage(err.Error()) {
		return CategoryTransient, true
	}

	return CategoryGateway, false
}

// transientPatterns are error text fragments that indicate a retry is worth it
var transientPatterns = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"temporary failure",
	"rate limit",
	"too many requests",
	"service unavailable",
	"no such host",
	"eof",
}

func isTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
