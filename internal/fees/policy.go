// Package fees computes the marketplace service fee taken from job proceeds.
package fees

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAmount is returned for amounts the policy refuses to price
var ErrInvalidAmount = errors.New("invalid amount")

// DefaultRate is the platform cut applied when no rate is configured
const DefaultRate = 0.05

// maxAmount guards against nonsense inputs upstream validation missed
const maxAmount = 1_000_000

// Breakdown is the result of applying the fee policy to a gross amount
type Breakdown struct {
	Gross float64 `json:"gross"`
	Fee   float64 `json:"fee"`
	Net   float64 `json:"net"`
}

// Policy computes service fees as a flat percentage of the gross amount,
// rounded to cents. Fee plus net always reconstructs gross exactly.
type Policy struct {
	rate float64
}

// NewPolicy creates a fee policy with the given rate. The rate must be a
// fraction in (0, 1), e.g. 0.05 for a 5% platform cut.
func NewPolicy(rate float64) (*Policy, error) {
	if rate <= 0 || rate >= 1 || math.IsNaN(rate) {
		return nil, fmt.Errorf("fee rate must be between 0 and 1, got %v", rate)
	}
	return &Policy{rate: rate}, nil
}

// Rate returns the configured fee fraction
func (p *Policy) Rate() float64 {
	return p.rate
}

// Compute applies the fee policy to a gross amount. Invalid amounts are
// rejected, never clamped: a zero or negative gross is a caller bug and
// silently pricing it would corrupt the ledger.
func (p *Policy) Compute(gross float64) (Breakdown, error) {
	if gross <= 0 || math.IsNaN(gross) || math.IsInf(gross, 0) {
		return Breakdown{}, fmt.Errorf("%w: gross must be positive, got %v", ErrInvalidAmount, gross)
	}
	if gross > maxAmount {
		return Breakdown{}, fmt.Errorf("%w: gross %v exceeds maximum %d", ErrInvalidAmount, gross, maxAmount)
	}

	gross = roundCents(gross)
	fee := roundCents(gross * p.rate)
	net := roundCents(gross - fee)

	return Breakdown{Gross: gross, Fee: fee, Net: net}, nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
