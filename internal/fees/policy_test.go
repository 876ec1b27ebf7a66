package fees

import (
	"errors"
	"math"
	"testing"
)

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		wantErr bool
	}{
		{"default rate", 0.05, false},
		{"high but valid", 0.30, false},
		{"zero rate", 0, true},
		{"negative rate", -0.05, true},
		{"rate of one", 1.0, true},
		{"rate above one", 1.5, true},
		{"nan rate", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.rate)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPolicy(%v) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			}
		})
	}
}

func TestPolicyCompute(t *testing.T) {
	policy, err := NewPolicy(0.05)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	tests := []struct {
		name    string
		gross   float64
		wantFee float64
		wantNet float64
	}{
		{"fifty dollar job", 50.00, 2.50, 47.50},
		{"hundred dollar job", 100.00, 5.00, 95.00},
		{"odd cents round to nearest", 10.33, 0.52, 9.81},
		{"one cent job", 0.01, 0.00, 0.01},
		{"large job", 12500.00, 625.00, 11875.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := policy.Compute(tt.gross)
			if err != nil {
				t.Fatalf("Compute(%v): %v", tt.gross, err)
			}
			if b.Fee != tt.wantFee {
				t.Errorf("fee = %v, want %v", b.Fee, tt.wantFee)
			}
			if b.Net != tt.wantNet {
				t.Errorf("net = %v, want %v", b.Net, tt.wantNet)
			}
			if got := roundCents(b.Fee + b.Net); got != b.Gross {
				t.Errorf("fee + net = %v, does not reconstruct gross %v", got, b.Gross)
			}
		})
	}
}

func TestPolicyComputeRejectsInvalidAmounts(t *testing.T) {
	policy, err := NewPolicy(0.05)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	invalid := []struct {
		name  string
		gross float64
	}{
		{"zero", 0},
		{"negative", -25.00},
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"over maximum", 2_000_000},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Compute(tt.gross)
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Compute(%v) error = %v, want ErrInvalidAmount", tt.gross, err)
			}
		})
	}
}
