package types

import (
	"math"
	"testing"
)

func TestFeePerShare(t *testing.T) {
	tests := []struct {
		price  float64
		feeBps int
		want   float64
	}{
		{0.45, 200, 0.02 * 0.45 * 0.9},
		{0.55, 200, 0.02 * 0.45 * 0.9}, // min(p, 1−p) mirrors around 0.5
		{0.50, 200, 0.02 * 0.50 * 0.9},
		{0.10, 100, 0.01 * 0.10 * 0.9},
		{0.45, 0, 0},
	}
	for _, tt := range tests {
		got := FeePerShare(tt.price, tt.feeBps)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("FeePerShare(%v, %d) = %v, want %v", tt.price, tt.feeBps, got, tt.want)
		}
	}
}

func TestFeeAsShareRatioMatchesFeeRate(t *testing.T) {
	for _, price := range []float64{0.1, 0.45, 0.5, 0.9} {
		if FeeAsShareRatio(price, 200) != FeePerShare(price, 200) {
			t.Fatalf("share ratio must equal the fee rate at price %v", price)
		}
	}
}
