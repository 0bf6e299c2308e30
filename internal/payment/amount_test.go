package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"10", 1000},
		{"12.34", 1234},
		{"19.999", 2000},
		{"19.994", 1999},
		{"0.005", 1},
		{"0.004", 0},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := MinorUnits(decimal.RequireFromString(tt.amount))
			require.Equal(t, tt.want, got)
		})
	}
}
