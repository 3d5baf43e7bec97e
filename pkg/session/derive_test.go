package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		price   float64
		want    float64
	}{
		{name: "one and a half ether", balance: 1.5, price: 2000, want: 3000.00},
		{name: "rounds to cents", balance: 0.123456, price: 3456.78, want: 426.76},
		{name: "zero balance", balance: 0, price: 2000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.balance, tt.price))
		})
	}
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "3,000.00", FormatUSD(Derive(1.5, 2000)))
	assert.Equal(t, "1,234.50", FormatUSD(1234.5))
	assert.Equal(t, "0.00", FormatUSD(0))
}
