package gateway_test

import (
	"order-payment-service/gateway"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.00", gateway.FormatAmount(100))
	assert.Equal(t, "0.05", gateway.FormatAmount(5))
	assert.Equal(t, "1234.56", gateway.FormatAmount(123456))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1.00", 100, false},
		{"1", 100, false},
		{"0.5", 50, false},
		{"999.99", 99999, false},
		{"1.001", 0, true},
		{"-1.00", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"92233720368547758.07", 9223372036854775807, false},
		{"92233720368547758.08", 0, true},
		{"184467440737095517.16", 0, true},
	}

	for _, tt := range tests {
		got, err := gateway.ParseAmount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
