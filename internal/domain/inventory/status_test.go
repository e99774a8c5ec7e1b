package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		threshold int
		expected  StockStatus
	}{
		{"zero quantity is out of stock", 0, 5, StatusOutOfStock},
		{"negative quantity is out of stock", -2, 5, StatusOutOfStock},
		{"at threshold is low stock", 5, 5, StatusLowStock},
		{"below threshold is low stock", 1, 5, StatusLowStock},
		{"above threshold is active", 6, 5, StatusActive},
		{"zero threshold never reports low", 1, 0, StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveStatus(tt.quantity, tt.threshold))
		})
	}
}

func TestStockStatus_IsValid(t *testing.T) {
	assert.True(t, StatusActive.IsValid())
	assert.True(t, StatusLowStock.IsValid())
	assert.True(t, StatusOutOfStock.IsValid())
	assert.False(t, StockStatus("DISCONTINUED").IsValid())
}
