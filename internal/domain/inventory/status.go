package inventory

// StockStatus is the derived availability status of a product
type StockStatus string

const (
	StatusActive     StockStatus = "ACTIVE"
	StatusLowStock   StockStatus = "LOW_STOCK"
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
)

// IsValid checks if the status is a known value
func (s StockStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusLowStock, StatusOutOfStock:
		return true
	}
	return false
}

// DeriveStatus computes the stock status from the on-hand quantity.
// It is pure; callers persist the result together with the counters so
// status can never lag behind them.
func DeriveStatus(quantity, lowStockThreshold int) StockStatus {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= lowStockThreshold:
		return StatusLowStock
	default:
		return StatusActive
	}
}
