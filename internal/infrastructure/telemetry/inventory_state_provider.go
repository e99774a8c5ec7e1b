// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormInventoryStateProvider implements InventoryStateProvider with
// aggregate queries against the inventory tables.
type GormInventoryStateProvider struct {
	db *gorm.DB
}

// NewGormInventoryStateProvider creates a new GormInventoryStateProvider.
func NewGormInventoryStateProvider(db *gorm.DB) *GormInventoryStateProvider {
	return &GormInventoryStateProvider{db: db}
}

// GetLowStockCount returns how many tracked products sit at or below
// their low stock threshold.
func (p *GormInventoryStateProvider) GetLowStockCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("inventory_records").
		Where("track_inventory = ?", true).
		Where("low_stock_threshold > 0 AND quantity - reserved_quantity <= low_stock_threshold").
		Count(&count).Error

	return count, err
}

// GetActiveReservationStats returns the number of active holds and the
// total units they pin.
func (p *GormInventoryStateProvider) GetActiveReservationStats(ctx context.Context) (int64, int64, error) {
	type result struct {
		Count int64 `gorm:"column:count"`
		Units int64 `gorm:"column:units"`
	}

	var r result
	err := p.db.WithContext(ctx).
		Table("reservations").
		Select("COUNT(*) as count, COALESCE(SUM(quantity), 0) as units").
		Where("status = ?", "ACTIVE").
		Scan(&r).Error

	if err != nil {
		return 0, 0, err
	}
	return r.Count, r.Units, nil
}
