// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// InventoryMetrics tracks stock movement activity, reservation
// lifecycle outcomes, and inventory health gauges.
type InventoryMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	movementTotal            *Counter
	reservationCreatedTotal  *Counter
	reservationResolvedTotal *Counter
	stockAlertTotal          *Counter

	// Gauge metrics (point-in-time values)
	lowStockCount      *Gauge
	activeReservations *Gauge
	reservedUnits      *Gauge

	// Histogram metrics
	sweepDuration *Histogram

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	provider InventoryStateProvider
}

// InventoryStateProvider provides aggregated inventory state for
// periodic gauge collection. The interface keeps the telemetry layer
// off the domain repositories.
type InventoryStateProvider interface {
	// GetLowStockCount returns how many tracked products sit at or below
	// their low stock threshold
	GetLowStockCount(ctx context.Context) (int64, error)

	// GetActiveReservationStats returns the number of active holds and
	// the total units they pin
	GetActiveReservationStats(ctx context.Context) (count int64, units int64, err error)
}

// InventoryMetricsConfig holds configuration for inventory metrics.
type InventoryMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	Provider        InventoryStateProvider
}

// NewInventoryMetrics creates a new InventoryMetrics instance.
func NewInventoryMetrics(cfg InventoryMetricsConfig) (*InventoryMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	im := &InventoryMetrics{
		meter:    cfg.Meter,
		logger:   logger,
		stopChan: make(chan struct{}),
		provider: cfg.Provider,
	}

	var err error

	im.movementTotal, err = NewCounter(
		cfg.Meter,
		"inventory_movement_total",
		"Total number of stock movements recorded",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	im.reservationCreatedTotal, err = NewCounter(
		cfg.Meter,
		"inventory_reservation_created_total",
		"Total number of stock reservations created",
		"{reservations}",
	)
	if err != nil {
		return nil, err
	}

	im.reservationResolvedTotal, err = NewCounter(
		cfg.Meter,
		"inventory_reservation_resolved_total",
		"Total number of reservations resolved, labeled by outcome",
		"{reservations}",
	)
	if err != nil {
		return nil, err
	}

	im.stockAlertTotal, err = NewCounter(
		cfg.Meter,
		"inventory_stock_alert_total",
		"Total number of stock level alerts raised",
		"{alerts}",
	)
	if err != nil {
		return nil, err
	}

	im.lowStockCount, err = NewGauge(
		cfg.Meter,
		"inventory_low_stock_count",
		"Number of tracked products at or below their low stock threshold",
		"{products}",
	)
	if err != nil {
		return nil, err
	}

	im.activeReservations, err = NewGauge(
		cfg.Meter,
		"inventory_active_reservations",
		"Number of currently active stock reservations",
		"{reservations}",
	)
	if err != nil {
		return nil, err
	}

	im.reservedUnits, err = NewGauge(
		cfg.Meter,
		"inventory_reserved_units",
		"Total units pinned by active reservations",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	im.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "inventory_sweep_duration_seconds",
		Description: "Expiry sweep pass duration in seconds",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return im, nil
}

// RecordMovement records a stock movement by type.
func (im *InventoryMetrics) RecordMovement(ctx context.Context, movementType string) {
	im.movementTotal.Inc(ctx, AttrMovementType.String(movementType))
}

// RecordReservationCreated records a new stock hold.
func (im *InventoryMetrics) RecordReservationCreated(ctx context.Context) {
	im.reservationCreatedTotal.Inc(ctx)
}

// RecordReservationResolved records a hold leaving the active state.
// Outcome is the terminal reservation status (COMMITTED, RELEASED, EXPIRED).
func (im *InventoryMetrics) RecordReservationResolved(ctx context.Context, outcome string) {
	im.reservationResolvedTotal.Inc(ctx, AttrReservationStatus.String(outcome))
}

// RecordStockAlert records a stock level alert by type.
func (im *InventoryMetrics) RecordStockAlert(ctx context.Context, alertType string) {
	im.stockAlertTotal.Inc(ctx, AttrAlertType.String(alertType))
}

// RecordSweepDuration records how long one expiry sweep pass took.
func (im *InventoryMetrics) RecordSweepDuration(ctx context.Context, d time.Duration) {
	im.sweepDuration.RecordDuration(ctx, d)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking. Use Stop() to stop collection.
func (im *InventoryMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	im.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go im.runPeriodicCollection(ctx, interval)
	})
}

func (im *InventoryMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	im.collectGauges(ctx)

	for {
		select {
		case <-im.stopChan:
			im.logger.Info("Stopping periodic inventory metrics collection")
			return
		case <-ctx.Done():
			im.logger.Info("Context cancelled, stopping periodic inventory metrics collection")
			return
		case <-ticker.C:
			im.collectGauges(ctx)
		}
	}
}

func (im *InventoryMetrics) collectGauges(ctx context.Context) {
	if im.provider == nil {
		im.logger.Debug("No state provider configured, skipping gauge collection")
		return
	}

	lowStock, err := im.provider.GetLowStockCount(ctx)
	if err != nil {
		im.logger.Warn("Failed to get low stock count", zap.Error(err))
	} else {
		im.lowStockCount.Record(ctx, lowStock)
	}

	count, units, err := im.provider.GetActiveReservationStats(ctx)
	if err != nil {
		im.logger.Warn("Failed to get active reservation stats", zap.Error(err))
	} else {
		im.activeReservations.Record(ctx, count)
		im.reservedUnits.Record(ctx, units)
	}
}

// Stop stops the periodic collection.
func (im *InventoryMetrics) Stop() {
	im.stopOnce.Do(func() {
		close(im.stopChan)
	})
}

// =============================================================================
// Event Bus Integration
// =============================================================================

// MetricsEventHandler bridges domain events onto the counter metrics so
// the application layer stays free of telemetry imports.
type MetricsEventHandler struct {
	metrics *InventoryMetrics
}

// NewMetricsEventHandler creates a handler that feeds domain events
// into the inventory counters.
func NewMetricsEventHandler(metrics *InventoryMetrics) *MetricsEventHandler {
	return &MetricsEventHandler{metrics: metrics}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsEventHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeStockReserved,
		inventory.EventTypeReservationCommitted,
		inventory.EventTypeReservationReleased,
		inventory.EventTypeReservationExpired,
		inventory.EventTypeLowStock,
		inventory.EventTypeOutOfStock,
		inventory.EventTypeReorderSuggested,
	}
}

// Handle increments the counter matching the event type.
func (h *MetricsEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch event.EventType() {
	case inventory.EventTypeStockReserved:
		h.metrics.RecordReservationCreated(ctx)
	case inventory.EventTypeReservationCommitted:
		h.metrics.RecordReservationResolved(ctx, string(inventory.ReservationCommitted))
	case inventory.EventTypeReservationReleased:
		h.metrics.RecordReservationResolved(ctx, string(inventory.ReservationReleased))
	case inventory.EventTypeReservationExpired:
		h.metrics.RecordReservationResolved(ctx, string(inventory.ReservationExpired))
	case inventory.EventTypeLowStock, inventory.EventTypeOutOfStock, inventory.EventTypeReorderSuggested:
		h.metrics.RecordStockAlert(ctx, event.EventType())
	}
	return nil
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewInventoryMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
