package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

func newTestMetrics(t *testing.T) *InventoryMetrics {
	t.Helper()

	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	im, err := NewInventoryMetrics(InventoryMetricsConfig{
		Meter:  provider.Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return im
}

func TestNewInventoryMetrics_NilMeter(t *testing.T) {
	_, err := NewInventoryMetrics(InventoryMetricsConfig{})
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestInventoryMetrics_Recorders(t *testing.T) {
	im := newTestMetrics(t)
	ctx := context.Background()

	im.RecordMovement(ctx, string(inventory.MovementRestock))
	im.RecordReservationCreated(ctx)
	im.RecordReservationResolved(ctx, string(inventory.ReservationCommitted))
	im.RecordStockAlert(ctx, inventory.EventTypeLowStock)
	im.RecordSweepDuration(ctx, 150*time.Millisecond)
}

type metricsTestEvent struct {
	shared.BaseDomainEvent
}

func newMetricsTestEvent(eventType string) *metricsTestEvent {
	return &metricsTestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New()),
	}
}

func TestMetricsEventHandler(t *testing.T) {
	im := newTestMetrics(t)
	handler := NewMetricsEventHandler(im)

	assert.Contains(t, handler.EventTypes(), inventory.EventTypeStockReserved)
	assert.Contains(t, handler.EventTypes(), inventory.EventTypeReservationExpired)
	assert.Contains(t, handler.EventTypes(), inventory.EventTypeLowStock)

	ctx := context.Background()
	for _, eventType := range handler.EventTypes() {
		err := handler.Handle(ctx, newMetricsTestEvent(eventType))
		assert.NoError(t, err)
	}
}
