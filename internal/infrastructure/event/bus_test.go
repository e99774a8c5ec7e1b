package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/shared"
)

type stockEvent struct {
	shared.BaseDomainEvent
	Units int64 `json:"units"`
}

func newStockEvent(eventType string) *stockEvent {
	return &stockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "InventoryRecord", uuid.New()),
		Units:           5,
	}
}

// recordingHandler collects every event it receives and can be told to
// fail or panic on the next delivery.
type recordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	received   []shared.DomainEvent
	err        error
	panicNext  bool
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicNext {
		h.panicNext = false
		panic("handler exploded")
	}
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) receivedEvents() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.received...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler("inventory.stock_reserved")
	bus.Subscribe(handler, "inventory.stock_reserved")

	event := newStockEvent("inventory.stock_reserved")
	require.NoError(t, bus.Publish(context.Background(), event))

	got := handler.receivedEvents()
	require.Len(t, got, 1)
	assert.Equal(t, event, got[0])
}

func TestInMemoryEventBus_Publish_MultipleEvents(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler("inventory.movement_recorded")
	bus.Subscribe(handler, "inventory.movement_recorded")

	err := bus.Publish(context.Background(),
		newStockEvent("inventory.movement_recorded"),
		newStockEvent("inventory.movement_recorded"),
	)

	require.NoError(t, err)
	assert.Len(t, handler.receivedEvents(), 2)
}

func TestInMemoryEventBus_Publish_MultipleHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	metrics := newRecordingHandler("inventory.low_stock")
	alerts := newRecordingHandler("inventory.low_stock")
	bus.Subscribe(metrics, "inventory.low_stock")
	bus.Subscribe(alerts, "inventory.low_stock")

	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.low_stock")))

	assert.Len(t, metrics.receivedEvents(), 1)
	assert.Len(t, alerts.receivedEvents(), 1)
}

func TestInMemoryEventBus_Publish_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	// A handler with no declared types receives everything.
	audit := newRecordingHandler()
	bus.Subscribe(audit)

	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.reservation_expired")))

	assert.Len(t, audit.receivedEvents(), 1)
}

func TestInMemoryEventBus_Publish_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newRecordingHandler("inventory.out_of_stock")
	failing.err = errors.New("downstream unavailable")
	healthy := newRecordingHandler("inventory.out_of_stock")
	bus.Subscribe(failing, "inventory.out_of_stock")
	bus.Subscribe(healthy, "inventory.out_of_stock")

	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.out_of_stock")))

	assert.Len(t, failing.receivedEvents(), 1)
	assert.Len(t, healthy.receivedEvents(), 1)
}

func TestInMemoryEventBus_Publish_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	panicking := newRecordingHandler("inventory.stock_reserved")
	panicking.panicNext = true
	healthy := newRecordingHandler("inventory.stock_reserved")
	bus.Subscribe(panicking, "inventory.stock_reserved")
	bus.Subscribe(healthy, "inventory.stock_reserved")

	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.stock_reserved")))

	assert.Len(t, healthy.receivedEvents(), 1)
}

func TestInMemoryEventBus_Publish_NoMatchingHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler("inventory.reservation_committed")
	bus.Subscribe(handler, "inventory.reservation_committed")

	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.reservation_released")))

	assert.Empty(t, handler.receivedEvents())
}

func TestInMemoryEventBus_Subscribe_FallsBackToDeclaredTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler("inventory.reorder_suggested")
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.reorder_suggested")))
	require.NoError(t, bus.Publish(context.Background(), newStockEvent("inventory.low_stock")))

	assert.Len(t, handler.receivedEvents(), 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler("inventory.stock_adjusted")
	bus.Subscribe(handler, "inventory.stock_adjusted")

	_ = bus.Publish(context.Background(), newStockEvent("inventory.stock_adjusted"))
	require.Len(t, handler.receivedEvents(), 1)

	bus.Unsubscribe(handler)

	_ = bus.Publish(context.Background(), newStockEvent("inventory.stock_adjusted"))
	assert.Len(t, handler.receivedEvents(), 1)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	handler := newRecordingHandler("inventory.stock_reserved")
	bus.Subscribe(handler, "inventory.stock_reserved")
	require.NoError(t, bus.Publish(ctx, newStockEvent("inventory.stock_reserved")))
	assert.Len(t, handler.receivedEvents(), 1)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(stopCtx))
}
