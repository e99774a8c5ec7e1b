package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

type serviceFixture struct {
	store     *memoryStore
	scope     *NoOpTransactionScope
	service   *InventoryService
	publisher *collectingPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newMemoryStore()
	scope := newMemoryScope(store)
	service := NewInventoryService(scope, scope.Records(), scope.Movements(), zap.NewNop())
	publisher := &collectingPublisher{}
	service.SetEventPublisher(publisher)
	return &serviceFixture{store: store, scope: scope, service: service, publisher: publisher}
}

func TestInventoryService_GetAvailability(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	t.Run("auto-creates a zero-stock record", func(t *testing.T) {
		productID := uuid.New()
		availability, err := f.service.GetAvailability(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 0, availability.Quantity)
		assert.Equal(t, 0, availability.Available)
		assert.True(t, availability.IsOutOfStock)

		// the record now exists
		_, err = f.scope.Records().FindByProductID(ctx, productID)
		assert.NoError(t, err)
	})
}

func TestInventoryService_Restock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	t.Run("adds stock and records the ledger entry", func(t *testing.T) {
		record, err := f.service.Restock(ctx, RestockRequest{
			ProductID: productID,
			Quantity:  40,
			UnitCost:  decimal.NewFromFloat(3.20),
			Reason:    "supplier delivery",
			Actor:     "ops@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, 40, record.Quantity)
		assert.Equal(t, string(inventory.StatusActive), record.Status)
		assert.True(t, record.AverageCost.Equal(decimal.NewFromFloat(3.20)))

		history, err := f.service.MovementHistory(ctx, productID, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, string(inventory.MovementRestock), history[0].Type)
		assert.Equal(t, 0, history[0].PreviousQuantity)
		assert.Equal(t, 40, history[0].NewQuantity)

		fetched, err := f.service.GetRecord(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, record.Quantity, fetched.Quantity)
		assert.NotNil(t, fetched.LastRestockedAt)
	})

	t.Run("rejects invalid quantity", func(t *testing.T) {
		_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 0})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestInventoryService_Adjust(t *testing.T) {
	ctx := context.Background()

	t.Run("positive delta adds stock", func(t *testing.T) {
		f := newServiceFixture(t)
		productID := uuid.New()
		record, err := f.service.Adjust(ctx, AdjustRequest{ProductID: productID, Delta: 12, Reason: "recount"})
		require.NoError(t, err)
		assert.Equal(t, 12, record.Quantity)

		history, err := f.service.MovementHistory(ctx, productID, 1)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.MovementAdjustmentIn), history[0].Type)
	})

	t.Run("negative delta removes stock", func(t *testing.T) {
		f := newServiceFixture(t)
		productID := uuid.New()
		_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 10, UnitCost: decimal.Zero})
		require.NoError(t, err)

		record, err := f.service.Adjust(ctx, AdjustRequest{ProductID: productID, Delta: -4, Reason: "shrinkage"})
		require.NoError(t, err)
		assert.Equal(t, 6, record.Quantity)
	})

	t.Run("zero delta is rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.Adjust(ctx, AdjustRequest{ProductID: uuid.New(), Delta: 0})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("cannot adjust below reserved quantity", func(t *testing.T) {
		f := newServiceFixture(t)
		productID := uuid.New()
		_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 10, UnitCost: decimal.Zero})
		require.NoError(t, err)

		reservations := NewReservationService(f.scope, zap.NewNop())
		_, err = reservations.Reserve(ctx, productID, 8, "cart-1", time.Minute)
		require.NoError(t, err)

		_, err = f.service.Adjust(ctx, AdjustRequest{ProductID: productID, Delta: -5, Reason: "recount"})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})
}

func TestInventoryService_MarkDamaged(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 5, UnitCost: decimal.Zero})
	require.NoError(t, err)

	record, err := f.service.MarkDamaged(ctx, DamageRequest{ProductID: productID, Quantity: 2, Reason: "water damage"})
	require.NoError(t, err)
	assert.Equal(t, 3, record.Quantity)

	_, err = f.service.MarkDamaged(ctx, DamageRequest{ProductID: productID, Quantity: 9})
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestInventoryService_IdempotencyKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	first, err := f.service.Restock(ctx, RestockRequest{
		ProductID:      productID,
		Quantity:       10,
		UnitCost:       decimal.Zero,
		IdempotencyKey: "po-77-line-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, first.Quantity)

	// retried submission with the same key must not double-apply
	second, err := f.service.Restock(ctx, RestockRequest{
		ProductID:      productID,
		Quantity:       10,
		UnitCost:       decimal.Zero,
		IdempotencyKey: "po-77-line-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, second.Quantity)

	history, err := f.service.MovementHistory(ctx, productID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInventoryService_SetThresholds(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 4, UnitCost: decimal.Zero})
	require.NoError(t, err)

	record, err := f.service.SetThresholds(ctx, SetThresholdsRequest{
		ProductID:         productID,
		LowStockThreshold: 5,
		ReorderPoint:      3,
		ReorderQuantity:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, string(inventory.StatusLowStock), record.Status)

	lowStock := f.publisher.eventsOfType(inventory.EventTypeLowStock)
	require.Len(t, lowStock, 1)
}

func TestInventoryService_StatusEventsPublished(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 3, UnitCost: decimal.Zero})
	require.NoError(t, err)

	_, err = f.service.MarkDamaged(ctx, DamageRequest{ProductID: productID, Quantity: 3, Reason: "write-off"})
	require.NoError(t, err)

	outOfStock := f.publisher.eventsOfType(inventory.EventTypeOutOfStock)
	require.Len(t, outOfStock, 1)
}

func TestInventoryService_NoEventsWhenCommitFails(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	scope := &brokenCommitScope{
		inner:     newMemoryScope(store),
		commitErr: errors.New("driver: bad connection"),
	}
	service := NewInventoryService(scope, scope.inner.Records(), scope.inner.Movements(), zap.NewNop())
	publisher := &collectingPublisher{}
	service.SetEventPublisher(publisher)

	_, err := service.Restock(ctx, RestockRequest{ProductID: uuid.New(), Quantity: 5, UnitCost: decimal.Zero})
	require.Error(t, err)
	assert.Empty(t, publisher.events)

	_, err = service.SetThresholds(ctx, SetThresholdsRequest{ProductID: uuid.New(), LowStockThreshold: 2})
	require.Error(t, err)
	assert.Empty(t, publisher.events)
}

func TestInventoryService_VerifyLedger(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 30, UnitCost: decimal.Zero})
	require.NoError(t, err)
	_, err = f.service.Adjust(ctx, AdjustRequest{ProductID: productID, Delta: -5})
	require.NoError(t, err)
	_, err = f.service.MarkDamaged(ctx, DamageRequest{ProductID: productID, Quantity: 2})
	require.NoError(t, err)

	reservations := NewReservationService(f.scope, zap.NewNop())
	held, err := reservations.Reserve(ctx, productID, 4, "cart-9", time.Minute)
	require.NoError(t, err)
	_, err = reservations.Commit(ctx, held.ID)
	require.NoError(t, err)

	ok, err := f.service.VerifyLedger(ctx, productID)
	require.NoError(t, err)
	assert.True(t, ok, "ledger replay must reproduce the stored quantity")
}

func TestInventoryService_ListMovements(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 10, UnitCost: decimal.Zero})
	require.NoError(t, err)
	_, err = f.service.MarkDamaged(ctx, DamageRequest{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	page, err := f.service.ListMovements(ctx, MovementListFilter{
		ProductID: &productID,
		Type:      string(inventory.MovementDamage),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, string(inventory.MovementDamage), page.Items[0].Type)
}

func TestInventoryService_MovementVolume(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 10, UnitCost: decimal.Zero})
	require.NoError(t, err)
	_, err = f.service.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 7, UnitCost: decimal.Zero})
	require.NoError(t, err)

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	volume, err := f.service.MovementVolume(ctx, productID, inventory.MovementRestock, from, to)
	require.NoError(t, err)
	assert.EqualValues(t, 17, volume)

	_, err = f.service.MovementVolume(ctx, productID, inventory.MovementType("TELEPORT"), from, to)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
