package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
)

func TestReservationSweeper_SweepExpired(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*reservationFixture, *ReservationSweeper) {
		f := newReservationFixture(t)
		sweeper := NewReservationSweeper(f.service, f.scope.Reservations(), zap.NewNop())
		return f, sweeper
	}

	t.Run("expired hold is reclaimed and availability restored", func(t *testing.T) {
		f, sweeper := setup(t)
		productID := uuid.New()
		f.stock(t, productID, 10, 0)

		reservation, err := f.service.Reserve(ctx, productID, 4, "cart-1", time.Millisecond)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		stats, err := sweeper.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Scanned)
		assert.Equal(t, 1, stats.Expired)
		assert.Equal(t, 4, stats.Released)
		assert.Equal(t, 0, stats.Failed)

		resolved, err := f.scope.Reservations().FindByID(ctx, reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.ReservationExpired, resolved.Status)

		availability, err := f.inventorySvc.GetAvailability(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 10, availability.Available, "expiry must restore prior availability")

		assert.Len(t, f.publisher.eventsOfType(inventory.EventTypeReservationExpired), 1)
	})

	t.Run("unexpired holds are untouched", func(t *testing.T) {
		f, sweeper := setup(t)
		productID := uuid.New()
		f.stock(t, productID, 10, 0)

		reservation, err := f.service.Reserve(ctx, productID, 4, "cart-2", time.Hour)
		require.NoError(t, err)

		stats, err := sweeper.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Scanned)

		resolved, err := f.scope.Reservations().FindByID(ctx, reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.ReservationActive, resolved.Status)
	})

	t.Run("a commit racing the sweep wins exactly once", func(t *testing.T) {
		f, sweeper := setup(t)
		productID := uuid.New()
		f.stock(t, productID, 10, 0)

		reservation, err := f.service.Reserve(ctx, productID, 4, "order-1", time.Millisecond)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		// late commit lands before the sweep gets to the hold
		_, err = f.service.Commit(ctx, reservation.ID)
		require.NoError(t, err)

		stats, err := sweeper.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Expired, "sweep must not double-release a committed hold")
		assert.Equal(t, 0, stats.Released)

		availability, err := f.inventorySvc.GetAvailability(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 6, availability.Quantity)
		assert.Equal(t, 0, availability.Reserved)
	})

	t.Run("sweep with ttl of one second reclaims within one pass", func(t *testing.T) {
		f, sweeper := setup(t)
		productID := uuid.New()
		_, err := f.inventorySvc.Restock(ctx, RestockRequest{ProductID: productID, Quantity: 3, UnitCost: decimal.Zero})
		require.NoError(t, err)

		_, err = f.service.Reserve(ctx, productID, 3, "cart-3", time.Second)
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)

		stats, err := sweeper.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Expired)

		availability, err := f.inventorySvc.GetAvailability(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 3, availability.Available)
	})
}
