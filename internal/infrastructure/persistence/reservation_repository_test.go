package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// newMockReservationRepository creates a GormReservationRepository with a mocked SQL connection
func newMockReservationRepository(t *testing.T) (*GormReservationRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormReservationRepository(gormDB), mock, mockDB
}

func reservationColumns() []string {
	return []string{
		"id", "version", "product_id", "quantity",
		"holder_ref", "status", "expires_at",
	}
}

func TestGormReservationRepository_FindByID(t *testing.T) {
	t.Run("finds existing reservation", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reservationID := uuid.New()
		productID := uuid.New()
		expiresAt := time.Now().Add(15 * time.Minute)

		rows := sqlmock.NewRows(reservationColumns()).AddRow(
			reservationID, 1, productID, 3,
			"cart-81", string(inventory.ReservationActive), expiresAt,
		)

		mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE id = \$1`).
			WithArgs(reservationID, 1).
			WillReturnRows(rows)

		reservation, err := repo.FindByID(context.Background(), reservationID)

		assert.NoError(t, err)
		require.NotNil(t, reservation)
		assert.Equal(t, reservationID, reservation.ID)
		assert.Equal(t, "cart-81", reservation.HolderRef)
		assert.True(t, reservation.IsActive())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for unknown reservation", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reservationID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE id = \$1`).
			WithArgs(reservationID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		reservation, err := repo.FindByID(context.Background(), reservationID)

		assert.Nil(t, reservation)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReservationRepository_FindExpired(t *testing.T) {
	t.Run("returns overdue active holds oldest expiry first", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reference := time.Now()
		productID := uuid.New()

		rows := sqlmock.NewRows(reservationColumns()).
			AddRow(uuid.New(), 1, productID, 2,
				"cart-1", string(inventory.ReservationActive), reference.Add(-10*time.Minute)).
			AddRow(uuid.New(), 1, productID, 1,
				"cart-2", string(inventory.ReservationActive), reference.Add(-1*time.Minute))

		mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE status = \$1 AND expires_at < \$2 ORDER BY expires_at ASC LIMIT \$3`).
			WithArgs(string(inventory.ReservationActive), reference, 500).
			WillReturnRows(rows)

		reservations, err := repo.FindExpired(context.Background(), reference, 500)

		assert.NoError(t, err)
		require.Len(t, reservations, 2)
		assert.Equal(t, "cart-1", reservations[0].HolderRef)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when nothing is overdue", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reference := time.Now()

		mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE status = \$1 AND expires_at < \$2`).
			WillReturnRows(sqlmock.NewRows(reservationColumns()))

		reservations, err := repo.FindExpired(context.Background(), reference, 100)

		assert.NoError(t, err)
		assert.Empty(t, reservations)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReservationRepository_Create(t *testing.T) {
	t.Run("inserts new hold", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reservation, err := inventory.NewReservation(uuid.New(), 3, "order-77", 15*time.Minute)
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO "reservations"`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err = repo.Create(context.Background(), reservation)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReservationRepository_SaveWithLock(t *testing.T) {
	t.Run("persists terminal transition when version matches", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reservation, err := inventory.NewReservation(uuid.New(), 3, "order-77", 15*time.Minute)
		require.NoError(t, err)
		expectedVersion := reservation.Version
		require.NoError(t, reservation.Commit())

		mock.ExpectExec(`UPDATE "reservations" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.SaveWithLock(context.Background(), reservation, expectedVersion)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns conflict when another resolver won", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		reservation, err := inventory.NewReservation(uuid.New(), 3, "order-77", 15*time.Minute)
		require.NoError(t, err)
		expectedVersion := reservation.Version
		require.NoError(t, reservation.Release())

		mock.ExpectExec(`UPDATE "reservations" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), reservation, expectedVersion)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReservationRepository_Count(t *testing.T) {
	t.Run("counts active holds for a product", func(t *testing.T) {
		repo, mock, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		productID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		filter := shared.DefaultFilter()
		filter.Filters["product_id"] = productID
		filter.Filters["status"] = string(inventory.ReservationActive)

		count, err := repo.Count(context.Background(), filter)

		assert.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReservationRepository_InterfaceCompliance(t *testing.T) {
	t.Run("implements ReservationRepository interface", func(t *testing.T) {
		repo, _, mockDB := newMockReservationRepository(t)
		defer mockDB.Close()

		var _ inventory.ReservationRepository = repo
	})
}
