package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/inventory/internal/domain/shared"
)

// RecordRepository persists inventory records. Writes go through
// SaveWithLock so concurrent mutators on the same product serialize via
// the version column instead of blocking each other.
type RecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryRecord, error)
	FindByProductID(ctx context.Context, productID uuid.UUID) (*InventoryRecord, error)
	FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]InventoryRecord, error)
	// GetOrCreateByProductID lazily creates a zero-stock record the
	// first time a product is referenced.
	GetOrCreateByProductID(ctx context.Context, productID uuid.UUID) (*InventoryRecord, error)
	Save(ctx context.Context, record *InventoryRecord) error
	// SaveWithLock persists the record only if the stored version still
	// matches expectedVersion; otherwise it returns
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, record *InventoryRecord, expectedVersion int) error
	FindAll(ctx context.Context, filter shared.Filter) ([]InventoryRecord, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// MovementRepository is the append-only ledger. Entries are created
// inside the same transaction as the counter update and never mutated.
type MovementRepository interface {
	Create(ctx context.Context, movement *Movement) error
	// FindByProductID returns a product's movements newest first.
	FindByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]Movement, error)
	// FindByProductIDAscending returns the full ledger oldest first,
	// the order needed for replay.
	FindByProductIDAscending(ctx context.Context, productID uuid.UUID) ([]Movement, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Movement, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Movement, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// SumQuantityByTypeAndDateRange aggregates signed-magnitude volume
	// for turnover analytics.
	SumQuantityByTypeAndDateRange(ctx context.Context, productID uuid.UUID, movementType MovementType, from, to time.Time) (int64, error)
}

// ReservationRepository persists stock holds. Terminal transitions go
// through SaveWithLock so a manual release and the expiry sweep cannot
// both win.
type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	FindActiveByProductID(ctx context.Context, productID uuid.UUID) ([]Reservation, error)
	// FindExpired returns active reservations whose expiry passed
	// before the reference time, oldest expiry first.
	FindExpired(ctx context.Context, reference time.Time, limit int) ([]Reservation, error)
	Create(ctx context.Context, reservation *Reservation) error
	SaveWithLock(ctx context.Context, reservation *Reservation, expectedVersion int) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
