package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/inventory/internal/domain/shared"
)

// InventoryRecord is the authoritative per-product counter pair plus
// the derived status and replenishment settings. One record exists per
// product; it is created lazily with zero stock and never deleted.
type InventoryRecord struct {
	shared.BaseAggregateRoot
	ProductID         uuid.UUID
	Quantity          int
	ReservedQuantity  int
	LowStockThreshold int
	ReorderPoint      int
	ReorderQuantity   int
	Status            StockStatus
	TrackInventory    bool
	AllowBackorder    bool
	AverageCost       decimal.Decimal
	LastCost          decimal.Decimal
	LastRestockedAt   *time.Time
	LastSoldAt        *time.Time
}

// NewInventoryRecord creates a zero-stock record for a product
func NewInventoryRecord(productID uuid.UUID) (*InventoryRecord, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product ID is required", shared.ErrInvalidInput)
	}
	return &InventoryRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		Status:            StatusOutOfStock,
		TrackInventory:    true,
		AverageCost:       decimal.Zero,
		LastCost:          decimal.Zero,
	}, nil
}

// AvailableQuantity returns what can still be newly reserved
func (r *InventoryRecord) AvailableQuantity() int {
	return r.Quantity - r.ReservedQuantity
}

// IsLowStock reports whether the record is at or below its threshold
func (r *InventoryRecord) IsLowStock() bool {
	return r.Status == StatusLowStock
}

// IsOutOfStock reports whether the record has no on-hand stock
func (r *InventoryRecord) IsOutOfStock() bool {
	return r.Status == StatusOutOfStock
}

// CanFulfill checks whether a reservation or sale of the given quantity
// is allowed. Untracked products and backorder-enabled products always
// pass.
func (r *InventoryRecord) CanFulfill(quantity int) bool {
	if !r.TrackInventory || r.AllowBackorder {
		return true
	}
	return r.AvailableQuantity() >= quantity
}

// ApplyMovement atomically applies one typed movement to the counters:
// it validates the availability invariant, updates the counters, moves
// the status through DeriveStatus and returns the ledger entry to be
// appended in the same persistence transaction. Domain events for
// status transitions and reorder signals are queued on the aggregate.
func (r *InventoryRecord) ApplyMovement(movementType MovementType, quantity int) (*Movement, error) {
	effect, ok := movementType.Effect()
	if !ok {
		return nil, fmt.Errorf("%w: unknown movement type %q", shared.ErrInvalidInput, movementType)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: movement quantity must be positive", shared.ErrInvalidInput)
	}

	newQuantity := r.Quantity + effect.OnHand*quantity
	newReserved := r.ReservedQuantity + effect.Reserved*quantity

	if newReserved < 0 {
		return nil, fmt.Errorf("%w: %s of %d exceeds reserved quantity %d",
			shared.ErrInvalidInput, movementType, quantity, r.ReservedQuantity)
	}
	if r.TrackInventory && !r.AllowBackorder {
		if movementType == MovementReserve && r.AvailableQuantity() < quantity {
			return nil, fmt.Errorf("%w: requested %d, available %d",
				shared.ErrInsufficientStock, quantity, r.AvailableQuantity())
		}
		if newQuantity < 0 {
			return nil, fmt.Errorf("%w: %s of %d exceeds on-hand quantity %d",
				shared.ErrInsufficientStock, movementType, quantity, r.Quantity)
		}
		// An outbound movement must not strand reservations without
		// covering stock; see the reservation coverage invariant.
		if newQuantity < newReserved {
			return nil, fmt.Errorf("%w: %s of %d would leave on-hand %d below reserved %d",
				shared.ErrInsufficientStock, movementType, quantity, newQuantity, newReserved)
		}
	}

	movement, err := NewMovement(r.ProductID, movementType, quantity, r.Quantity)
	if err != nil {
		return nil, err
	}

	previousStatus := r.Status
	r.Quantity = newQuantity
	r.ReservedQuantity = newReserved
	r.Status = DeriveStatus(r.Quantity, r.LowStockThreshold)
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	now := time.Now()
	switch {
	case movementType.IsInbound():
		r.LastRestockedAt = &now
	case movementType == MovementSale:
		r.LastSoldAt = &now
	}

	r.raiseStatusEvents(previousStatus)

	return movement, nil
}

// ApplyInbound applies an inbound movement and folds the unit cost into
// the moving weighted average.
func (r *InventoryRecord) ApplyInbound(movementType MovementType, quantity int, unitCost decimal.Decimal) (*Movement, error) {
	if !movementType.IsInbound() {
		return nil, fmt.Errorf("%w: %s is not an inbound movement type", shared.ErrInvalidInput, movementType)
	}
	if unitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit cost cannot be negative", shared.ErrInvalidInput)
	}

	previousQuantity := r.Quantity
	movement, err := r.ApplyMovement(movementType, quantity)
	if err != nil {
		return nil, err
	}

	if unitCost.IsPositive() {
		r.AverageCost = weightedAverageCost(r.AverageCost, previousQuantity, unitCost, quantity)
		r.LastCost = unitCost
		movement.WithUnitCost(unitCost)
	}

	return movement, nil
}

func weightedAverageCost(currentAvg decimal.Decimal, currentQty int, unitCost decimal.Decimal, addedQty int) decimal.Decimal {
	if currentQty <= 0 {
		return unitCost
	}
	currentValue := currentAvg.Mul(decimal.NewFromInt(int64(currentQty)))
	addedValue := unitCost.Mul(decimal.NewFromInt(int64(addedQty)))
	totalQty := decimal.NewFromInt(int64(currentQty + addedQty))
	return currentValue.Add(addedValue).Div(totalQty).Round(4)
}

func (r *InventoryRecord) raiseStatusEvents(previousStatus StockStatus) {
	if r.Status != previousStatus {
		switch r.Status {
		case StatusLowStock:
			r.AddDomainEvent(NewLowStockEvent(r))
		case StatusOutOfStock:
			r.AddDomainEvent(NewOutOfStockEvent(r))
		}
	}
	if r.ReorderPoint > 0 && r.Quantity <= r.ReorderPoint {
		r.AddDomainEvent(NewReorderSuggestedEvent(r))
	}
}

// SetThresholds updates the replenishment settings. The status is
// re-derived immediately so a threshold change cannot leave a stale
// status behind.
func (r *InventoryRecord) SetThresholds(lowStockThreshold, reorderPoint, reorderQuantity int) error {
	if lowStockThreshold < 0 || reorderPoint < 0 || reorderQuantity < 0 {
		return fmt.Errorf("%w: thresholds cannot be negative", shared.ErrInvalidInput)
	}
	previousStatus := r.Status
	r.LowStockThreshold = lowStockThreshold
	r.ReorderPoint = reorderPoint
	r.ReorderQuantity = reorderQuantity
	r.Status = DeriveStatus(r.Quantity, r.LowStockThreshold)
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	r.raiseStatusEvents(previousStatus)
	return nil
}

// SetBackorder toggles selling beyond available stock
func (r *InventoryRecord) SetBackorder(allowed bool) {
	r.AllowBackorder = allowed
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

// SetTracking toggles inventory tracking. When tracking is off, all
// availability checks pass unconditionally and counters may go
// negative.
func (r *InventoryRecord) SetTracking(enabled bool) {
	r.TrackInventory = enabled
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

// CheckInvariants verifies the counter invariants hold. Backorder and
// untracked products are exempt from the non-negativity rules.
func (r *InventoryRecord) CheckInvariants() error {
	if !r.TrackInventory || r.AllowBackorder {
		return nil
	}
	if r.Quantity < 0 {
		return fmt.Errorf("%w: on-hand quantity %d is negative", shared.ErrInvalidState, r.Quantity)
	}
	if r.ReservedQuantity < 0 {
		return fmt.Errorf("%w: reserved quantity %d is negative", shared.ErrInvalidState, r.ReservedQuantity)
	}
	if r.ReservedQuantity > r.Quantity {
		return fmt.Errorf("%w: reserved quantity %d exceeds on-hand %d", shared.ErrInvalidState, r.ReservedQuantity, r.Quantity)
	}
	return nil
}
