package inventory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/inventory/internal/domain/shared"
)

// MovementType classifies a single stock movement.
// The set is closed; every type maps to a fixed signed effect on the
// on-hand and reserved counters through movementEffects.
type MovementType string

const (
	MovementInitialStock   MovementType = "INITIAL_STOCK"
	MovementRestock        MovementType = "RESTOCK"
	MovementPurchase       MovementType = "PURCHASE"
	MovementReturn         MovementType = "RETURN"
	MovementTransferIn     MovementType = "TRANSFER_IN"
	MovementAdjustmentIn   MovementType = "ADJUSTMENT_IN"
	MovementReleaseReserve MovementType = "RELEASE_RESERVE"
	MovementSale           MovementType = "SALE"
	MovementTransferOut    MovementType = "TRANSFER_OUT"
	MovementDamage         MovementType = "DAMAGE"
	MovementTheft          MovementType = "THEFT"
	MovementExpired        MovementType = "EXPIRED"
	MovementAdjustmentOut  MovementType = "ADJUSTMENT_OUT"
	MovementReserve        MovementType = "RESERVE"
)

// MovementEffect is the signed per-unit delta a movement type applies
// to the counters. Each field is -1, 0 or +1.
type MovementEffect struct {
	OnHand   int
	Reserved int
}

var movementEffects = map[MovementType]MovementEffect{
	MovementInitialStock:   {OnHand: +1, Reserved: 0},
	MovementRestock:        {OnHand: +1, Reserved: 0},
	MovementPurchase:       {OnHand: +1, Reserved: 0},
	MovementReturn:         {OnHand: +1, Reserved: 0},
	MovementTransferIn:     {OnHand: +1, Reserved: 0},
	MovementAdjustmentIn:   {OnHand: +1, Reserved: 0},
	MovementReleaseReserve: {OnHand: 0, Reserved: -1},
	MovementSale:           {OnHand: -1, Reserved: -1},
	MovementTransferOut:    {OnHand: -1, Reserved: 0},
	MovementDamage:         {OnHand: -1, Reserved: 0},
	MovementTheft:          {OnHand: -1, Reserved: 0},
	MovementExpired:        {OnHand: -1, Reserved: 0},
	MovementAdjustmentOut:  {OnHand: -1, Reserved: 0},
	MovementReserve:        {OnHand: 0, Reserved: +1},
}

// IsValid checks if the movement type is a known member of the enum
func (t MovementType) IsValid() bool {
	_, ok := movementEffects[t]
	return ok
}

// Effect returns the signed per-unit counter deltas for the type
func (t MovementType) Effect() (MovementEffect, bool) {
	e, ok := movementEffects[t]
	return e, ok
}

// IsInbound reports whether the type increases on-hand stock
func (t MovementType) IsInbound() bool {
	return movementEffects[t].OnHand > 0
}

// IsOutbound reports whether the type decreases on-hand stock
func (t MovementType) IsOutbound() bool {
	return movementEffects[t].OnHand < 0
}

// AllMovementTypes returns every member of the enum
func AllMovementTypes() []MovementType {
	types := make([]MovementType, 0, len(movementEffects))
	for t := range movementEffects {
		types = append(types, t)
	}
	return types
}

// Movement is one immutable, append-only ledger entry. Quantity is an
// unsigned magnitude; the sign comes from the type's effect. Movements
// are never updated or deleted once written.
type Movement struct {
	shared.BaseEntity
	ProductID        uuid.UUID
	Type             MovementType
	Quantity         int
	PreviousQuantity int
	NewQuantity      int
	UnitCost         *decimal.Decimal
	TotalCost        *decimal.Decimal
	ReferenceType    string
	ReferenceID      string
	Reason           string
	IdempotencyKey   string
	CreatedBy        string
}

// NewMovement creates a validated ledger entry for a counter change.
// previousQuantity is the on-hand count before the movement; the new
// on-hand count is derived from the type's effect so the ledger's
// arithmetic invariant holds by construction.
func NewMovement(productID uuid.UUID, movementType MovementType, quantity, previousQuantity int) (*Movement, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product ID is required", shared.ErrInvalidInput)
	}
	effect, ok := movementType.Effect()
	if !ok {
		return nil, fmt.Errorf("%w: unknown movement type %q", shared.ErrInvalidInput, movementType)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: movement quantity must be positive", shared.ErrInvalidInput)
	}

	return &Movement{
		BaseEntity:       shared.NewBaseEntity(),
		ProductID:        productID,
		Type:             movementType,
		Quantity:         quantity,
		PreviousQuantity: previousQuantity,
		NewQuantity:      previousQuantity + effect.OnHand*quantity,
	}, nil
}

// WithUnitCost sets the unit cost and derives the total cost
func (m *Movement) WithUnitCost(unitCost decimal.Decimal) *Movement {
	total := unitCost.Mul(decimal.NewFromInt(int64(m.Quantity)))
	m.UnitCost = &unitCost
	m.TotalCost = &total
	return m
}

// WithReference attaches the originating document (order, transfer, ...)
func (m *Movement) WithReference(refType, refID string) *Movement {
	m.ReferenceType = refType
	m.ReferenceID = refID
	return m
}

// WithReason sets a human-readable reason
func (m *Movement) WithReason(reason string) *Movement {
	m.Reason = reason
	return m
}

// WithActor records who submitted the movement
func (m *Movement) WithActor(actor string) *Movement {
	m.CreatedBy = actor
	return m
}

// WithIdempotencyKey tags the movement so retried submissions are
// detected instead of double-applied
func (m *Movement) WithIdempotencyKey(key string) *Movement {
	m.IdempotencyKey = key
	return m
}

// SignedQuantity returns the on-hand delta this movement applied
func (m *Movement) SignedQuantity() int {
	return movementEffects[m.Type].OnHand * m.Quantity
}

// SignedReservedQuantity returns the reserved delta this movement applied
func (m *Movement) SignedReservedQuantity() int {
	return movementEffects[m.Type].Reserved * m.Quantity
}

// Validate checks the arithmetic invariant of a stored entry
func (m *Movement) Validate() error {
	effect, ok := m.Type.Effect()
	if !ok {
		return fmt.Errorf("%w: unknown movement type %q", shared.ErrInvalidInput, m.Type)
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("%w: movement quantity must be positive", shared.ErrInvalidInput)
	}
	if m.NewQuantity != m.PreviousQuantity+effect.OnHand*m.Quantity {
		return fmt.Errorf("%w: movement balance mismatch: %d -> %d with delta %d",
			shared.ErrInvalidInput, m.PreviousQuantity, m.NewQuantity, effect.OnHand*m.Quantity)
	}
	return nil
}

// ReplayQuantity folds the on-hand deltas of a movement sequence over
// an initial quantity. Replaying a product's full ledger from zero must
// reproduce its current on-hand count exactly.
func ReplayQuantity(initial int, movements []Movement) int {
	quantity := initial
	for i := range movements {
		quantity += movements[i].SignedQuantity()
	}
	return quantity
}
