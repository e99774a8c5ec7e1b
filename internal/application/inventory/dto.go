package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/inventory/internal/domain/inventory"
)

// AvailabilityResponse is the read-side view of a product's stock
type AvailabilityResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int       `json:"quantity"`
	Reserved     int       `json:"reserved"`
	Available    int       `json:"available"`
	Status       string    `json:"status"`
	IsLowStock   bool      `json:"is_low_stock"`
	IsOutOfStock bool      `json:"is_out_of_stock"`
}

// RecordResponse represents a full inventory record
type RecordResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	Quantity          int             `json:"quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	ReorderPoint      int             `json:"reorder_point"`
	ReorderQuantity   int             `json:"reorder_quantity"`
	Status            string          `json:"status"`
	TrackInventory    bool            `json:"track_inventory"`
	AllowBackorder    bool            `json:"allow_backorder"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	LastCost          decimal.Decimal `json:"last_cost"`
	LastRestockedAt   *time.Time      `json:"last_restocked_at,omitempty"`
	LastSoldAt        *time.Time      `json:"last_sold_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// MovementResponse represents one ledger entry
type MovementResponse struct {
	ID               uuid.UUID        `json:"id"`
	ProductID        uuid.UUID        `json:"product_id"`
	Type             string           `json:"type"`
	Quantity         int              `json:"quantity"`
	SignedQuantity   int              `json:"signed_quantity"`
	PreviousQuantity int              `json:"previous_quantity"`
	NewQuantity      int              `json:"new_quantity"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	TotalCost        *decimal.Decimal `json:"total_cost,omitempty"`
	ReferenceType    string           `json:"reference_type,omitempty"`
	ReferenceID      string           `json:"reference_id,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	CreatedBy        string           `json:"created_by,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ReservationResponse represents a stock hold
type ReservationResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Quantity   int        `json:"quantity"`
	HolderRef  string     `json:"holder_ref"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RestockRequest adds purchased stock with its unit cost
type RestockRequest struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       int             `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Reason         string          `json:"reason"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceID    string          `json:"reference_id"`
	Actor          string          `json:"actor"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// AdjustRequest corrects the on-hand count by a signed delta
type AdjustRequest struct {
	ProductID      uuid.UUID `json:"product_id"`
	Delta          int       `json:"delta"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// DamageRequest writes off damaged units
type DamageRequest struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// SetThresholdsRequest updates replenishment settings
type SetThresholdsRequest struct {
	ProductID         uuid.UUID `json:"product_id"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	ReorderPoint      int       `json:"reorder_point"`
	ReorderQuantity   int       `json:"reorder_quantity"`
	AllowBackorder    *bool     `json:"allow_backorder,omitempty"`
	TrackInventory    *bool     `json:"track_inventory,omitempty"`
}

// MovementListFilter narrows movement history queries
type MovementListFilter struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Type      string     `json:"type,omitempty"`
	Reference string     `json:"reference_id,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// SweepStats summarizes one expiry sweep pass. Released counts the
// units returned to the available pool by the expired holds.
type SweepStats struct {
	Scanned     int       `json:"scanned"`
	Expired     int       `json:"expired"`
	Released    int       `json:"released"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

func toAvailabilityResponse(record *inventory.InventoryRecord) *AvailabilityResponse {
	return &AvailabilityResponse{
		ProductID:    record.ProductID,
		Quantity:     record.Quantity,
		Reserved:     record.ReservedQuantity,
		Available:    record.AvailableQuantity(),
		Status:       string(record.Status),
		IsLowStock:   record.IsLowStock(),
		IsOutOfStock: record.IsOutOfStock(),
	}
}

func toRecordResponse(record *inventory.InventoryRecord) *RecordResponse {
	return &RecordResponse{
		ID:                record.ID,
		ProductID:         record.ProductID,
		Quantity:          record.Quantity,
		ReservedQuantity:  record.ReservedQuantity,
		AvailableQuantity: record.AvailableQuantity(),
		LowStockThreshold: record.LowStockThreshold,
		ReorderPoint:      record.ReorderPoint,
		ReorderQuantity:   record.ReorderQuantity,
		Status:            string(record.Status),
		TrackInventory:    record.TrackInventory,
		AllowBackorder:    record.AllowBackorder,
		AverageCost:       record.AverageCost,
		LastCost:          record.LastCost,
		LastRestockedAt:   record.LastRestockedAt,
		LastSoldAt:        record.LastSoldAt,
		UpdatedAt:         record.UpdatedAt,
		Version:           record.GetVersion(),
	}
}

func toMovementResponse(movement *inventory.Movement) *MovementResponse {
	return &MovementResponse{
		ID:               movement.ID,
		ProductID:        movement.ProductID,
		Type:             string(movement.Type),
		Quantity:         movement.Quantity,
		SignedQuantity:   movement.SignedQuantity(),
		PreviousQuantity: movement.PreviousQuantity,
		NewQuantity:      movement.NewQuantity,
		UnitCost:         movement.UnitCost,
		TotalCost:        movement.TotalCost,
		ReferenceType:    movement.ReferenceType,
		ReferenceID:      movement.ReferenceID,
		Reason:           movement.Reason,
		CreatedBy:        movement.CreatedBy,
		CreatedAt:        movement.CreatedAt,
	}
}

func toReservationResponse(reservation *inventory.Reservation) *ReservationResponse {
	return &ReservationResponse{
		ID:         reservation.ID,
		ProductID:  reservation.ProductID,
		Quantity:   reservation.Quantity,
		HolderRef:  reservation.HolderRef,
		Status:     string(reservation.Status),
		ExpiresAt:  reservation.ExpiresAt,
		ResolvedAt: reservation.ResolvedAt,
		CreatedAt:  reservation.CreatedAt,
	}
}
