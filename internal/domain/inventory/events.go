package inventory

import (
	"github.com/google/uuid"

	"github.com/storefront/inventory/internal/domain/shared"
)

// Aggregate type names used in domain events
const (
	AggregateTypeInventoryRecord = "InventoryRecord"
	AggregateTypeReservation     = "Reservation"
)

// Event type constants
const (
	EventTypeLowStock             = "LowStock"
	EventTypeOutOfStock           = "OutOfStock"
	EventTypeReorderSuggested     = "ReorderSuggested"
	EventTypeStockReserved        = "StockReserved"
	EventTypeReservationCommitted = "ReservationCommitted"
	EventTypeReservationReleased  = "ReservationReleased"
	EventTypeReservationExpired   = "ReservationExpired"
)

// LowStockEvent is raised when a record's status transitions into
// LOW_STOCK
type LowStockEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID `json:"product_id"`
	CurrentStock int       `json:"current_stock"`
	Threshold    int       `json:"threshold"`
}

// NewLowStockEvent creates a low stock event from the record
func NewLowStockEvent(record *InventoryRecord) *LowStockEvent {
	return &LowStockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLowStock, AggregateTypeInventoryRecord, record.ID),
		ProductID:       record.ProductID,
		CurrentStock:    record.Quantity,
		Threshold:       record.LowStockThreshold,
	}
}

// EventType returns the event type name
func (e *LowStockEvent) EventType() string {
	return EventTypeLowStock
}

// OutOfStockEvent is raised when a record's on-hand count reaches zero
type OutOfStockEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
}

// NewOutOfStockEvent creates an out of stock event from the record
func NewOutOfStockEvent(record *InventoryRecord) *OutOfStockEvent {
	return &OutOfStockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOutOfStock, AggregateTypeInventoryRecord, record.ID),
		ProductID:       record.ProductID,
	}
}

// EventType returns the event type name
func (e *OutOfStockEvent) EventType() string {
	return EventTypeOutOfStock
}

// ReorderSuggestedEvent is raised when the on-hand count falls to or
// below the reorder point
type ReorderSuggestedEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID `json:"product_id"`
	CurrentStock    int       `json:"current_stock"`
	ReorderPoint    int       `json:"reorder_point"`
	ReorderQuantity int       `json:"reorder_quantity"`
}

// NewReorderSuggestedEvent creates a reorder suggestion from the record
func NewReorderSuggestedEvent(record *InventoryRecord) *ReorderSuggestedEvent {
	return &ReorderSuggestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReorderSuggested, AggregateTypeInventoryRecord, record.ID),
		ProductID:       record.ProductID,
		CurrentStock:    record.Quantity,
		ReorderPoint:    record.ReorderPoint,
		ReorderQuantity: record.ReorderQuantity,
	}
}

// EventType returns the event type name
func (e *ReorderSuggestedEvent) EventType() string {
	return EventTypeReorderSuggested
}

// StockReservedEvent is raised when a hold is placed
type StockReservedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	HolderRef string    `json:"holder_ref"`
}

// NewStockReservedEvent creates a stock reserved event
func NewStockReservedEvent(reservation *Reservation) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, AggregateTypeReservation, reservation.ID),
		ProductID:       reservation.ProductID,
		Quantity:        reservation.Quantity,
		HolderRef:       reservation.HolderRef,
	}
}

// EventType returns the event type name
func (e *StockReservedEvent) EventType() string {
	return EventTypeStockReserved
}

// ReservationCommittedEvent is raised when a hold finalizes into a sale
type ReservationCommittedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	HolderRef string    `json:"holder_ref"`
}

// NewReservationCommittedEvent creates a commit event
func NewReservationCommittedEvent(reservation *Reservation) *ReservationCommittedEvent {
	return &ReservationCommittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationCommitted, AggregateTypeReservation, reservation.ID),
		ProductID:       reservation.ProductID,
		Quantity:        reservation.Quantity,
		HolderRef:       reservation.HolderRef,
	}
}

// EventType returns the event type name
func (e *ReservationCommittedEvent) EventType() string {
	return EventTypeReservationCommitted
}

// ReservationReleasedEvent is raised when a hold is returned manually
type ReservationReleasedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	HolderRef string    `json:"holder_ref"`
}

// NewReservationReleasedEvent creates a release event
func NewReservationReleasedEvent(reservation *Reservation) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationReleased, AggregateTypeReservation, reservation.ID),
		ProductID:       reservation.ProductID,
		Quantity:        reservation.Quantity,
		HolderRef:       reservation.HolderRef,
	}
}

// EventType returns the event type name
func (e *ReservationReleasedEvent) EventType() string {
	return EventTypeReservationReleased
}

// ReservationExpiredEvent is raised when the sweep reclaims an
// abandoned hold
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	HolderRef string    `json:"holder_ref"`
}

// NewReservationExpiredEvent creates an expiry event
func NewReservationExpiredEvent(reservation *Reservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationExpired, AggregateTypeReservation, reservation.ID),
		ProductID:       reservation.ProductID,
		Quantity:        reservation.Quantity,
		HolderRef:       reservation.HolderRef,
	}
}

// EventType returns the event type name
func (e *ReservationExpiredEvent) EventType() string {
	return EventTypeReservationExpired
}
