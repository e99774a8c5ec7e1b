package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/inventory/internal/domain/inventory"
)

// InventoryRecordModel is the persistence model for the InventoryRecord
// aggregate. One row exists per product.
type InventoryRecordModel struct {
	AggregateModel
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Quantity          int             `gorm:"not null;default:0"`
	ReservedQuantity  int             `gorm:"not null;default:0"`
	LowStockThreshold int             `gorm:"not null;default:0"`
	ReorderPoint      int             `gorm:"not null;default:0"`
	ReorderQuantity   int             `gorm:"not null;default:0"`
	Status            string          `gorm:"type:varchar(20);not null;index"`
	TrackInventory    bool            `gorm:"not null;default:true"`
	AllowBackorder    bool            `gorm:"not null;default:false"`
	AverageCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastCost          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastRestockedAt   *time.Time      `gorm:"type:timestamptz"`
	LastSoldAt        *time.Time      `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (InventoryRecordModel) TableName() string {
	return "inventory_records"
}

// ToDomain converts the persistence model to a domain InventoryRecord.
func (m *InventoryRecordModel) ToDomain() *inventory.InventoryRecord {
	record := &inventory.InventoryRecord{
		ProductID:         m.ProductID,
		Quantity:          m.Quantity,
		ReservedQuantity:  m.ReservedQuantity,
		LowStockThreshold: m.LowStockThreshold,
		ReorderPoint:      m.ReorderPoint,
		ReorderQuantity:   m.ReorderQuantity,
		Status:            inventory.StockStatus(m.Status),
		TrackInventory:    m.TrackInventory,
		AllowBackorder:    m.AllowBackorder,
		AverageCost:       m.AverageCost,
		LastCost:          m.LastCost,
		LastRestockedAt:   m.LastRestockedAt,
		LastSoldAt:        m.LastSoldAt,
	}
	m.PopulateAggregateRoot(&record.BaseAggregateRoot)
	return record
}

// FromDomain populates the persistence model from a domain InventoryRecord.
func (m *InventoryRecordModel) FromDomain(r *inventory.InventoryRecord) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProductID = r.ProductID
	m.Quantity = r.Quantity
	m.ReservedQuantity = r.ReservedQuantity
	m.LowStockThreshold = r.LowStockThreshold
	m.ReorderPoint = r.ReorderPoint
	m.ReorderQuantity = r.ReorderQuantity
	m.Status = string(r.Status)
	m.TrackInventory = r.TrackInventory
	m.AllowBackorder = r.AllowBackorder
	m.AverageCost = r.AverageCost
	m.LastCost = r.LastCost
	m.LastRestockedAt = r.LastRestockedAt
	m.LastSoldAt = r.LastSoldAt
}

// InventoryRecordModelFromDomain creates a new persistence model from a domain InventoryRecord.
func InventoryRecordModelFromDomain(r *inventory.InventoryRecord) *InventoryRecordModel {
	m := &InventoryRecordModel{}
	m.FromDomain(r)
	return m
}

// MovementModel is the persistence model for one ledger entry.
// Rows are append-only; there is no update path.
type MovementModel struct {
	BaseModel
	ProductID        uuid.UUID        `gorm:"type:uuid;not null;index:idx_movements_product_created"`
	Type             string           `gorm:"type:varchar(30);not null;index"`
	Quantity         int              `gorm:"not null"`
	PreviousQuantity int              `gorm:"not null"`
	NewQuantity      int              `gorm:"not null"`
	UnitCost         *decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalCost        *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ReferenceType    string           `gorm:"type:varchar(50);index:idx_movements_ref"`
	ReferenceID      string           `gorm:"type:varchar(100);index:idx_movements_ref"`
	Reason           string           `gorm:"type:varchar(255)"`
	IdempotencyKey   string           `gorm:"type:varchar(150);uniqueIndex:idx_movements_idem,where:idempotency_key <> ''"`
	CreatedBy        string           `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "inventory_movements"
}

// ToDomain converts the persistence model to a domain Movement.
func (m *MovementModel) ToDomain() *inventory.Movement {
	return &inventory.Movement{
		BaseEntity:       m.BaseModel.ToDomain(),
		ProductID:        m.ProductID,
		Type:             inventory.MovementType(m.Type),
		Quantity:         m.Quantity,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		UnitCost:         m.UnitCost,
		TotalCost:        m.TotalCost,
		ReferenceType:    m.ReferenceType,
		ReferenceID:      m.ReferenceID,
		Reason:           m.Reason,
		IdempotencyKey:   m.IdempotencyKey,
		CreatedBy:        m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain Movement.
func (m *MovementModel) FromDomain(mv *inventory.Movement) {
	m.FromDomainBaseEntity(mv.BaseEntity)
	m.ProductID = mv.ProductID
	m.Type = string(mv.Type)
	m.Quantity = mv.Quantity
	m.PreviousQuantity = mv.PreviousQuantity
	m.NewQuantity = mv.NewQuantity
	m.UnitCost = mv.UnitCost
	m.TotalCost = mv.TotalCost
	m.ReferenceType = mv.ReferenceType
	m.ReferenceID = mv.ReferenceID
	m.Reason = mv.Reason
	m.IdempotencyKey = mv.IdempotencyKey
	m.CreatedBy = mv.CreatedBy
}

// MovementModelFromDomain creates a new persistence model from a domain Movement.
func MovementModelFromDomain(mv *inventory.Movement) *MovementModel {
	m := &MovementModel{}
	m.FromDomain(mv)
	return m
}

// ReservationModel is the persistence model for the Reservation
// aggregate. Terminal rows are kept for audit.
type ReservationModel struct {
	AggregateModel
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	Quantity   int        `gorm:"not null"`
	HolderRef  string     `gorm:"type:varchar(100);not null;index"`
	Status     string     `gorm:"type:varchar(20);not null;index"`
	ExpiresAt  time.Time  `gorm:"type:timestamptz;not null"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the persistence model to a domain Reservation.
func (m *ReservationModel) ToDomain() *inventory.Reservation {
	reservation := &inventory.Reservation{
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		HolderRef:  m.HolderRef,
		Status:     inventory.ReservationStatus(m.Status),
		ExpiresAt:  m.ExpiresAt,
		ResolvedAt: m.ResolvedAt,
	}
	m.PopulateAggregateRoot(&reservation.BaseAggregateRoot)
	return reservation
}

// FromDomain populates the persistence model from a domain Reservation.
func (m *ReservationModel) FromDomain(r *inventory.Reservation) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProductID = r.ProductID
	m.Quantity = r.Quantity
	m.HolderRef = r.HolderRef
	m.Status = string(r.Status)
	m.ExpiresAt = r.ExpiresAt
	m.ResolvedAt = r.ResolvedAt
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation.
func ReservationModelFromDomain(r *inventory.Reservation) *ReservationModel {
	m := &ReservationModel{}
	m.FromDomain(r)
	return m
}
