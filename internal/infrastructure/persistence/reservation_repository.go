package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormReservationRepository) WithTx(tx *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: tx}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByProductID finds active holds for a product, oldest first
func (r *GormReservationRepository) FindActiveByProductID(ctx context.Context, productID uuid.UUID) ([]inventory.Reservation, error) {
	var reservationModels []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, string(inventory.ReservationActive)).
		Order("created_at ASC").
		Find(&reservationModels).Error; err != nil {
		return nil, err
	}
	return toDomainReservations(reservationModels), nil
}

// FindExpired finds active holds whose expiry passed before the
// reference time, oldest expiry first. The query is served by the
// partial index on (expires_at) for active rows.
func (r *GormReservationRepository) FindExpired(ctx context.Context, reference time.Time, limit int) ([]inventory.Reservation, error) {
	var reservationModels []models.ReservationModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(inventory.ReservationActive), reference).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reservationModels).Error; err != nil {
		return nil, err
	}
	return toDomainReservations(reservationModels), nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, reservation *inventory.Reservation) error {
	model := models.ReservationModelFromDomain(reservation)
	return r.db.WithContext(ctx).Create(model).Error
}

// SaveWithLock persists the reservation only if the stored version
// still matches expectedVersion. A manual resolve and the expiry sweep
// racing on the same hold serialize here.
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, reservation *inventory.Reservation, expectedVersion int) error {
	model := models.ReservationModelFromDomain(reservation)
	result := r.db.WithContext(ctx).
		Model(&models.ReservationModel{}).
		Where("id = ? AND version = ?", reservation.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"resolved_at": model.ResolvedAt,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts reservations matching the filter
func (r *GormReservationRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ReservationModel{})
	for key, value := range filter.Filters {
		switch key {
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "holder_ref":
			query = query.Where("holder_ref = ?", value)
		}
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toDomainReservations(reservationModels []models.ReservationModel) []inventory.Reservation {
	reservations := make([]inventory.Reservation, len(reservationModels))
	for i, model := range reservationModels {
		reservations[i] = *model.ToDomain()
	}
	return reservations
}

// Ensure GormReservationRepository implements ReservationRepository
var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
