package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
)

// GormMovementRepository implements MovementRepository using GORM.
// The ledger is append-only; this repository exposes no update or
// delete path.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormMovementRepository) WithTx(tx *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: tx}
}

// Create appends one ledger entry
func (r *GormMovementRepository) Create(ctx context.Context, movement *inventory.Movement) error {
	model := models.MovementModelFromDomain(movement)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByProductID returns a product's movements newest first
func (r *GormMovementRepository) FindByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]inventory.Movement, error) {
	var movementModels []models.MovementModel
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&movementModels).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(movementModels), nil
}

// FindByProductIDAscending returns the full ledger oldest first
func (r *GormMovementRepository) FindByProductIDAscending(ctx context.Context, productID uuid.UUID) ([]inventory.Movement, error) {
	var movementModels []models.MovementModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&movementModels).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(movementModels), nil
}

// FindByIdempotencyKey finds the movement recorded under a client key
func (r *GormMovementRepository) FindByIdempotencyKey(ctx context.Context, key string) (*inventory.Movement, error) {
	var model models.MovementModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds movements matching the filter
func (r *GormMovementRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Movement, error) {
	var movementModels []models.MovementModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.MovementModel{}), filter)

	if err := query.Find(&movementModels).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(movementModels), nil
}

// Count counts movements matching the filter
func (r *GormMovementRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.MovementModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumQuantityByTypeAndDateRange sums movement magnitudes for analysis
func (r *GormMovementRepository) SumQuantityByTypeAndDateRange(ctx context.Context, productID uuid.UUID, movementType inventory.MovementType, from, to time.Time) (int64, error) {
	var result struct {
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.MovementModel{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("product_id = ? AND type = ? AND created_at >= ? AND created_at <= ?",
			productID, movementType, from, to).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// applyFilter applies filter options to the query
func (r *GormMovementRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	// id breaks ties between entries sharing a created_at timestamp so
	// pages are stable.
	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir + ", id " + orderDir)
	} else {
		query = query.Order("created_at DESC, id DESC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormMovementRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "type":
			query = query.Where("type = ?", value)
		case "reference_type":
			query = query.Where("reference_type = ?", value)
		case "reference_id":
			query = query.Where("reference_id = ?", value)
		case "created_by":
			query = query.Where("created_by = ?", value)
		case "created_after":
			query = query.Where("created_at >= ?", value)
		case "created_before":
			query = query.Where("created_at <= ?", value)
		}
	}

	return query
}

func toDomainMovements(movementModels []models.MovementModel) []inventory.Movement {
	movements := make([]inventory.Movement, len(movementModels))
	for i, model := range movementModels {
		movements[i] = *model.ToDomain()
	}
	return movements
}

// Ensure GormMovementRepository implements MovementRepository
var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
