package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/persistence/models"
)

// GormRecordRepository implements RecordRepository using GORM
type GormRecordRepository struct {
	db *gorm.DB
}

// NewGormRecordRepository creates a new GormRecordRepository
func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormRecordRepository) WithTx(tx *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: tx}
}

// FindByID finds an inventory record by its ID
func (r *GormRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryRecord, error) {
	var model models.InventoryRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProductID finds the inventory record for a product
func (r *GormRecordRepository) FindByProductID(ctx context.Context, productID uuid.UUID) (*inventory.InventoryRecord, error) {
	var model models.InventoryRecordModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProductIDs finds the records for a set of products. Products
// without a record are simply absent from the result.
func (r *GormRecordRepository) FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]inventory.InventoryRecord, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var recordModels []models.InventoryRecordModel
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]inventory.InventoryRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// GetOrCreateByProductID returns the record for a product, creating a
// zero-stock one on first reference.
func (r *GormRecordRepository) GetOrCreateByProductID(ctx context.Context, productID uuid.UUID) (*inventory.InventoryRecord, error) {
	record, err := r.FindByProductID(ctx, productID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	record, err = inventory.NewInventoryRecord(productID)
	if err != nil {
		return nil, err
	}

	// ON CONFLICT handles two callers racing to create the same row
	model := models.InventoryRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return nil, result.Error
	}

	// If the row wasn't created (conflict), fetch the winner's row
	if result.RowsAffected == 0 {
		return r.FindByProductID(ctx, productID)
	}

	return model.ToDomain(), nil
}

// Save creates or updates an inventory record without a version check
func (r *GormRecordRepository) Save(ctx context.Context, record *inventory.InventoryRecord) error {
	model := models.InventoryRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists the record only if the stored version still
// matches expectedVersion.
func (r *GormRecordRepository) SaveWithLock(ctx context.Context, record *inventory.InventoryRecord, expectedVersion int) error {
	model := models.InventoryRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(&models.InventoryRecordModel{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]interface{}{
			"quantity":            model.Quantity,
			"reserved_quantity":   model.ReservedQuantity,
			"low_stock_threshold": model.LowStockThreshold,
			"reorder_point":       model.ReorderPoint,
			"reorder_quantity":    model.ReorderQuantity,
			"status":              model.Status,
			"track_inventory":     model.TrackInventory,
			"allow_backorder":     model.AllowBackorder,
			"average_cost":        model.AverageCost,
			"last_cost":           model.LastCost,
			"last_restocked_at":   model.LastRestockedAt,
			"last_sold_at":        model.LastSoldAt,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindAll finds inventory records matching the filter
func (r *GormRecordRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.InventoryRecord, error) {
	var recordModels []models.InventoryRecordModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InventoryRecordModel{}), filter)

	if err := query.Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]inventory.InventoryRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// Count counts inventory records matching the filter
func (r *GormRecordRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InventoryRecordModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormRecordRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormRecordRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "low_stock":
			if value == true {
				query = query.Where("status IN ?", []string{
					string(inventory.StatusLowStock),
					string(inventory.StatusOutOfStock),
				})
			}
		case "below_reorder_point":
			if value == true {
				query = query.Where("reorder_point > 0 AND quantity <= reorder_point")
			}
		case "has_stock":
			if value == true {
				query = query.Where("quantity > 0")
			}
		case "tracked":
			query = query.Where("track_inventory = ?", value)
		}
	}

	return query
}

// Ensure GormRecordRepository implements RecordRepository
var _ inventory.RecordRepository = (*GormRecordRepository)(nil)
