package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
)

// AvailabilityCache is a short-TTL, eventually consistent cache for the
// bulk read path. Cache failures degrade to authoritative reads; they
// are never fatal.
type AvailabilityCache interface {
	Get(ctx context.Context, productID uuid.UUID) (*AvailabilityResponse, bool, error)
	GetBulk(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*AvailabilityResponse, error)
	Set(ctx context.Context, availability *AvailabilityResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, productIDs ...uuid.UUID) error
}

// AvailabilityService serves single and bulk stock checks. Reads may
// come from the cache; reservation, commit and release never do.
type AvailabilityService struct {
	recordRepo inventory.RecordRepository
	cache      AvailabilityCache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewAvailabilityService creates a new AvailabilityService. A nil cache
// makes every read authoritative.
func NewAvailabilityService(
	recordRepo inventory.RecordRepository,
	cache AvailabilityCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		recordRepo: recordRepo,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Get returns one product's availability, served from the cache when
// fresh.
func (s *AvailabilityService) Get(ctx context.Context, productID uuid.UUID) (*AvailabilityResponse, error) {
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, productID)
		if err != nil {
			s.logger.Warn("availability cache read failed", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	record, err := s.recordRepo.GetOrCreateByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	availability := toAvailabilityResponse(record)
	s.fill(ctx, availability)
	return availability, nil
}

// GetBulk returns availability for many products at once, e.g. for
// validating a whole cart. Cache hits are used as-is; misses fall back
// to one authoritative batch read.
func (s *AvailabilityService) GetBulk(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*AvailabilityResponse, error) {
	results := make(map[uuid.UUID]*AvailabilityResponse, len(productIDs))
	missing := productIDs

	if s.cache != nil {
		cached, err := s.cache.GetBulk(ctx, productIDs)
		if err != nil {
			s.logger.Warn("availability cache bulk read failed", zap.Error(err))
		} else {
			missing = missing[:0:0]
			for _, id := range productIDs {
				if hit, ok := cached[id]; ok {
					results[id] = hit
				} else {
					missing = append(missing, id)
				}
			}
		}
	}

	if len(missing) == 0 {
		return results, nil
	}

	records, err := s.recordRepo.FindByProductIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]bool, len(records))
	for i := range records {
		availability := toAvailabilityResponse(&records[i])
		results[records[i].ProductID] = availability
		found[records[i].ProductID] = true
		s.fill(ctx, availability)
	}

	// Products never referenced before read as empty zero-stock views;
	// the record itself is created lazily on the first write.
	for _, id := range missing {
		if !found[id] {
			results[id] = &AvailabilityResponse{
				ProductID:    id,
				Status:       string(inventory.StatusOutOfStock),
				IsOutOfStock: true,
			}
		}
	}

	return results, nil
}

// CanFulfill checks whether a quantity could currently be reserved.
// This is advisory; the authoritative check happens inside reserve.
func (s *AvailabilityService) CanFulfill(ctx context.Context, productID uuid.UUID, quantity int) (bool, int, error) {
	record, err := s.recordRepo.GetOrCreateByProductID(ctx, productID)
	if err != nil {
		return false, 0, err
	}
	return record.CanFulfill(quantity), record.AvailableQuantity(), nil
}

func (s *AvailabilityService) fill(ctx context.Context, availability *AvailabilityResponse) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, availability, s.cacheTTL); err != nil {
		s.logger.Warn("availability cache write failed", zap.Error(err))
	}
}
