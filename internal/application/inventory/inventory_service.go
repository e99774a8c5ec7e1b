package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

const (
	// maxRetryAttempts bounds the optimistic-lock retry loop. When the
	// attempts are exhausted the conflict surfaces to the caller, who
	// retries with backoff.
	maxRetryAttempts = 3

	// defaultIdempotencyTTL is how long a processed movement key is
	// remembered in the fast-path store.
	defaultIdempotencyTTL = 24 * time.Hour
)

// InventoryService handles counter mutations and ledger reads. Every
// write runs inside the transaction scope so the counter update and its
// ledger append commit atomically, guarded by the record's version.
type InventoryService struct {
	txScope          TransactionScope
	recordRepo       inventory.RecordRepository
	movementRepo     inventory.MovementRepository
	idempotencyStore shared.IdempotencyStore
	eventPublisher   shared.EventPublisher
	cache            AvailabilityCache
	idempotencyTTL   time.Duration
	logger           *zap.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	txScope TransactionScope,
	recordRepo inventory.RecordRepository,
	movementRepo inventory.MovementRepository,
	logger *zap.Logger,
) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		txScope:        txScope,
		recordRepo:     recordRepo,
		movementRepo:   movementRepo,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InventoryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore enables fast-path duplicate detection for
// movement submissions carrying an idempotency key
func (s *InventoryService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotencyStore = store
}

// SetAvailabilityCache wires the read cache so mutations can invalidate it
func (s *InventoryService) SetAvailabilityCache(cache AvailabilityCache) {
	s.cache = cache
}

// SetIdempotencyTTL overrides how long processed movement keys are kept
func (s *InventoryService) SetIdempotencyTTL(ttl time.Duration) {
	if ttl > 0 {
		s.idempotencyTTL = ttl
	}
}

// GetAvailability returns the authoritative stock view for a product,
// lazily creating a zero-stock record on first reference.
func (s *InventoryService) GetAvailability(ctx context.Context, productID uuid.UUID) (*AvailabilityResponse, error) {
	record, err := s.recordRepo.GetOrCreateByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toAvailabilityResponse(record), nil
}

// GetRecord returns the full inventory record for a product
func (s *InventoryService) GetRecord(ctx context.Context, productID uuid.UUID) (*RecordResponse, error) {
	record, err := s.recordRepo.GetOrCreateByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toRecordResponse(record), nil
}

// Restock adds purchased stock and folds the unit cost into the moving
// average.
func (s *InventoryService) Restock(ctx context.Context, req RestockRequest) (*RecordResponse, error) {
	return s.recordMovement(ctx, req.ProductID, req.IdempotencyKey, func(record *inventory.InventoryRecord) (*inventory.Movement, error) {
		movement, err := record.ApplyInbound(inventory.MovementRestock, req.Quantity, req.UnitCost)
		if err != nil {
			return nil, err
		}
		movement.WithReason(req.Reason).WithActor(req.Actor)
		if req.ReferenceID != "" {
			movement.WithReference(req.ReferenceType, req.ReferenceID)
		}
		return movement, nil
	})
}

// Adjust corrects the on-hand count by a signed delta, for example
// after a physical recount.
func (s *InventoryService) Adjust(ctx context.Context, req AdjustRequest) (*RecordResponse, error) {
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: adjustment delta cannot be zero", shared.ErrInvalidInput)
	}
	movementType := inventory.MovementAdjustmentIn
	quantity := req.Delta
	if req.Delta < 0 {
		movementType = inventory.MovementAdjustmentOut
		quantity = -req.Delta
	}
	return s.recordMovement(ctx, req.ProductID, req.IdempotencyKey, func(record *inventory.InventoryRecord) (*inventory.Movement, error) {
		movement, err := record.ApplyMovement(movementType, quantity)
		if err != nil {
			return nil, err
		}
		return movement.WithReason(req.Reason).WithActor(req.Actor), nil
	})
}

// MarkDamaged writes off damaged units
func (s *InventoryService) MarkDamaged(ctx context.Context, req DamageRequest) (*RecordResponse, error) {
	return s.recordMovement(ctx, req.ProductID, req.IdempotencyKey, func(record *inventory.InventoryRecord) (*inventory.Movement, error) {
		movement, err := record.ApplyMovement(inventory.MovementDamage, req.Quantity)
		if err != nil {
			return nil, err
		}
		return movement.WithReason(req.Reason).WithActor(req.Actor), nil
	})
}

// SetThresholds updates replenishment settings and re-derives status
func (s *InventoryService) SetThresholds(ctx context.Context, req SetThresholdsRequest) (*RecordResponse, error) {
	var result *RecordResponse
	var committed *inventory.InventoryRecord
	err := s.withRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			record, err := repos.Records().GetOrCreateByProductID(ctx, req.ProductID)
			if err != nil {
				return err
			}
			expectedVersion := record.GetVersion()
			if err := record.SetThresholds(req.LowStockThreshold, req.ReorderPoint, req.ReorderQuantity); err != nil {
				return err
			}
			if req.AllowBackorder != nil {
				record.AllowBackorder = *req.AllowBackorder
			}
			if req.TrackInventory != nil {
				record.TrackInventory = *req.TrackInventory
			}
			if err := repos.Records().SaveWithLock(ctx, record, expectedVersion); err != nil {
				return err
			}
			committed = record
			result = toRecordResponse(record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, committed)
	s.invalidateCache(ctx, req.ProductID)
	return result, nil
}

// MovementHistory returns a product's ledger entries newest first
func (s *InventoryService) MovementHistory(ctx context.Context, productID uuid.UUID, limit int) ([]MovementResponse, error) {
	movements, err := s.movementRepo.FindByProductID(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	responses := make([]MovementResponse, 0, len(movements))
	for i := range movements {
		responses = append(responses, *toMovementResponse(&movements[i]))
	}
	return responses, nil
}

// ListMovements returns one page of filtered ledger entries
func (s *InventoryService) ListMovements(ctx context.Context, filter MovementListFilter) (shared.Paginated[MovementResponse], error) {
	repoFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		repoFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		repoFilter.PageSize = filter.PageSize
	}
	if filter.ProductID != nil {
		repoFilter.Filters["product_id"] = *filter.ProductID
	}
	if filter.Type != "" {
		repoFilter.Filters["type"] = filter.Type
	}
	if filter.Reference != "" {
		repoFilter.Filters["reference_id"] = filter.Reference
	}
	if filter.From != nil {
		repoFilter.Filters["created_after"] = *filter.From
	}
	if filter.To != nil {
		repoFilter.Filters["created_before"] = *filter.To
	}

	movements, err := s.movementRepo.FindAll(ctx, repoFilter)
	if err != nil {
		return shared.Paginated[MovementResponse]{}, err
	}
	total, err := s.movementRepo.Count(ctx, repoFilter)
	if err != nil {
		return shared.Paginated[MovementResponse]{}, err
	}

	responses := make([]MovementResponse, 0, len(movements))
	for i := range movements {
		responses = append(responses, *toMovementResponse(&movements[i]))
	}
	return shared.NewPaginated(responses, total, repoFilter.Page, repoFilter.PageSize), nil
}

// MovementVolume sums movement magnitudes of one type over a period,
// for turnover analytics.
func (s *InventoryService) MovementVolume(ctx context.Context, productID uuid.UUID, movementType inventory.MovementType, from, to time.Time) (int64, error) {
	if !movementType.IsValid() {
		return 0, fmt.Errorf("%w: unknown movement type %q", shared.ErrInvalidInput, movementType)
	}
	return s.movementRepo.SumQuantityByTypeAndDateRange(ctx, productID, movementType, from, to)
}

// VerifyLedger replays a product's full ledger from zero and compares
// the result against the stored on-hand count.
func (s *InventoryService) VerifyLedger(ctx context.Context, productID uuid.UUID) (bool, error) {
	record, err := s.recordRepo.FindByProductID(ctx, productID)
	if err != nil {
		return false, err
	}
	movements, err := s.movementRepo.FindByProductIDAscending(ctx, productID)
	if err != nil {
		return false, err
	}
	replayed := inventory.ReplayQuantity(0, movements)
	if replayed != record.Quantity {
		s.logger.Error("ledger replay mismatch",
			zap.String("product_id", productID.String()),
			zap.Int("replayed_quantity", replayed),
			zap.Int("stored_quantity", record.Quantity),
		)
		return false, nil
	}
	return true, nil
}

// recordMovement runs one guarded counter mutation: duplicate check,
// optimistic-lock retry loop, atomic persist of record plus ledger
// entry, then post-commit event publish and cache invalidation.
func (s *InventoryService) recordMovement(
	ctx context.Context,
	productID uuid.UUID,
	idempotencyKey string,
	mutate func(record *inventory.InventoryRecord) (*inventory.Movement, error),
) (*RecordResponse, error) {
	if duplicate, err := s.checkDuplicate(ctx, idempotencyKey); err != nil {
		return nil, err
	} else if duplicate {
		s.logger.Warn("duplicate movement submission ignored",
			zap.String("product_id", productID.String()),
			zap.String("idempotency_key", idempotencyKey),
		)
		record, err := s.recordRepo.FindByProductID(ctx, productID)
		if err != nil {
			return nil, err
		}
		return toRecordResponse(record), nil
	}

	var result *RecordResponse
	var committed *inventory.InventoryRecord
	err := s.withRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			record, err := repos.Records().GetOrCreateByProductID(ctx, productID)
			if err != nil {
				return err
			}
			expectedVersion := record.GetVersion()

			movement, err := mutate(record)
			if err != nil {
				return err
			}
			if idempotencyKey != "" {
				movement.WithIdempotencyKey(idempotencyKey)
			}

			if err := repos.Records().SaveWithLock(ctx, record, expectedVersion); err != nil {
				return err
			}
			if err := repos.Movements().Create(ctx, movement); err != nil {
				return err
			}

			committed = record
			result = toRecordResponse(record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Events buffered on the aggregate are drained only once the
	// transaction has committed; a rollback discards them with the
	// aggregate.
	s.publishDomainEvents(ctx, committed)
	s.markProcessed(ctx, idempotencyKey)
	s.invalidateCache(ctx, productID)
	return result, nil
}

// withRetry re-runs fn on optimistic lock conflicts up to
// maxRetryAttempts, then surfaces the conflict.
func (s *InventoryService) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		s.logger.Debug("optimistic lock conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetryAttempts),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", shared.ErrConcurrencyConflict, maxRetryAttempts)
}

// checkDuplicate consults the fast-path store first, then the ledger's
// own idempotency key column.
func (s *InventoryService) checkDuplicate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	if s.idempotencyStore != nil {
		processed, err := s.idempotencyStore.IsProcessed(ctx, key)
		if err != nil {
			s.logger.Warn("idempotency store check failed, falling back to ledger", zap.Error(err))
		} else if processed {
			return true, nil
		}
	}
	existing, err := s.movementRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return existing != nil, nil
}

func (s *InventoryService) markProcessed(ctx context.Context, key string) {
	if key == "" || s.idempotencyStore == nil {
		return
	}
	if _, err := s.idempotencyStore.MarkProcessed(ctx, key, s.idempotencyTTL); err != nil {
		s.logger.Warn("failed to mark idempotency key processed", zap.Error(err))
	}
}

func (s *InventoryService) publishDomainEvents(ctx context.Context, record *inventory.InventoryRecord) {
	if s.eventPublisher == nil || record == nil {
		return
	}
	events := record.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = s.eventPublisher.Publish(ctx, events...)
	record.ClearDomainEvents()
}

func (s *InventoryService) invalidateCache(ctx context.Context, productIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Error(err))
	}
}
