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
	// DefaultReservationTTL is used when the caller does not pass an
	// explicit hold duration (15 minutes, a typical checkout window).
	DefaultReservationTTL = 15 * time.Minute

	// referenceTypeReservation tags ledger entries written on behalf of
	// a reservation so the movement can be traced back to its hold.
	referenceTypeReservation = "reservation"
)

// ReservationService orchestrates the hold lifecycle. A reserve bumps
// the reserved counter and creates the hold in one transaction; commit,
// release and the expiry sweep all resolve holds through the same
// guarded compare-and-transition, so exactly one terminal outcome wins
// any race.
type ReservationService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	cache          AvailabilityCache
	logger         *zap.Logger
	defaultTTL     time.Duration
}

// NewReservationService creates a new ReservationService
func NewReservationService(txScope TransactionScope, logger *zap.Logger) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		txScope:    txScope,
		logger:     logger,
		defaultTTL: DefaultReservationTTL,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAvailabilityCache wires the read cache so mutations can invalidate it
func (s *ReservationService) SetAvailabilityCache(cache AvailabilityCache) {
	s.cache = cache
}

// SetDefaultTTL overrides the fallback hold duration
func (s *ReservationService) SetDefaultTTL(ttl time.Duration) {
	if ttl > 0 {
		s.defaultTTL = ttl
	}
}

// Reserve places a hold of quantity against a cart or order. The
// reserved counter bump, the RESERVE ledger entry and the hold record
// commit in one transaction against fresh authoritative state.
func (s *ReservationService) Reserve(ctx context.Context, productID uuid.UUID, quantity int, holderRef string, ttl time.Duration) (*ReservationResponse, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	var result *ReservationResponse
	var committedRecord *inventory.InventoryRecord
	var committedReservation *inventory.Reservation
	err := s.withRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			record, err := repos.Records().GetOrCreateByProductID(ctx, productID)
			if err != nil {
				return err
			}
			expectedVersion := record.GetVersion()

			movement, err := record.ApplyMovement(inventory.MovementReserve, quantity)
			if err != nil {
				return err
			}

			reservation, err := inventory.NewReservation(productID, quantity, holderRef, ttl)
			if err != nil {
				return err
			}
			movement.WithReference(referenceTypeReservation, reservation.ID.String()).WithActor(holderRef)

			if err := repos.Records().SaveWithLock(ctx, record, expectedVersion); err != nil {
				return err
			}
			if err := repos.Movements().Create(ctx, movement); err != nil {
				return err
			}
			if err := repos.Reservations().Create(ctx, reservation); err != nil {
				return err
			}

			committedRecord = record
			committedReservation = reservation
			result = toReservationResponse(reservation)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Buffered events leave the aggregates only after the transaction
	// has committed; a rollback discards them with the aggregates.
	s.publishDomainEvents(ctx, committedRecord, committedReservation)
	s.invalidateCache(ctx, productID)
	s.logger.Info("stock reserved",
		zap.String("reservation_id", result.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
		zap.String("holder_ref", holderRef),
	)
	return result, nil
}

// Commit finalizes a hold into a sale: on-hand and reserved drop
// together through a single SALE ledger entry. Committing an already
// resolved reservation is an idempotent no-op.
func (s *ReservationService) Commit(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return s.resolve(ctx, reservationID, inventory.ReservationCommitted)
}

// Release returns a held quantity to the available pool. Releasing an
// already resolved reservation is an idempotent no-op.
func (s *ReservationService) Release(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return s.resolve(ctx, reservationID, inventory.ReservationReleased)
}

// expire reclaims an abandoned hold on behalf of the sweep. It shares
// the guarded transition with Commit and Release, so a late manual call
// racing the sweep cannot double-release.
func (s *ReservationService) expire(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return s.resolve(ctx, reservationID, inventory.ReservationExpired)
}

func (s *ReservationService) resolve(ctx context.Context, reservationID uuid.UUID, target inventory.ReservationStatus) (*ReservationResponse, error) {
	var result *ReservationResponse
	var productID uuid.UUID
	var mutated bool
	var committedRecord *inventory.InventoryRecord
	var committedReservation *inventory.Reservation

	err := s.withRetry(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			reservation, err := repos.Reservations().FindByID(ctx, reservationID)
			if err != nil {
				return err
			}

			if !reservation.IsActive() {
				// A terminal reservation stays with whichever
				// transition won; retried client calls succeed.
				s.logger.Warn("reservation already resolved, treating as idempotent success",
					zap.String("reservation_id", reservationID.String()),
					zap.String("current_status", string(reservation.Status)),
					zap.String("requested_status", string(target)),
				)
				result = toReservationResponse(reservation)
				mutated = false
				return nil
			}

			expectedReservationVersion := reservation.GetVersion()
			if err := s.transition(reservation, target); err != nil {
				return err
			}

			record, err := repos.Records().FindByProductID(ctx, reservation.ProductID)
			if err != nil {
				return err
			}
			expectedRecordVersion := record.GetVersion()

			movementType := inventory.MovementReleaseReserve
			if target == inventory.ReservationCommitted {
				movementType = inventory.MovementSale
			}
			movement, err := record.ApplyMovement(movementType, reservation.Quantity)
			if err != nil {
				return err
			}
			movement.WithReference(referenceTypeReservation, reservation.ID.String())
			if target == inventory.ReservationExpired {
				movement.WithReason("reservation expired")
			}

			if err := repos.Reservations().SaveWithLock(ctx, reservation, expectedReservationVersion); err != nil {
				return err
			}
			if err := repos.Records().SaveWithLock(ctx, record, expectedRecordVersion); err != nil {
				return err
			}
			if err := repos.Movements().Create(ctx, movement); err != nil {
				return err
			}

			committedRecord = record
			committedReservation = reservation
			result = toReservationResponse(reservation)
			productID = record.ProductID
			mutated = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if mutated {
		s.publishDomainEvents(ctx, committedRecord, committedReservation)
		s.invalidateCache(ctx, productID)
	}
	return result, nil
}

func (s *ReservationService) transition(reservation *inventory.Reservation, target inventory.ReservationStatus) error {
	switch target {
	case inventory.ReservationCommitted:
		return reservation.Commit()
	case inventory.ReservationReleased:
		return reservation.Release()
	case inventory.ReservationExpired:
		return reservation.Expire()
	default:
		return fmt.Errorf("%w: %s is not a terminal reservation status", shared.ErrInvalidInput, target)
	}
}

func (s *ReservationService) withRetry(ctx context.Context, fn func() error) error {
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

func (s *ReservationService) publishDomainEvents(ctx context.Context, sources ...shared.AggregateRoot) {
	if s.eventPublisher == nil {
		return
	}
	var events []shared.DomainEvent
	for _, source := range sources {
		events = append(events, source.GetDomainEvents()...)
		source.ClearDomainEvents()
	}
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

func (s *ReservationService) invalidateCache(ctx context.Context, productIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Error(err))
	}
}
