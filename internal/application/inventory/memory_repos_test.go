package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// memoryStore backs the in-memory repositories used by the service
// tests. SaveWithLock enforces the same version compare-and-swap as the
// real persistence layer, so the retry loops are exercised for real.
type memoryStore struct {
	mu           sync.Mutex
	records      map[uuid.UUID]inventory.InventoryRecord // keyed by product ID
	movements    []inventory.Movement
	reservations map[uuid.UUID]inventory.Reservation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:      make(map[uuid.UUID]inventory.InventoryRecord),
		reservations: make(map[uuid.UUID]inventory.Reservation),
	}
}

func newMemoryScope(store *memoryStore) *NoOpTransactionScope {
	return NewNoOpTransactionScope(
		&memoryRecordRepo{store: store},
		&memoryMovementRepo{store: store},
		&memoryReservationRepo{store: store},
	)
}

// brokenCommitScope runs the transactional function against the inner
// scope's repositories, then fails the transaction itself, like a
// connection dropped between the last statement and COMMIT.
type brokenCommitScope struct {
	inner     *NoOpTransactionScope
	commitErr error
}

func (s *brokenCommitScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	if err := s.inner.Execute(ctx, fn); err != nil {
		return err
	}
	return s.commitErr
}

var _ TransactionScope = (*brokenCommitScope)(nil)

type memoryRecordRepo struct {
	store *memoryStore
}

func (r *memoryRecordRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, record := range r.store.records {
		if record.ID == id {
			clone := record
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRecordRepo) FindByProductID(_ context.Context, productID uuid.UUID) (*inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	record, ok := r.store.records[productID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := record
	return &clone, nil
}

func (r *memoryRecordRepo) FindByProductIDs(_ context.Context, productIDs []uuid.UUID) ([]inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var records []inventory.InventoryRecord
	for _, id := range productIDs {
		if record, ok := r.store.records[id]; ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func (r *memoryRecordRepo) GetOrCreateByProductID(_ context.Context, productID uuid.UUID) (*inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if record, ok := r.store.records[productID]; ok {
		clone := record
		return &clone, nil
	}
	record, err := inventory.NewInventoryRecord(productID)
	if err != nil {
		return nil, err
	}
	r.store.records[productID] = *record
	clone := *record
	return &clone, nil
}

func (r *memoryRecordRepo) Save(_ context.Context, record *inventory.InventoryRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.records[record.ProductID] = *record
	return nil
}

func (r *memoryRecordRepo) SaveWithLock(_ context.Context, record *inventory.InventoryRecord, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.records[record.ProductID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: version %d expected %d", shared.ErrConcurrencyConflict, current.Version, expectedVersion)
	}
	r.store.records[record.ProductID] = *record
	return nil
}

func (r *memoryRecordRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	records := make([]inventory.InventoryRecord, 0, len(r.store.records))
	for _, record := range r.store.records {
		records = append(records, record)
	}
	return records, nil
}

func (r *memoryRecordRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.records)), nil
}

type memoryMovementRepo struct {
	store *memoryStore
}

func (r *memoryMovementRepo) Create(_ context.Context, movement *inventory.Movement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.movements = append(r.store.movements, *movement)
	return nil
}

func (r *memoryMovementRepo) FindByProductID(_ context.Context, productID uuid.UUID, limit int) ([]inventory.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var movements []inventory.Movement
	for i := len(r.store.movements) - 1; i >= 0; i-- {
		if r.store.movements[i].ProductID == productID {
			movements = append(movements, r.store.movements[i])
			if limit > 0 && len(movements) >= limit {
				break
			}
		}
	}
	return movements, nil
}

func (r *memoryMovementRepo) FindByProductIDAscending(_ context.Context, productID uuid.UUID) ([]inventory.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var movements []inventory.Movement
	for i := range r.store.movements {
		if r.store.movements[i].ProductID == productID {
			movements = append(movements, r.store.movements[i])
		}
	}
	return movements, nil
}

func (r *memoryMovementRepo) FindByIdempotencyKey(_ context.Context, key string) (*inventory.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.movements {
		if r.store.movements[i].IdempotencyKey == key {
			clone := r.store.movements[i]
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryMovementRepo) FindAll(_ context.Context, filter shared.Filter) ([]inventory.Movement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var movements []inventory.Movement
	for i := range r.store.movements {
		if movementMatches(&r.store.movements[i], filter) {
			movements = append(movements, r.store.movements[i])
		}
	}
	return movements, nil
}

func (r *memoryMovementRepo) Count(_ context.Context, filter shared.Filter) (int64, error) {
	movements, _ := r.FindAll(context.Background(), filter)
	return int64(len(movements)), nil
}

func (r *memoryMovementRepo) SumQuantityByTypeAndDateRange(_ context.Context, productID uuid.UUID, movementType inventory.MovementType, from, to time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sum int64
	for i := range r.store.movements {
		m := &r.store.movements[i]
		if m.ProductID == productID && m.Type == movementType && !m.CreatedAt.Before(from) && !m.CreatedAt.After(to) {
			sum += int64(m.Quantity)
		}
	}
	return sum, nil
}

func movementMatches(m *inventory.Movement, filter shared.Filter) bool {
	if productID, ok := filter.Filters["product_id"].(uuid.UUID); ok && m.ProductID != productID {
		return false
	}
	if movementType, ok := filter.Filters["type"].(string); ok && string(m.Type) != movementType {
		return false
	}
	if referenceID, ok := filter.Filters["reference_id"].(string); ok && m.ReferenceID != referenceID {
		return false
	}
	return true
}

type memoryReservationRepo struct {
	store *memoryStore
}

func (r *memoryReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reservation, ok := r.store.reservations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := reservation
	return &clone, nil
}

func (r *memoryReservationRepo) FindActiveByProductID(_ context.Context, productID uuid.UUID) ([]inventory.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var reservations []inventory.Reservation
	for _, reservation := range r.store.reservations {
		if reservation.ProductID == productID && reservation.Status == inventory.ReservationActive {
			reservations = append(reservations, reservation)
		}
	}
	return reservations, nil
}

func (r *memoryReservationRepo) FindExpired(_ context.Context, reference time.Time, limit int) ([]inventory.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var reservations []inventory.Reservation
	for _, reservation := range r.store.reservations {
		if reservation.Status == inventory.ReservationActive && reference.After(reservation.ExpiresAt) {
			reservations = append(reservations, reservation)
			if limit > 0 && len(reservations) >= limit {
				break
			}
		}
	}
	return reservations, nil
}

func (r *memoryReservationRepo) Create(_ context.Context, reservation *inventory.Reservation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.reservations[reservation.ID] = *reservation
	return nil
}

func (r *memoryReservationRepo) SaveWithLock(_ context.Context, reservation *inventory.Reservation, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.reservations[reservation.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: version %d expected %d", shared.ErrConcurrencyConflict, current.Version, expectedVersion)
	}
	r.store.reservations[reservation.ID] = *reservation
	return nil
}

func (r *memoryReservationRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.reservations)), nil
}

var (
	_ inventory.RecordRepository      = (*memoryRecordRepo)(nil)
	_ inventory.MovementRepository    = (*memoryMovementRepo)(nil)
	_ inventory.ReservationRepository = (*memoryReservationRepo)(nil)
)

// collectingPublisher records published events for assertions
type collectingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *collectingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *collectingPublisher) eventsOfType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []shared.DomainEvent
	for _, event := range p.events {
		if event.EventType() == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
