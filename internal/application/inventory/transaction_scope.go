package inventory

import (
	"context"

	"github.com/storefront/inventory/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all inventory repositories within a transaction.
// All repositories returned share the same underlying database transaction, so a
// counter update, its ledger append and any reservation write commit or roll back
// as one unit.
type TransactionalRepositories interface {
	// Records returns the inventory record repository scoped to the current transaction
	Records() inventory.RecordRepository
	// Movements returns the movement ledger repository scoped to the current transaction
	Movements() inventory.MovementRepository
	// Reservations returns the reservation repository scoped to the current transaction
	Reservations() inventory.ReservationRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	recordRepo      inventory.RecordRepository
	movementRepo    inventory.MovementRepository
	reservationRepo inventory.ReservationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	recordRepo inventory.RecordRepository,
	movementRepo inventory.MovementRepository,
	reservationRepo inventory.ReservationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		recordRepo:      recordRepo,
		movementRepo:    movementRepo,
		reservationRepo: reservationRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Records returns the inventory record repository.
func (s *NoOpTransactionScope) Records() inventory.RecordRepository {
	return s.recordRepo
}

// Movements returns the movement ledger repository.
func (s *NoOpTransactionScope) Movements() inventory.MovementRepository {
	return s.movementRepo
}

// Reservations returns the reservation repository.
func (s *NoOpTransactionScope) Reservations() inventory.ReservationRepository {
	return s.reservationRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
