package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/inventory/internal/domain/shared"
)

// ReservationStatus is the lifecycle state of a stock hold
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// IsTerminal reports whether the status is final
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationCommitted || s == ReservationReleased || s == ReservationExpired
}

// Reservation is a time-boxed hold of quantity against a cart or
// order. ACTIVE is the only non-terminal state; a reservation moves to
// COMMITTED, RELEASED or EXPIRED exactly once and is then retained for
// audit. Terminal reservations are never reactivated.
type Reservation struct {
	shared.BaseAggregateRoot
	ProductID  uuid.UUID
	Quantity   int
	HolderRef  string
	Status     ReservationStatus
	ExpiresAt  time.Time
	ResolvedAt *time.Time
}

// NewReservation creates an active hold expiring after ttl
func NewReservation(productID uuid.UUID, quantity int, holderRef string, ttl time.Duration) (*Reservation, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product ID is required", shared.ErrInvalidInput)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: reservation quantity must be positive", shared.ErrInvalidInput)
	}
	if holderRef == "" {
		return nil, fmt.Errorf("%w: holder reference is required", shared.ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: reservation TTL must be positive", shared.ErrInvalidInput)
	}

	r := &Reservation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		Quantity:          quantity,
		HolderRef:         holderRef,
		Status:            ReservationActive,
		ExpiresAt:         time.Now().Add(ttl),
	}
	r.AddDomainEvent(NewStockReservedEvent(r))
	return r, nil
}

// IsActive reports whether the reservation can still be resolved
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// IsExpiredAt checks expiry against an explicit reference time so the
// caller can evaluate the whole sweep batch against one timestamp.
func (r *Reservation) IsExpiredAt(reference time.Time) bool {
	return r.Status == ReservationActive && reference.After(r.ExpiresAt)
}

// TimeUntilExpiry returns the remaining lifetime, zero if already past
func (r *Reservation) TimeUntilExpiry() time.Duration {
	remaining := time.Until(r.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Commit finalizes the sale. Only an active reservation can commit;
// whichever terminal transition wins the race is final.
func (r *Reservation) Commit() error {
	return r.transition(ReservationCommitted, NewReservationCommittedEvent(r))
}

// Release returns the held quantity to the available pool
func (r *Reservation) Release() error {
	return r.transition(ReservationReleased, NewReservationReleasedEvent(r))
}

// Expire marks an abandoned hold; used by the expiry sweep
func (r *Reservation) Expire() error {
	return r.transition(ReservationExpired, NewReservationExpiredEvent(r))
}

func (r *Reservation) transition(target ReservationStatus, event shared.DomainEvent) error {
	if r.Status != ReservationActive {
		return fmt.Errorf("%w: reservation %s is already %s", shared.ErrInvalidState, r.ID, r.Status)
	}
	now := time.Now()
	r.Status = target
	r.ResolvedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(event)
	return nil
}
