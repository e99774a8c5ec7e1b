package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/inventory/internal/domain/inventory"
)

// DefaultSweepBatchSize bounds how many expired holds one pass touches
const DefaultSweepBatchSize = 500

// ReservationSweeper periodically reclaims abandoned holds. Expiry is
// sweep-based rather than timer-per-reservation, so it survives process
// restarts and scales independently of the number of open holds.
type ReservationSweeper struct {
	reservationService *ReservationService
	reservationRepo    inventory.ReservationRepository
	logger             *zap.Logger
	batchSize          int
}

// NewReservationSweeper creates a new ReservationSweeper
func NewReservationSweeper(
	reservationService *ReservationService,
	reservationRepo inventory.ReservationRepository,
	logger *zap.Logger,
) *ReservationSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationSweeper{
		reservationService: reservationService,
		reservationRepo:    reservationRepo,
		logger:             logger,
		batchSize:          DefaultSweepBatchSize,
	}
}

// SetBatchSize overrides how many expired holds one pass processes
func (s *ReservationSweeper) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// SweepExpired finds active reservations past their expiry and expires
// them one by one. A failure on one hold is logged and skipped; the
// rest of the batch still runs. The whole batch is evaluated against a
// single reference time.
func (s *ReservationSweeper) SweepExpired(ctx context.Context) (SweepStats, error) {
	stats := SweepStats{ProcessedAt: time.Now()}

	expired, err := s.reservationRepo.FindExpired(ctx, stats.ProcessedAt, s.batchSize)
	if err != nil {
		s.logger.Error("failed to query expired reservations", zap.Error(err))
		return stats, err
	}
	stats.Scanned = len(expired)
	if len(expired) == 0 {
		return stats, nil
	}

	s.logger.Info("expiry sweep started",
		zap.Int("candidates", len(expired)),
		zap.Time("reference_time", stats.ProcessedAt),
	)

	for i := range expired {
		reservation := &expired[i]
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		result, err := s.reservationService.expire(ctx, reservation.ID)
		if err != nil {
			stats.Failed++
			s.logger.Error("failed to expire reservation",
				zap.String("reservation_id", reservation.ID.String()),
				zap.String("product_id", reservation.ProductID.String()),
				zap.Int("quantity", reservation.Quantity),
				zap.Error(err),
			)
			continue
		}

		// A hold resolved between the query and here counts as scanned
		// but not expired; the earlier transition already won.
		if result.Status == string(inventory.ReservationExpired) {
			stats.Expired++
			stats.Released += reservation.Quantity
			s.logger.Info("reservation expired",
				zap.String("reservation_id", reservation.ID.String()),
				zap.String("product_id", reservation.ProductID.String()),
				zap.Int("quantity", reservation.Quantity),
				zap.String("holder_ref", reservation.HolderRef),
				zap.Time("expired_at", reservation.ExpiresAt),
			)
		}
	}

	s.logger.Info("expiry sweep finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("expired", stats.Expired),
		zap.Int("released", stats.Released),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
