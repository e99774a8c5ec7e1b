package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
)

// auditPageSize bounds how many records one ledger audit page loads
const auditPageSize = 200

// SweepExecutor executes inventory background jobs
type SweepExecutor struct {
	sweeper          *appinv.ReservationSweeper
	inventoryService *appinv.InventoryService
	recordRepo       inventory.RecordRepository
	logger           *zap.Logger
}

// NewSweepExecutor creates a new sweep executor
func NewSweepExecutor(
	sweeper *appinv.ReservationSweeper,
	inventoryService *appinv.InventoryService,
	recordRepo inventory.RecordRepository,
	logger *zap.Logger,
) *SweepExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepExecutor{
		sweeper:          sweeper,
		inventoryService: inventoryService,
		recordRepo:       recordRepo,
		logger:           logger,
	}
}

// Execute runs the job based on its type
func (e *SweepExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeReservationSweep:
		return e.executeReservationSweep(ctx, job)
	case JobTypeLedgerAudit:
		return e.executeLedgerAudit(ctx, job)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidJobType, job.Type)
	}
}

// executeReservationSweep reclaims stock held by overdue reservations
func (e *SweepExecutor) executeReservationSweep(ctx context.Context, job *Job) error {
	stats, err := e.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("reservation sweep failed: %w", err)
	}

	if stats.Scanned > 0 {
		e.logger.Info("reservation sweep finished",
			zap.String("job_id", job.ID.String()),
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int("released", stats.Released),
			zap.Int("failed", stats.Failed),
		)
	}

	if stats.Failed > 0 {
		return fmt.Errorf("reservation sweep: %d of %d holds failed to expire", stats.Failed, stats.Scanned)
	}
	return nil
}

// executeLedgerAudit replays every tracked product's movement ledger
// and reports counters that drifted from their movement history.
func (e *SweepExecutor) executeLedgerAudit(ctx context.Context, job *Job) error {
	var (
		audited    int
		mismatched int
	)

	filter := shared.DefaultFilter()
	filter.PageSize = auditPageSize
	filter.Filters["tracked"] = true
	filter.OrderBy = "created_at"
	filter.OrderDir = "asc"

	for page := 1; ; page++ {
		filter.Page = page
		records, err := e.recordRepo.FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("ledger audit: list records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		for i := range records {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			record := &records[i]
			ok, err := e.inventoryService.VerifyLedger(ctx, record.ProductID)
			if err != nil {
				e.logger.Error("ledger audit: verification failed",
					zap.String("product_id", record.ProductID.String()),
					zap.Error(err),
				)
				continue
			}
			audited++
			if !ok {
				mismatched++
				e.logger.Warn("ledger audit: counter drift detected",
					zap.String("product_id", record.ProductID.String()),
					zap.Int("stored_quantity", record.Quantity),
				)
			}
		}

		if len(records) < auditPageSize {
			break
		}
	}

	e.logger.Info("ledger audit finished",
		zap.String("job_id", job.ID.String()),
		zap.Int("audited", audited),
		zap.Int("mismatched", mismatched),
	)

	if mismatched > 0 {
		return fmt.Errorf("ledger audit: %d of %d products drifted from their ledgers", mismatched, audited)
	}
	return nil
}
