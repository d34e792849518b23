package service

import (
	"context"
	"sync"

	"github.com/fintrack/fintrack-api-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Reset — POST /v1/ledger/reset
// ============================================================

// Reset deletes every transaction the owner has. Deletes are issued
// concurrently and awaited together; the operation is not atomic, so a
// partial failure leaves the surviving records in place and is reported
// as *domain.ErrPartialReset alongside the counts. An empty ledger
// resets successfully with zero deletes.
func (s *LedgerService) Reset(ctx context.Context, ownerID string) (*domain.ResetResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Reset")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	// Read through the store, not the cache: the fan-out must target
	// exactly what is persisted right now.
	txns, err := s.store.ListTransactions(ctx, ownerID)
	if err != nil {
		s.metrics.IncrStoreError("list")
		return nil, err
	}

	result := &domain.ResetResult{Requested: len(txns)}
	if len(txns) == 0 {
		s.cache.Delete(ownerID)
		return result, nil
	}

	var mu sync.Mutex
	var failures []error

	// Fire all deletes, await all. The group carries no shared error:
	// one failed delete must not cancel its siblings.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, txn := range txns {
		txn := txn
		g.Go(func() error {
			if err := s.bulkhead.Acquire(gctx); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				s.metrics.IncrResetDelete("failed")
				return nil
			}
			defer s.bulkhead.Release()

			if err := s.store.DeleteTransaction(gctx, ownerID, txn.ID); err != nil {
				s.logger.Warn("reset: delete failed",
					zap.String("owner_id", ownerID),
					zap.String("transaction_id", txn.ID),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				s.metrics.IncrResetDelete("failed")
				return nil
			}
			s.metrics.IncrResetDelete("ok")
			return nil
		})
	}
	_ = g.Wait()

	s.cache.Delete(ownerID)

	result.Failed = len(failures)
	result.Deleted = result.Requested - result.Failed

	if result.Failed > 0 {
		s.logger.Error("reset: incomplete",
			zap.String("owner_id", ownerID),
			zap.Int("requested", result.Requested),
			zap.Int("deleted", result.Deleted),
		)
		return result, &domain.ErrPartialReset{
			Requested: result.Requested,
			Deleted:   result.Deleted,
			Errs:      failures,
		}
	}

	s.logger.Info("reset: ledger cleared",
		zap.String("owner_id", ownerID),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}
