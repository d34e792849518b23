package service

import (
	"context"
	"math"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/ledger"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Balance tally — POST /v1/ledger/tally
// ============================================================

// Tally reconciles the ledger against a balance the user asserts to be
// true. When the asserted balance differs from the lifetime ledger
// balance, one synthetic adjustment transaction is created to close the
// gap: income when the ledger is under, expense when it is over. A zero
// diff creates nothing.
func (s *LedgerService) Tally(ctx context.Context, ownerID string, assertedBalance float64) (*domain.TallyResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Tally")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.Float64("asserted_balance", assertedBalance),
	)

	txns, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	stats := ledger.Lifetime(txns)
	diff := assertedBalance - stats.Balance

	result := &domain.TallyResult{
		AssertedBalance: assertedBalance,
		LedgerBalance:   stats.Balance,
		Diff:            diff,
	}
	if diff == 0 {
		s.logger.Info("tally: ledger already balanced",
			zap.String("owner_id", ownerID),
			zap.Float64("balance", stats.Balance),
		)
		return result, nil
	}

	direction := domain.TypeIncome
	if diff < 0 {
		direction = domain.TypeExpense
	}
	draft := &domain.TransactionDraft{
		Type:     direction,
		Amount:   math.Abs(diff),
		Category: domain.AdjustmentCategory,
		Date:     domain.Today(),
		Source:   domain.AdjustmentSource,
	}

	adjustment, err := s.store.CreateTransaction(ctx, ownerID, draft)
	if err != nil {
		s.metrics.IncrStoreError("tally")
		return nil, err
	}
	s.cache.Delete(ownerID)
	s.metrics.IncrAdjustment(string(direction))

	s.logger.Info("tally: adjustment created",
		zap.String("owner_id", ownerID),
		zap.String("transaction_id", adjustment.ID),
		zap.String("direction", string(direction)),
		zap.Float64("amount", draft.Amount),
	)

	result.Adjustment = adjustment
	return result, nil
}
