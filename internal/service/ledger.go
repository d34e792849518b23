// Package service provides the business logic layer (use cases).
// LedgerService orchestrates transaction CRUD, summaries, the balance
// tally and bulk reset; SessionService fronts the hosted auth provider.
package service

import (
	"context"
	"fmt"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/infra/observability"
	"github.com/fintrack/fintrack-api-go/internal/infra/resilience"
	"github.com/fintrack/fintrack-api-go/internal/ledger"
	"github.com/fintrack/fintrack-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService orchestrates all ledger operations via the store.
type LedgerService struct {
	store    port.LedgerStore
	cache    port.Cache[[]domain.Transaction]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLedgerService creates a new ledger service. bulkhead caps the
// concurrency of reset's delete fan-out.
func NewLedgerService(
	store port.LedgerStore,
	cache port.Cache[[]domain.Transaction],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		store:    store,
		cache:    cache,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
	}
}

// ============================================================
// Transactions
// ============================================================

// ListTransactions returns the owner's transactions, optionally narrowed
// to a period and a type. The store returns them newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, ownerID string, f domain.PeriodFilter, typ domain.TransactionType) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	txns, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	txns = ledger.Filter(txns, f)
	if typ == "" {
		return txns, nil
	}
	filtered := make([]domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.Type == typ {
			filtered = append(filtered, txn)
		}
	}
	return filtered, nil
}

// CreateTransaction validates the draft and persists it.
func (s *LedgerService) CreateTransaction(ctx context.Context, ownerID string, draft *domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	if err := draft.Validate(); err != nil {
		return nil, err
	}

	txn, err := s.store.CreateTransaction(ctx, ownerID, draft)
	if err != nil {
		s.metrics.IncrStoreError("create")
		return nil, err
	}

	s.cache.Delete(ownerID)
	s.logger.Info("transaction created",
		zap.String("owner_id", ownerID),
		zap.String("transaction_id", txn.ID),
		zap.String("type", string(txn.Type)),
	)
	return txn, nil
}

// UpdateTransaction validates and applies a field-level edit.
func (s *LedgerService) UpdateTransaction(ctx context.Context, ownerID, id string, update *domain.TransactionUpdate) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateTransaction")
	defer span.End()

	if err := update.Validate(); err != nil {
		return nil, err
	}

	txn, err := s.store.UpdateTransaction(ctx, ownerID, id, update)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ownerID)
	return txn, nil
}

// DeleteTransaction removes a single transaction.
func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteTransaction")
	defer span.End()

	if err := s.store.DeleteTransaction(ctx, ownerID, id); err != nil {
		s.metrics.IncrStoreError("delete")
		return err
	}
	s.cache.Delete(ownerID)
	return nil
}

// ============================================================
// Summary
// ============================================================

// Summary computes the full dashboard payload for a period filter.
func (s *LedgerService) Summary(ctx context.Context, ownerID string, f domain.PeriodFilter) (*domain.LedgerSummary, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Summary")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.Int("filter.month", int(f.Month)),
		attribute.Int("filter.year", f.Year),
	)

	txns, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := ledger.Summarize(txns, f)
	return &summary, nil
}

// Subscribe opens a realtime snapshot feed for the owner.
func (s *LedgerService) Subscribe(ctx context.Context, ownerID string) (port.Subscription, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Subscribe")
	defer span.End()

	sub, err := s.store.Subscribe(ctx, ownerID)
	if err != nil {
		s.metrics.IncrStoreError("subscribe")
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sub, nil
}

// load fetches the owner's full set, going through the snapshot cache.
// Cached sets are invalidated on every mutation, so a hit is always
// consistent with this instance's own writes.
func (s *LedgerService) load(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	if cached, ok := s.cache.Get(ownerID); ok {
		s.metrics.IncrCacheHit("snapshot")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("snapshot")

	txns, err := s.store.ListTransactions(ctx, ownerID)
	if err != nil {
		s.metrics.IncrStoreError("list")
		return nil, err
	}
	s.cache.Set(ownerID, txns)
	return txns, nil
}
