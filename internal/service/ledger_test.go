package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/infra/cache"
	"github.com/fintrack/fintrack-api-go/internal/infra/memstore"
	"github.com/fintrack/fintrack-api-go/internal/infra/observability"
	"github.com/fintrack/fintrack-api-go/internal/infra/resilience"
	"github.com/fintrack/fintrack-api-go/internal/service"

	"go.uber.org/zap"
)

func newLedgerService(store *memstore.Store) *service.LedgerService {
	return service.NewLedgerService(
		store,
		cache.New[[]domain.Transaction](5*time.Minute),
		resilience.NewBulkhead(4),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func seed(t *testing.T, svc *service.LedgerService, owner string, typ domain.TransactionType, amount float64, year int, month time.Month, category string) *domain.Transaction {
	t.Helper()
	txn, err := svc.CreateTransaction(context.Background(), owner, &domain.TransactionDraft{
		Type:     typ,
		Amount:   amount,
		Category: category,
		Date:     domain.NewDate(year, month, 15),
		Source:   "Checking",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return txn
}

func TestCreateTransaction_RejectsInvalidDraft(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())

	_, err := svc.CreateTransaction(context.Background(), "owner-1", &domain.TransactionDraft{
		Type:     "transfer",
		Amount:   10,
		Category: "Food",
		Date:     domain.NewDate(2024, time.March, 1),
		Source:   "Checking",
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if validation.Field != "type" {
		t.Errorf("expected field 'type', got %q", validation.Field)
	}
}

func TestCreateTransaction_RejectsNegativeAmount(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())

	_, err := svc.CreateTransaction(context.Background(), "owner-1", &domain.TransactionDraft{
		Type:     domain.TypeExpense,
		Amount:   -5,
		Category: "Food",
		Date:     domain.NewDate(2024, time.March, 1),
		Source:   "Checking",
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListTransactions_FiltersByPeriodAndType(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())

	seed(t, svc, "owner-1", domain.TypeIncome, 1000, 2024, time.February, "Salary")
	seed(t, svc, "owner-1", domain.TypeExpense, 200, 2024, time.February, "Food")
	seed(t, svc, "owner-1", domain.TypeExpense, 300, 2024, time.March, "Rent")

	feb := domain.PeriodFilter{Month: time.February, Year: 2024}
	txns, err := svc.ListTransactions(context.Background(), "owner-1", feb, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions in Feb, got %d", len(txns))
	}

	expenses, err := svc.ListTransactions(context.Background(), "owner-1", feb, domain.TypeExpense)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expenses) != 1 || expenses[0].Category != "Food" {
		t.Fatalf("expected the single Feb expense, got %+v", expenses)
	}
}

func TestUpdateTransaction_RejectsEmptyUpdate(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())
	txn := seed(t, svc, "owner-1", domain.TypeExpense, 50, 2024, time.March, "Food")

	_, err := svc.UpdateTransaction(context.Background(), "owner-1", txn.ID, &domain.TransactionUpdate{})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateTransaction_AppliesEdit(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())
	txn := seed(t, svc, "owner-1", domain.TypeExpense, 50, 2024, time.March, "Food")

	amount := 75.0
	updated, err := svc.UpdateTransaction(context.Background(), "owner-1", txn.ID, &domain.TransactionUpdate{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount != 75 {
		t.Errorf("expected amount 75, got %v", updated.Amount)
	}

	// The edit must be visible to the next summary.
	summary, err := svc.Summary(context.Background(), "owner-1", domain.PeriodFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Lifetime.Expense != 75 {
		t.Errorf("expected lifetime expense 75 after edit, got %v", summary.Lifetime.Expense)
	}
}

func TestSummary_SpecificPeriod(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())

	seed(t, svc, "owner-1", domain.TypeIncome, 1000, 2024, time.January, "Salary")
	seed(t, svc, "owner-1", domain.TypeExpense, 300, 2024, time.January, "Rent")
	seed(t, svc, "owner-1", domain.TypeExpense, 200, 2024, time.February, "Food")

	summary, err := svc.Summary(context.Background(), "owner-1", domain.PeriodFilter{Month: time.February, Year: 2024})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Period.PriorBalance != 700 {
		t.Errorf("expected prior balance 700, got %v", summary.Period.PriorBalance)
	}
	if summary.Period.EndBalance != 500 {
		t.Errorf("expected end balance 500, got %v", summary.Period.EndBalance)
	}
	if summary.Lifetime.Balance != 500 {
		t.Errorf("expected lifetime balance 500, got %v", summary.Lifetime.Balance)
	}
}

func TestSummary_CacheInvalidatedByMutation(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())
	seed(t, svc, "owner-1", domain.TypeIncome, 100, 2024, time.March, "Salary")

	first, err := svc.Summary(context.Background(), "owner-1", domain.PeriodFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if first.Lifetime.Balance != 100 {
		t.Fatalf("expected balance 100, got %v", first.Lifetime.Balance)
	}

	seed(t, svc, "owner-1", domain.TypeExpense, 40, 2024, time.March, "Food")

	second, err := svc.Summary(context.Background(), "owner-1", domain.PeriodFilter{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if second.Lifetime.Balance != 60 {
		t.Errorf("expected balance 60 after mutation, got %v", second.Lifetime.Balance)
	}
}

func TestDeleteTransaction_RemovesRecord(t *testing.T) {
	svc := newLedgerService(memstore.NewStore())
	txn := seed(t, svc, "owner-1", domain.TypeExpense, 10, 2024, time.March, "Food")

	if err := svc.DeleteTransaction(context.Background(), "owner-1", txn.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	txns, err := svc.ListTransactions(context.Background(), "owner-1", domain.PeriodFilter{}, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected empty ledger, got %d records", len(txns))
	}
}
