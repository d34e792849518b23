// Package ledger derives dashboard figures from a flat transaction log.
//
// Everything here is a pure function of (transactions, filter): no retained
// state, safe to call from any goroutine, and deterministic for a fixed
// input. The view layer re-renders from these results on every snapshot.
package ledger

import (
	"sort"

	"github.com/fintrack/fintrack-api-go/internal/domain"
)

// chartPalette is the fixed ordered display palette. Category colors cycle
// through it indexed by the category's position in the sorted breakdown.
var chartPalette = []string{"#D62828", "#F77F00", "#FCBF49", "#457B9D", "#8E9A9B"}

// Aggregate computes the full period view for one filter: prior balance,
// period income/expense/investment totals, the expense category breakdown
// (amount descending, stable tie-break by first encounter), total available
// and end-of-period balance.
func Aggregate(txns []domain.Transaction, f domain.PeriodFilter) domain.PeriodSummary {
	var s domain.PeriodSummary

	type catEntry struct {
		amount float64
		order  int
	}
	cats := make(map[string]*catEntry)
	catOrder := 0

	for _, t := range txns {
		if f.Before(t.Date) {
			switch t.Type {
			case domain.TypeIncome:
				s.PriorBalance += t.Amount
			case domain.TypeExpense:
				s.PriorBalance -= t.Amount
			}
			// investments never affect balance
		}

		if !f.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case domain.TypeIncome:
			s.Income += t.Amount
		case domain.TypeExpense:
			s.Expense += t.Amount
			e, ok := cats[t.Category]
			if !ok {
				e = &catEntry{order: catOrder}
				catOrder++
				cats[t.Category] = e
			}
			e.amount += t.Amount
		case domain.TypeInvestment:
			s.Investment += t.Amount
		}
	}

	s.Categories = make([]domain.CategoryAmount, 0, len(cats))
	for name, e := range cats {
		s.Categories = append(s.Categories, domain.CategoryAmount{Category: name, Amount: e.amount})
	}
	// Stable over first-encounter order so equal amounts tie-break
	// deterministically.
	sort.SliceStable(s.Categories, func(i, j int) bool {
		return cats[s.Categories[i].Category].order < cats[s.Categories[j].Category].order
	})
	sort.SliceStable(s.Categories, func(i, j int) bool {
		return s.Categories[i].Amount > s.Categories[j].Amount
	})
	var maxAmount float64
	if len(s.Categories) > 0 {
		maxAmount = s.Categories[0].Amount
	}
	for i := range s.Categories {
		s.Categories[i].Ratio = Ratio(s.Categories[i].Amount, maxAmount)
		s.Categories[i].Color = chartPalette[i%len(chartPalette)]
	}

	s.TotalAvailable = s.PriorBalance + s.Income
	s.EndBalance = s.TotalAvailable - s.Expense
	return s
}

// Lifetime sums the entire unfiltered set. Balance is income minus expense;
// investments are tracked as a separate portfolio total and deliberately do
// not reduce the balance.
func Lifetime(txns []domain.Transaction) domain.LifetimeStats {
	var s domain.LifetimeStats
	for _, t := range txns {
		switch t.Type {
		case domain.TypeIncome:
			s.Income += t.Amount
		case domain.TypeExpense:
			s.Expense += t.Amount
		case domain.TypeInvestment:
			s.Investment += t.Amount
		}
	}
	s.Balance = s.Income - s.Expense
	s.Count = len(txns)
	return s
}

// Summarize combines the period view and the lifetime figures; the lifetime
// block is invariant under the filter.
func Summarize(txns []domain.Transaction, f domain.PeriodFilter) domain.LedgerSummary {
	return domain.LedgerSummary{
		Period:   Aggregate(txns, f),
		Lifetime: Lifetime(txns),
	}
}

// Ratio is the proportional-display helper: value/max, or 0 when max is
// not positive (a period with no activity must render empty bars, not NaN).
func Ratio(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return value / max
}

// Filter returns the transactions inside the period, preserving order.
func Filter(txns []domain.Transaction, f domain.PeriodFilter) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if f.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}
