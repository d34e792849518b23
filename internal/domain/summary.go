package domain

// CategoryAmount is one slice of the expense category breakdown.
// Color is a display hint assigned deterministically from the sorted
// position (palette index = position mod palette length). Ratio is the
// slice's amount relative to the largest category, 0..1, so the breakdown
// renders as proportional bars without client-side division.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Ratio    float64 `json:"ratio"`
	Color    string  `json:"color"`
}

// PeriodSummary holds every dashboard figure derived for one period filter.
//
// The algebra, for filters with a specific month and year:
//
//	PriorBalance + Income - Expense == EndBalance
//
// Investment totals are tracked separately and never feed the balance
// figures; investments are transfers into the portfolio, not spending.
type PeriodSummary struct {
	PriorBalance   float64          `json:"prior_balance"`
	Income         float64          `json:"income"`
	Expense        float64          `json:"expense"`
	Investment     float64          `json:"investment"`
	TotalAvailable float64          `json:"total_available"` // prior balance + period income
	EndBalance     float64          `json:"end_balance"`     // total available - period expense
	Categories     []CategoryAmount `json:"categories"`
}

// LifetimeStats is computed over the entire unfiltered transaction set,
// independent of any period filter. Balance excludes investments:
// Investment is the portfolio total, not an outflow from the
// income/expense balance.
type LifetimeStats struct {
	Income     float64 `json:"income"`
	Expense    float64 `json:"expense"`
	Investment float64 `json:"investment"`
	Balance    float64 `json:"balance"` // income - expense
	Count      int     `json:"count"`
}

// LedgerSummary is the full dashboard payload: the filtered period view
// plus the always-visible lifetime figures.
type LedgerSummary struct {
	Period   PeriodSummary `json:"period"`
	Lifetime LifetimeStats `json:"lifetime"`
}

// TallyResult reports the outcome of a balance reconciliation.
type TallyResult struct {
	AssertedBalance float64      `json:"asserted_balance"`
	LedgerBalance   float64      `json:"ledger_balance"`
	Diff            float64      `json:"diff"`
	Adjustment      *Transaction `json:"adjustment,omitempty"` // nil when diff was zero
}

// ResetResult reports a bulk delete. Deletes are issued concurrently and
// are not atomic: a partial failure leaves Failed records in place.
type ResetResult struct {
	Requested int `json:"requested"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
}
