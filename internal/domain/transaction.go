// Package domain defines the core types of the FinTrack ledger:
// transactions, period filters, derived summaries and the error taxonomy.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TransactionType classifies the direction of a ledger entry.
// Amounts are always non-negative; direction is implied by the type.
type TransactionType string

const (
	TypeIncome     TransactionType = "income"
	TypeExpense    TransactionType = "expense"
	TypeInvestment TransactionType = "investment"
)

// Valid reports whether t is one of the three known types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeInvestment:
		return true
	}
	return false
}

// Constants used by the balance tally flow. The tally is the only place
// the system manufactures a transaction on the user's behalf.
const (
	AdjustmentCategory = "Adjustment"
	AdjustmentSource   = "Manual Balance Tally"
)

// Date is a civil calendar date (no time-of-day, no zone).
// It marshals as "2006-01-02" to match the store's date column.
type Date struct {
	time.Time
}

// NewDate builds a civil date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current civil date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON encodes the date as a plain "2006-01-02" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "2006-01-02" and, leniently, RFC3339 timestamps
// (some store snapshots carry full timestamps in the date column).
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	*d = NewDate(t.Year(), t.Month(), t.Day())
	return nil
}

// Transaction is the only persisted domain entity. Every transaction
// belongs to exactly one owner; the store assigns ID and Timestamp on
// creation and neither is ever mutated afterwards.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Amount    float64         `json:"amount"`
	Category  string          `json:"category"`
	Date      Date            `json:"date"`
	Source    string          `json:"source"`
	Timestamp int64           `json:"timestamp"` // creation instant, unix ms; display order desc
}

// TransactionDraft is a transaction before the store assigned identity.
type TransactionDraft struct {
	Type     TransactionType `json:"type"`
	Amount   float64         `json:"amount"`
	Category string          `json:"category"`
	Date     Date            `json:"date"`
	Source   string          `json:"source"`
}

// Validate rejects drafts before any store call is made.
func (d *TransactionDraft) Validate() error {
	if !d.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be income, expense or investment"}
	}
	if d.Amount < 0 {
		return &ErrValidation{Field: "amount", Message: "must be non-negative"}
	}
	if strings.TrimSpace(d.Category) == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	if d.Date.IsZero() {
		return &ErrValidation{Field: "date", Message: "required"}
	}
	if strings.TrimSpace(d.Source) == "" {
		return &ErrValidation{Field: "source", Message: "required"}
	}
	return nil
}

// TransactionUpdate carries the mutable fields of an edit. Nil pointers
// mean "leave unchanged"; id and timestamp are not editable.
type TransactionUpdate struct {
	Type     *TransactionType `json:"type,omitempty"`
	Amount   *float64         `json:"amount,omitempty"`
	Category *string          `json:"category,omitempty"`
	Date     *Date            `json:"date,omitempty"`
	Source   *string          `json:"source,omitempty"`
}

// Validate checks the populated fields and reports whether anything is set.
func (u *TransactionUpdate) Validate() error {
	if u.Type == nil && u.Amount == nil && u.Category == nil && u.Date == nil && u.Source == nil {
		return &ErrValidation{Field: "body", Message: "no fields to update"}
	}
	if u.Type != nil && !u.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be income, expense or investment"}
	}
	if u.Amount != nil && *u.Amount < 0 {
		return &ErrValidation{Field: "amount", Message: "must be non-negative"}
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return &ErrValidation{Field: "category", Message: "must not be empty"}
	}
	if u.Source != nil && strings.TrimSpace(*u.Source) == "" {
		return &ErrValidation{Field: "source", Message: "must not be empty"}
	}
	return nil
}

// SuccessResponse is a generic message payload for mutating endpoints.
type SuccessResponse struct {
	Message string `json:"message"`
}
