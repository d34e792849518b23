package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// LedgerStore implementation — transaction CRUD via PostgREST
// ============================================================

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID        string  `json:"id,omitempty"`
	OwnerID   string  `json:"owner_id,omitempty"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Date      string  `json:"date"`
	Source    string  `json:"source"`
	Timestamp int64   `json:"ts,omitempty"`
}

// wrapStoreErr classifies breaker and deadline failures before falling back
// to the generic external-service error.
func wrapStoreErr(service string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	d, err := domain.ParseDate(r.Date)
	if err != nil {
		// lenient: the column may carry a full timestamp
		if t, terr := time.Parse(time.RFC3339, r.Date); terr == nil {
			d = domain.NewDate(t.Year(), t.Month(), t.Day())
		} else {
			return domain.Transaction{}, err
		}
	}
	return domain.Transaction{
		ID:        r.ID,
		Type:      domain.TransactionType(r.Type),
		Amount:    r.Amount,
		Category:  r.Category,
		Date:      d,
		Source:    r.Source,
		Timestamp: r.Timestamp,
	}, nil
}

// ListTransactions fetches the owner's complete transaction set, newest
// first by creation instant.
func (c *Client) ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?owner_id=eq.%s&order=ts.desc", url.QueryEscape(ownerID))
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				transactions = []domain.Transaction{}
				return nil
			}

			var rows []transactionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode transactions: %w", err)
			}

			transactions = make([]domain.Transaction, 0, len(rows))
			for _, r := range rows {
				t, err := r.toDomain()
				if err != nil {
					c.logger.Warn("supabase: skipping malformed transaction row")
					continue
				}
				transactions = append(transactions, t)
			}
			return nil
		})
	})

	if err != nil {
		return nil, wrapStoreErr("supabase/transactions", err)
	}

	return transactions, nil
}

// CreateTransaction inserts a draft. The id is generated client-side and
// the POST asks PostgREST to ignore a duplicate of it, so a retry after a
// commit whose response was lost re-sends the same row instead of creating
// a second one.
func (c *Client) CreateTransaction(ctx context.Context, ownerID string, draft *domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	row := transactionRow{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Type:      string(draft.Type),
		Amount:    draft.Amount,
		Category:  draft.Category,
		Date:      draft.Date.String(),
		Source:    draft.Source,
		Timestamp: time.Now().UnixMilli(),
	}

	var created *domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, "transactions?on_conflict=id", row,
				"return=representation,resolution=ignore-duplicates")
			if err != nil {
				return err
			}

			var rows []transactionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode created transaction: %w", err)
			}
			if len(rows) == 0 {
				// the id already landed on an earlier attempt
				t, err := row.toDomain()
				if err != nil {
					return err
				}
				created = &t
				return nil
			}
			t, err := rows[0].toDomain()
			if err != nil {
				return err
			}
			created = &t
			return nil
		})
	})

	if err != nil {
		return nil, wrapStoreErr("supabase/transactions", err)
	}

	return created, nil
}

// UpdateTransaction applies a field-level merge. The ts column is never
// included, so creation order survives edits.
func (c *Client) UpdateTransaction(ctx context.Context, ownerID, id string, update *domain.TransactionUpdate) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("transaction.id", id),
	)

	patch := map[string]any{}
	if update.Type != nil {
		patch["type"] = string(*update.Type)
	}
	if update.Amount != nil {
		patch["amount"] = *update.Amount
	}
	if update.Category != nil {
		patch["category"] = *update.Category
	}
	if update.Date != nil {
		patch["date"] = update.Date.String()
	}
	if update.Source != nil {
		patch["source"] = *update.Source
	}

	var updated *domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?owner_id=eq.%s&id=eq.%s", url.QueryEscape(ownerID), url.QueryEscape(id))
			body, err := c.doPatch(ctx, path, patch)
			if err != nil {
				return err
			}

			var rows []transactionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode updated transaction: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "transaction", ID: id}
			}
			t, err := rows[0].toDomain()
			if err != nil {
				return err
			}
			updated = &t
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, wrapStoreErr("supabase/transactions", err)
	}

	return updated, nil
}

// DeleteTransaction removes one record. Deleting an already-absent id is
// not an error (PostgREST returns 2xx with no rows).
func (c *Client) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("transaction.id", id),
	)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?owner_id=eq.%s&id=eq.%s", url.QueryEscape(ownerID), url.QueryEscape(id))
			return c.doDelete(ctx, path)
		})
	})

	if err != nil {
		return wrapStoreErr("supabase/transactions", err)
	}
	return nil
}
