// Package memstore provides in-memory implementations of the ledger store
// and session provider. It backs local development and tests, so no
// Supabase project is needed to run the service.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/port"

	"github.com/google/uuid"
)

// Store is an in-memory LedgerStore. All state lives in maps keyed by
// owner id; mutations notify live subscriptions with a full snapshot.
type Store struct {
	mu          sync.RWMutex
	records     map[string]map[string]domain.Transaction // ownerID -> id -> txn
	subscribers map[string][]*subscription               // ownerID -> open feeds

	// DeleteHook, when set, runs before each delete and can veto it by
	// returning an error. Used to exercise partial-failure paths.
	DeleteHook func(ownerID, id string) error
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		records:     make(map[string]map[string]domain.Transaction),
		subscribers: make(map[string][]*subscription),
	}
}

// ListTransactions returns the owner's full set, newest first.
func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(ownerID), nil
}

// CreateTransaction assigns id and timestamp and stores the record.
func (s *Store) CreateTransaction(ctx context.Context, ownerID string, draft *domain.TransactionDraft) (*domain.Transaction, error) {
	txn := domain.Transaction{
		ID:        uuid.New().String(),
		Type:      draft.Type,
		Amount:    draft.Amount,
		Category:  draft.Category,
		Date:      draft.Date,
		Source:    draft.Source,
		Timestamp: time.Now().UnixMilli(),
	}

	s.mu.Lock()
	if s.records[ownerID] == nil {
		s.records[ownerID] = make(map[string]domain.Transaction)
	}
	s.records[ownerID][txn.ID] = txn
	s.notifyLocked(ownerID)
	s.mu.Unlock()

	return &txn, nil
}

// UpdateTransaction merges the populated fields into an existing record.
func (s *Store) UpdateTransaction(ctx context.Context, ownerID, id string, update *domain.TransactionUpdate) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.records[ownerID][id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if update.Type != nil {
		txn.Type = *update.Type
	}
	if update.Amount != nil {
		txn.Amount = *update.Amount
	}
	if update.Category != nil {
		txn.Category = *update.Category
	}
	if update.Date != nil {
		txn.Date = *update.Date
	}
	if update.Source != nil {
		txn.Source = *update.Source
	}
	s.records[ownerID][id] = txn
	s.notifyLocked(ownerID)
	return &txn, nil
}

// DeleteTransaction removes a record. Deleting an absent id is a no-op,
// matching the remote store's semantics.
func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	if s.DeleteHook != nil {
		if err := s.DeleteHook(ownerID, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if _, ok := s.records[ownerID][id]; ok {
		delete(s.records[ownerID], id)
		s.notifyLocked(ownerID)
	}
	s.mu.Unlock()
	return nil
}

// Subscribe opens a snapshot feed for the owner. The current set is
// delivered immediately; every later mutation delivers a fresh snapshot,
// with an undelivered stale one replaced rather than queued.
func (s *Store) Subscribe(ctx context.Context, ownerID string) (port.Subscription, error) {
	sub := &subscription{
		store:     s,
		ownerID:   ownerID,
		snapshots: make(chan []domain.Transaction, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.subscribers[ownerID] = append(s.subscribers[ownerID], sub)
	sub.push(s.snapshotLocked(ownerID))
	s.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// snapshotLocked copies the owner's set sorted by timestamp desc.
// Callers must hold at least the read lock.
func (s *Store) snapshotLocked(ownerID string) []domain.Transaction {
	txns := make([]domain.Transaction, 0, len(s.records[ownerID]))
	for _, txn := range s.records[ownerID] {
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].Timestamp != txns[j].Timestamp {
			return txns[i].Timestamp > txns[j].Timestamp
		}
		return txns[i].ID < txns[j].ID
	})
	return txns
}

func (s *Store) notifyLocked(ownerID string) {
	snap := s.snapshotLocked(ownerID)
	for _, sub := range s.subscribers[ownerID] {
		sub.push(snap)
	}
}

func (s *Store) unsubscribe(ownerID string, target *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscribers[ownerID]
	for i, sub := range subs {
		if sub == target {
			s.subscribers[ownerID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type subscription struct {
	store     *Store
	ownerID   string
	snapshots chan []domain.Transaction
	errs      chan error
	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscription) Snapshots() <-chan []domain.Transaction { return s.snapshots }
func (s *subscription) Errs() <-chan error                     { return s.errs }

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		s.store.unsubscribe(s.ownerID, s)
		close(s.done)
		close(s.snapshots)
		close(s.errs)
	})
}

// push delivers a snapshot, replacing a stale undelivered one so a slow
// consumer always sees the latest set instead of a backlog.
func (s *subscription) push(snap []domain.Transaction) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.snapshots <- snap:
	default:
		select {
		case <-s.snapshots:
		default:
		}
		select {
		case s.snapshots <- snap:
		case <-s.done:
		}
	}
}
