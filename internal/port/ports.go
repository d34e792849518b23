// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/fintrack/fintrack-api-go/internal/domain"
)

// LedgerStore is the consumed persistence capability: a remote document
// store holding one transaction collection per owner. Implementations
// assign ids and creation timestamps; callers never supply either.
type LedgerStore interface {
	ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, ownerID string, draft *domain.TransactionDraft) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, ownerID, id string, update *domain.TransactionUpdate) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, id string) error

	// Subscribe opens a realtime feed of full-snapshot replaces for the
	// owner's transaction set. The feed stays open until Close is called
	// or ctx is cancelled.
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)
}

// Subscription is a live feed of transaction-set snapshots. Every element
// on Snapshots is the complete current set, never a delta. Implementations
// deliver at most one in-flight snapshot at a time and close both channels
// after Close.
type Subscription interface {
	Snapshots() <-chan []domain.Transaction
	Errs() <-chan error
	Close()
}

// SessionProvider is the consumed hosted-authentication capability.
// Failures carry human-readable messages with any provider prefix already
// stripped.
type SessionProvider interface {
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignInAnonymously(ctx context.Context) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
