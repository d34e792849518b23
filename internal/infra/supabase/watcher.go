package supabase

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/port"

	"go.uber.org/zap"
)

// subscription polls the owner's transaction set and emits a full-snapshot
// replace whenever the set's fingerprint changes. Snapshots are complete
// replacements, never deltas, so subscribers recompute from scratch and no
// merge logic exists on the client side.
type subscription struct {
	snapshots chan []domain.Transaction
	errs      chan error
	cancel    context.CancelFunc
}

func (s *subscription) Snapshots() <-chan []domain.Transaction { return s.snapshots }
func (s *subscription) Errs() <-chan error                     { return s.errs }

// Close releases the watcher goroutine. Must be called when the owning
// session ends so a stale feed can never deliver into a new session.
func (s *subscription) Close() { s.cancel() }

// Subscribe opens a realtime feed for one owner. The first snapshot is
// delivered immediately; afterwards the watcher re-reads the set every
// pollInterval and emits only on change.
func (c *Client) Subscribe(ctx context.Context, ownerID string) (port.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	sub := &subscription{
		snapshots: make(chan []domain.Transaction, 1),
		errs:      make(chan error, 1),
		cancel:    cancel,
	}

	go c.watch(ctx, ownerID, sub)

	return sub, nil
}

func (c *Client) watch(ctx context.Context, ownerID string, sub *subscription) {
	defer close(sub.snapshots)
	defer close(sub.errs)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastFingerprint [sha256.Size]byte
	first := true

	deliver := func() {
		txns, err := c.ListTransactions(ctx, ownerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("supabase: snapshot poll failed",
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
			select {
			case sub.errs <- err:
			default: // subscriber not draining errors; drop
			}
			return
		}

		fp := fingerprint(txns)
		if !first && fp == lastFingerprint {
			return
		}
		lastFingerprint = fp
		first = false

		// At most one in-flight snapshot: replace a stale undelivered one.
		select {
		case sub.snapshots <- txns:
		default:
			select {
			case <-sub.snapshots:
			default:
			}
			sub.snapshots <- txns
		}
	}

	deliver()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deliver()
		}
	}
}

// fingerprint hashes the serialized set so the watcher can cheaply detect
// any change, including edits that keep the count stable.
func fingerprint(txns []domain.Transaction) [sha256.Size]byte {
	b, err := json.Marshal(txns)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(b)
}
