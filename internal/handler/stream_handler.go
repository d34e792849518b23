package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fintrack/fintrack-api-go/internal/infra/observability"
	"github.com/fintrack/fintrack-api-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Realtime feed — GET /v1/ledger/stream (server-sent events)
// ============================================================

// streamHandler bridges the store's snapshot feed onto SSE. Every event
// carries the owner's complete transaction set; the client replaces its
// local copy wholesale. A failed subscribe degrades to a single empty
// snapshot instead of an error, so the dashboard still renders.
func streamHandler(svc *service.LedgerService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledger/stream")
		defer span.End()

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ownerID := OwnerIDFromContext(ctx)
		sub, err := svc.Subscribe(ctx, ownerID)
		if err != nil {
			logger.Warn("stream: subscribe failed, degrading to empty snapshot",
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "event: snapshot\ndata: []\n\n")
			flusher.Flush()
			return
		}
		defer sub.Close()

		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.Snapshots():
				if !ok {
					return
				}
				data, err := json.Marshal(snap)
				if err != nil {
					logger.Error("stream: marshal snapshot", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
				flusher.Flush()
				metrics.IncrSnapshot()
			case err, ok := <-sub.Errs():
				if !ok {
					return
				}
				// Watch errors are transient; tell the client and keep
				// the feed open with its last good snapshot.
				logger.Warn("stream: watch error", zap.String("owner_id", ownerID), zap.Error(err))
				fmt.Fprint(w, "event: degraded\ndata: {}\n\n")
				flusher.Flush()
			}
		}
	}
}
