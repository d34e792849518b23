package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// resetConfirmation is the phrase a client must echo to run a bulk
// delete. It gates accidental resets; real confirmation UX lives in the
// frontend.
const resetConfirmation = "delete all transactions"

// ============================================================
// Transactions — /v1/ledger/transactions
// ============================================================

func listTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledger/transactions")
		defer span.End()

		ownerID := OwnerIDFromContext(ctx)
		filter, err := parsePeriodFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		typ := domain.TransactionType(r.URL.Query().Get("type"))
		if typ != "" && !typ.Valid() {
			writeError(w, http.StatusBadRequest, "type must be income, expense or investment")
			return
		}

		txns, err := svc.ListTransactions(ctx, ownerID, filter, typ)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func createTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/transactions")
		defer span.End()

		var draft domain.TransactionDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		txn, err := svc.CreateTransaction(ctx, OwnerIDFromContext(ctx), &draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	}
}

func updateTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/ledger/transactions/{transactionId}")
		defer span.End()

		id := chi.URLParam(r, "transactionId")
		span.SetAttributes(attribute.String("transaction.id", id))

		var update domain.TransactionUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		txn, err := svc.UpdateTransaction(ctx, OwnerIDFromContext(ctx), id, &update)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func deleteTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/ledger/transactions/{transactionId}")
		defer span.End()

		id := chi.URLParam(r, "transactionId")
		if err := svc.DeleteTransaction(ctx, OwnerIDFromContext(ctx), id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "transaction deleted"})
	}
}

// ============================================================
// Summary — GET /v1/ledger/summary?month=&year=
// ============================================================

func summaryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledger/summary")
		defer span.End()

		filter, err := parsePeriodFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		summary, err := svc.Summary(ctx, OwnerIDFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// ============================================================
// Balance tally — POST /v1/ledger/tally
// ============================================================

type tallyRequest struct {
	Balance *float64 `json:"balance"`
}

func tallyHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/tally")
		defer span.End()

		var req tallyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Balance == nil {
			writeError(w, http.StatusBadRequest, "balance is required")
			return
		}

		result, err := svc.Tally(ctx, OwnerIDFromContext(ctx), *req.Balance)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status := http.StatusOK
		if result.Adjustment != nil {
			status = http.StatusCreated
		}
		writeJSON(w, status, result)
	}
}

// ============================================================
// Reset — POST /v1/ledger/reset
// ============================================================

type resetRequest struct {
	Confirm string `json:"confirm"`
}

func resetHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/reset")
		defer span.End()

		var req resetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Confirm != resetConfirmation {
			writeError(w, http.StatusBadRequest, `confirm must be "`+resetConfirmation+`"`)
			return
		}

		result, err := svc.Reset(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
