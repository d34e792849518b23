package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/handler"
	"github.com/fintrack/fintrack-api-go/internal/infra/cache"
	"github.com/fintrack/fintrack-api-go/internal/infra/memstore"
	"github.com/fintrack/fintrack-api-go/internal/infra/observability"
	"github.com/fintrack/fintrack-api-go/internal/infra/resilience"
	"github.com/fintrack/fintrack-api-go/internal/service"

	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

type testEnv struct {
	router http.Handler
	store  *memstore.Store
}

func newTestEnv() *testEnv {
	store := memstore.NewStore()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	ledgerSvc := service.NewLedgerService(
		store,
		cache.New[[]domain.Transaction](5*time.Minute),
		resilience.NewBulkhead(4),
		metrics,
		logger,
	)
	sessionSvc := service.NewSessionService(
		memstore.NewSessions(testSecret, time.Hour),
		testSecret,
		logger,
	)

	return &testEnv{
		router: handler.NewRouter(ledgerSvc, sessionSvc, metrics, logger),
		store:  store,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) guestToken(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/guest", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body)
	}
	return v
}

// ============================================================
// Operational endpoints
// ============================================================

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/v1/categories", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	suggestions := decode[map[string][]string](t, rec)
	if len(suggestions["expense"]) == 0 {
		t.Error("expected expense category suggestions")
	}
}

func TestLedgerMetricsSnapshot(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/v1/metrics/ledger", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// ============================================================
// Auth
// ============================================================

func TestSignUpSignInFlow(t *testing.T) {
	env := newTestEnv()

	creds := domain.CredentialsRequest{Email: "user@example.com", Password: "hunter22"}
	rec := env.do(t, http.MethodPost, "/v1/auth/signup", "", creds)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/signup", "", creds)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup: expected 409, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/signin", "", creds)
	if rec.Code != http.StatusOK {
		t.Errorf("signin: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/signin", "", domain.CredentialsRequest{Email: creds.Email, Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", rec.Code)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/v1/auth/guest", "", nil)
	session := decode[domain.Session](t, rec)

	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", "", domain.RefreshRequest{RefreshToken: session.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	refreshed := decode[domain.Session](t, rec)
	if refreshed.Identity.ID != session.Identity.ID {
		t.Error("refresh must keep the identity")
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", "", domain.RefreshRequest{RefreshToken: session.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh token: expected 401, got %d", rec.Code)
	}
}

func TestSignOut(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/auth/signout", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("signout: expected 200, got %d", rec.Code)
	}
}

// ============================================================
// Ledger auth gating
// ============================================================

func TestLedgerRoutesRequireToken(t *testing.T) {
	env := newTestEnv()

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/ledger/transactions"},
		{http.MethodPost, "/v1/ledger/transactions"},
		{http.MethodGet, "/v1/ledger/summary"},
		{http.MethodPost, "/v1/ledger/tally"},
		{http.MethodPost, "/v1/ledger/reset"},
		{http.MethodGet, "/v1/ledger/stream"},
	}
	for _, p := range paths {
		rec := env.do(t, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestLedgerRejectsGarbageToken(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/v1/ledger/transactions", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// ============================================================
// Transactions
// ============================================================

func TestTransactionCRUD(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	draft := domain.TransactionDraft{
		Type:     domain.TypeExpense,
		Amount:   120,
		Category: "Food",
		Date:     domain.NewDate(2024, time.March, 5),
		Source:   "Checking",
	}
	rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", token, draft)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decode[domain.Transaction](t, rec)
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}

	rec = env.do(t, http.MethodPatch, "/v1/ledger/transactions/"+created.ID, token, map[string]any{"amount": 150})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	updated := decode[domain.Transaction](t, rec)
	if updated.Amount != 150 {
		t.Errorf("expected amount 150, got %v", updated.Amount)
	}

	rec = env.do(t, http.MethodGet, "/v1/ledger/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	txns := decode[[]domain.Transaction](t, rec)
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}

	rec = env.do(t, http.MethodDelete, "/v1/ledger/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/ledger/transactions", token, nil)
	if txns := decode[[]domain.Transaction](t, rec); len(txns) != 0 {
		t.Errorf("expected empty ledger, got %d", len(txns))
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", token, map[string]any{
		"type": "transfer", "amount": 10, "category": "Food", "date": "2024-03-05", "source": "Checking",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestUpdateUnknownTransactionIs404(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	rec := env.do(t, http.MethodPatch, "/v1/ledger/transactions/missing", token, map[string]any{"amount": 1})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	env := newTestEnv()
	alice := env.guestToken(t)
	bob := env.guestToken(t)

	draft := domain.TransactionDraft{
		Type:     domain.TypeIncome,
		Amount:   500,
		Category: "Salary",
		Date:     domain.NewDate(2024, time.March, 1),
		Source:   "Employer",
	}
	if rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", alice, draft); rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/v1/ledger/transactions", bob, nil)
	if txns := decode[[]domain.Transaction](t, rec); len(txns) != 0 {
		t.Errorf("bob must not see alice's transactions, got %d", len(txns))
	}
}

// ============================================================
// Summary
// ============================================================

func TestSummaryEndpoint(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	seed := []domain.TransactionDraft{
		{Type: domain.TypeIncome, Amount: 1000, Category: "Salary", Date: domain.NewDate(2024, time.January, 10), Source: "Employer"},
		{Type: domain.TypeExpense, Amount: 300, Category: "Rent", Date: domain.NewDate(2024, time.January, 12), Source: "Checking"},
		{Type: domain.TypeExpense, Amount: 200, Category: "Food", Date: domain.NewDate(2024, time.February, 3), Source: "Checking"},
	}
	for _, draft := range seed {
		if rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", token, draft); rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d", rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/ledger/summary?month=2&year=2024", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	summary := decode[domain.LedgerSummary](t, rec)
	if summary.Period.PriorBalance != 700 {
		t.Errorf("expected prior balance 700, got %v", summary.Period.PriorBalance)
	}
	if summary.Period.EndBalance != 500 {
		t.Errorf("expected end balance 500, got %v", summary.Period.EndBalance)
	}
	if summary.Lifetime.Balance != 500 {
		t.Errorf("expected lifetime balance 500, got %v", summary.Lifetime.Balance)
	}
	if len(summary.Period.Categories) != 1 || summary.Period.Categories[0].Category != "Food" {
		t.Errorf("expected single Food category slice, got %+v", summary.Period.Categories)
	}
}

func TestSummaryRejectsBadMonth(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	rec := env.do(t, http.MethodGet, "/v1/ledger/summary?month=13", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ============================================================
// Tally
// ============================================================

func TestTallyEndpoint(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	draft := domain.TransactionDraft{
		Type:     domain.TypeIncome,
		Amount:   1000,
		Category: "Salary",
		Date:     domain.NewDate(2024, time.March, 1),
		Source:   "Employer",
	}
	if rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", token, draft); rec.Code != http.StatusCreated {
		t.Fatalf("seed: expected 201, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/v1/ledger/tally", token, map[string]any{"balance": 1500})
	if rec.Code != http.StatusCreated {
		t.Fatalf("tally: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	result := decode[domain.TallyResult](t, rec)
	if result.Adjustment == nil || result.Adjustment.Amount != 500 {
		t.Fatalf("expected income adjustment of 500, got %+v", result.Adjustment)
	}

	// Balanced ledger: no adjustment, plain 200.
	rec = env.do(t, http.MethodPost, "/v1/ledger/tally", token, map[string]any{"balance": 1500})
	if rec.Code != http.StatusOK {
		t.Fatalf("second tally: expected 200, got %d", rec.Code)
	}
	if result := decode[domain.TallyResult](t, rec); result.Adjustment != nil {
		t.Error("balanced tally must not create an adjustment")
	}
}

func TestTallyRequiresBalance(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/ledger/tally", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ============================================================
// Reset
// ============================================================

func TestResetRequiresConfirmation(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/ledger/reset", token, map[string]any{"confirm": "yes"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without the confirmation phrase, got %d", rec.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	for i := 0; i < 5; i++ {
		draft := domain.TransactionDraft{
			Type:     domain.TypeExpense,
			Amount:   float64(i + 1),
			Category: "Food",
			Date:     domain.NewDate(2024, time.March, 1),
			Source:   "Checking",
		}
		if rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", token, draft); rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d", rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/v1/ledger/reset", token, map[string]any{"confirm": "delete all transactions"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	result := decode[domain.ResetResult](t, rec)
	if result.Deleted != 5 || result.Failed != 0 {
		t.Errorf("expected 5 deleted, got %+v", result)
	}

	rec = env.do(t, http.MethodGet, "/v1/ledger/transactions", token, nil)
	if txns := decode[[]domain.Transaction](t, rec); len(txns) != 0 {
		t.Errorf("expected empty ledger after reset, got %d", len(txns))
	}
}

func TestResetPartialFailureIsReported(t *testing.T) {
	env := newTestEnv()
	token := env.guestToken(t)

	var ids []string
	for i := 0; i < 3; i++ {
		draft := domain.TransactionDraft{
			Type:     domain.TypeExpense,
			Amount:   10,
			Category: "Food",
			Date:     domain.NewDate(2024, time.March, 1),
			Source:   "Checking",
		}
		rec := env.do(t, http.MethodPost, "/v1/ledger/transactions", token, draft)
		ids = append(ids, decode[domain.Transaction](t, rec).ID)
	}

	doomed := ids[1]
	env.store.DeleteHook = func(ownerID, id string) error {
		if id == doomed {
			return fmt.Errorf("store unavailable")
		}
		return nil
	}

	rec := env.do(t, http.MethodPost, "/v1/ledger/reset", token, map[string]any{"confirm": "delete all transactions"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on partial reset, got %d: %s", rec.Code, rec.Body)
	}
	body := decode[map[string]any](t, rec)
	if body["deleted"] != float64(2) || body["failed"] != float64(1) {
		t.Errorf("expected 2 deleted and 1 failed, got %v", body)
	}
}
