package handler

import (
	"net/http"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/infra/observability"
	"github.com/fintrack/fintrack-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract of the FinTrack frontend.
func NewRouter(ledgerSvc *service.LedgerService, sessionSvc *service.SessionService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(requestMetricsMiddleware(metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledgerSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Sessions
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", signUpHandler(sessionSvc, logger))
			r.Post("/signin", signInHandler(sessionSvc, logger))
			r.Post("/guest", guestHandler(sessionSvc, logger))
			r.Post("/refresh", refreshHandler(sessionSvc, logger))
			r.Post("/signout", signOutHandler(sessionSvc, logger))
		})

		// =============================================
		// Category suggestions (static, no auth)
		// =============================================
		r.Get("/categories", categoriesHandler())

		// =============================================
		// Ledger metrics
		// =============================================
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		// =============================================
		// Ledger (protected; owner comes from the token)
		// =============================================
		r.Route("/ledger", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(sessionSvc, logger))

			r.Get("/transactions", listTransactionsHandler(ledgerSvc, logger))
			r.Post("/transactions", createTransactionHandler(ledgerSvc, logger))
			r.Patch("/transactions/{transactionId}", updateTransactionHandler(ledgerSvc, logger))
			r.Delete("/transactions/{transactionId}", deleteTransactionHandler(ledgerSvc, logger))

			r.Get("/summary", summaryHandler(ledgerSvc, logger))
			r.Post("/tally", tallyHandler(ledgerSvc, logger))
			r.Post("/reset", resetHandler(ledgerSvc, logger))
			r.Get("/stream", streamHandler(ledgerSvc, metrics, logger))
		})
	})

	return r
}

// requestMetricsMiddleware records per-request duration and status
// counts. Stream requests are recorded on disconnect like any other.
func requestMetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			// The route pattern, not the raw path, keeps label
			// cardinality bounded.
			operation := r.Method + " " + r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				operation = r.Method + " " + rctx.RoutePattern()
			}
			metrics.RecordRequestDuration(operation, time.Since(start))
			outcome := "success"
			if ww.Status() >= 500 {
				outcome = "error"
			}
			metrics.IncrRequest(outcome)
		})
	}
}

// ============================================================
// Health
// ============================================================

func healthzHandler(ledgerSvc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "fintrack-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if ledgerSvc != nil {
			start := time.Now()
			_, err := ledgerSvc.ListTransactions(ctx, "health-check", domain.PeriodFilter{}, "")
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Category suggestions — GET /v1/categories
// ============================================================

func categoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.CategorySuggestions)
	}
}

// ============================================================
// Ledger metrics — GET /v1/metrics/ledger
// ============================================================

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
