package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API server.
type Deps struct {
	Accounts  *services.AccountService
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Store     Pinger
	Logger    *log.Logger

	CORSAllowedOrigins []string
	TrustedProxies     []string
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	accounts  *services.AccountService
	ledger    *services.LedgerService
	dashboard *services.DashboardService
	store     Pinger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the router and middleware chain. Trusted proxies that are
// not valid CIDRs are logged and skipped.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	limitCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldComponent, log.ComponentSecurity, "cidr", cidr, log.FieldError, err.Error())
		}
	}

	s := &Server{
		accounts:  deps.Accounts,
		ledger:    deps.Ledger,
		dashboard: deps.Dashboard,
		store:     deps.Store,
		limiter:   ratelimit.NewLimiter(limitCfg),
		detector:  detector,
		tracer:    trace.NewMiddleware(detector.ExtractClientIP),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(logger.WithComponent(log.ComponentHTTP), deps.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *log.Logger, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(log.Middleware(logger))
	r.Use(s.tracer.Middleware)
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldComponent, log.ComponentRateLimit,
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(requireUser(s.accounts))

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", s.handleCreateExpense)
				r.Get("/", s.handleListExpenses)
				r.Get("/summary", s.handleExpenseSummary)
				r.Delete("/{id}", s.handleDeleteExpense)
			})
			r.Route("/incomes", func(r chi.Router) {
				r.Post("/", s.handleCreateIncome)
				r.Get("/", s.handleListIncomes)
				r.Get("/summary", s.handleIncomeSummary)
				r.Delete("/{id}", s.handleDeleteIncome)
			})
			r.Route("/budgets", func(r chi.Router) {
				r.Post("/", s.handleSetBudget)
				r.Get("/", s.handleListBudgets)
				r.Get("/status", s.handleBudgetStatus)
				r.Delete("/{id}", s.handleDeleteBudget)
			})
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/alerts", s.handleListAlerts)
		})
	})

	return r
}

// Shutdown stops background goroutines and drains the HTTP server. It is
// safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
				log.FieldComponent, log.ComponentStorage,
				log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes the in-process counters as plain text, one
// "name value" pair per line.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()

	var b strings.Builder
	fmt.Fprintf(&b, "http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(&b, "http_client_errors_total %d\n", tm.ClientErrors)
	fmt.Fprintf(&b, "http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(&b, "http_response_time_avg_us %d\n", tm.AverageResponseTime)
	fmt.Fprintf(&b, "ratelimit_rejected_total %d\n", rm.Rejected)
	fmt.Fprintf(&b, "ratelimit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(&b, "security_suspicious_requests_total %d\n", dm.SuspiciousRequests)
	if s.dashboard != nil {
		cs := s.dashboard.CacheStats()
		fmt.Fprintf(&b, "dashboard_cache_entries %d\n", cs.Entries)
		fmt.Fprintf(&b, "dashboard_cache_hits_total %d\n", cs.Hits)
		fmt.Fprintf(&b, "dashboard_cache_misses_total %d\n", cs.Misses)
		fmt.Fprintf(&b, "dashboard_cache_evictions_total %d\n", cs.Evictions)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
