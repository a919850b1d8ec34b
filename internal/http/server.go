// Package http exposes the REST API: authentication, expense logging,
// budgets, preferences and monthly reports.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendtrack/internal/auth"
	"spendtrack/internal/config"
	"spendtrack/internal/log"
	"spendtrack/internal/middleware/ratelimit"
	"spendtrack/internal/services"
	"spendtrack/internal/storage"
)

// NotificationLister lists stored budget alerts for a user.
type NotificationLister interface {
	ListNotifications(ctx context.Context, userID string) ([]storage.Notification, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the REST API.
type Server struct {
	httpServer *http.Server

	auth          *services.AuthService
	expenses      *services.ExpenseService
	preferences   *services.PreferenceService
	reports       *services.ReportService
	notifications NotificationLister
	store         Pinger
	tokens        *auth.TokenIssuer
	limiter       *ratelimit.Limiter
	logger        *log.Logger
}

// Deps collects the services the server routes to.
type Deps struct {
	Auth          *services.AuthService
	Expenses      *services.ExpenseService
	Preferences   *services.PreferenceService
	Reports       *services.ReportService
	Notifications NotificationLister
	Store         Pinger
	Tokens        *auth.TokenIssuer
	Logger        *log.Logger
}

// NewServer wires the router and returns a server listening on cfg.Port.
func NewServer(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		auth:          deps.Auth,
		expenses:      deps.Expenses,
		preferences:   deps.Preferences,
		reports:       deps.Reports,
		notifications: deps.Notifications,
		store:         deps.Store,
		tokens:        deps.Tokens,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.AuthRequestsPerMinute,
		}),
		logger: logger.WithComponent("http"),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
	})

	r.Route("/api/data", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/expenses", s.handleLogExpense)
		r.Get("/expenses", s.handleListExpenses)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Get("/budgets", s.handleGetBudget)
		r.Get("/reports/summary", s.handleSummary)
		r.Post("/preferences", s.handleSavePreferences)
		r.Get("/preferences/defaults", s.handleDefaultBudgets)
		r.Get("/notifications", s.handleListNotifications)
	})

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Error("readiness check failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
