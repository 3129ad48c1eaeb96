// Package api exposes the reconciliation services over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cleared-dev/bankrec/internal/buildinfo"
	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/discrepancy"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/matching"
	"github.com/cleared-dev/bankrec/internal/report"
	"github.com/cleared-dev/bankrec/internal/statements"
	"github.com/cleared-dev/bankrec/internal/transactions"
)

// Services are the components the API routes to.
type Services struct {
	Ledger        *ledger.Service
	Statements    *statements.Service
	Transactions  *transactions.Service
	Matching      *matching.Service
	Discrepancies *discrepancy.Service
	Reports       *report.Service
}

// Server routes HTTP requests to the services.
type Server struct {
	svc     Services
	cfg     config.ServerConfig
	detect  bool
	limiter *clientLimiter
	Now     func() time.Time
}

// NewServer creates a Server. When detectAfterAutoMatch is set, an auto-match
// request also runs discrepancy detection for the account.
func NewServer(svc Services, cfg config.ServerConfig, detectAfterAutoMatch bool) *Server {
	s := &Server{svc: svc, cfg: cfg, detect: detectAfterAutoMatch, Now: time.Now}
	if cfg.RateLimitPerSecond > 0 {
		s.limiter = newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/bank-accounts", func(r chi.Router) {
			r.Post("/", s.createAccount)
			r.Get("/", s.listAccounts)
			r.Get("/{id}", s.getAccount)
			r.Put("/{id}", s.updateAccount)
			r.Put("/{id}/balance", s.updateBalance)
			r.Delete("/{id}", s.deactivateAccount)
		})

		r.Route("/bank-statement-entries", func(r chi.Router) {
			r.Post("/", s.importEntry)
			r.Post("/import", s.importEntries)
			r.Post("/import/csv", s.importCSV)
			r.Get("/", s.listEntries)
			r.Get("/unmatched", s.unmatchedEntries)
			r.Get("/date-range", s.entriesInRange)
			r.Get("/potential-matches", s.potentialEntries)
			r.Get("/{id}", s.getEntry)
			r.Post("/{id}/match", s.matchEntry)
		})

		r.Route("/internal-transactions", func(r chi.Router) {
			r.Post("/", s.createTransaction)
			r.Get("/", s.listTransactions)
			r.Get("/unreconciled", s.unreconciledTransactions)
			r.Get("/{id}", s.getTransaction)
			r.Post("/{id}/reconcile", s.reconcileTransaction)
		})

		r.Route("/transaction-matches", func(r chi.Router) {
			r.Post("/", s.createMatch)
			r.Get("/", s.listMatches)
			r.Get("/unconfirmed", s.unconfirmedMatches)
			r.Get("/needs-review", s.matchesNeedingReview)
			r.Post("/auto-match/bank-account/{id}", s.autoMatch)
			r.Get("/potential-matches/bank-statement-entry/{id}", s.candidates)
			r.Get("/{id}", s.getMatch)
			r.Post("/{id}/confirm", s.confirmMatch)
			r.Delete("/{id}", s.dismissMatch)
		})

		r.Route("/discrepancies", func(r chi.Router) {
			r.Post("/", s.createDiscrepancy)
			r.Get("/", s.listDiscrepancies)
			r.Get("/open", s.openDiscrepancies)
			r.Get("/high-priority", s.highPriorityDiscrepancies)
			r.Get("/overdue", s.overdueDiscrepancies)
			r.Post("/detect/bank-account/{id}", s.detectDiscrepancies)
			r.Get("/{id}", s.getDiscrepancy)
			r.Post("/{id}/assign", s.assignDiscrepancy)
			r.Post("/{id}/resolve", s.resolveDiscrepancy)
			r.Post("/{id}/close", s.closeDiscrepancy)
			r.Post("/{id}/reopen", s.reopenDiscrepancy)
			r.Post("/{id}/notes", s.addDiscrepancyNote)
			r.Put("/{id}/priority", s.setDiscrepancyPriority)
		})

		r.Route("/reconciliation-reports", func(r chi.Router) {
			r.Get("/summary/all-accounts", s.allAccountsSummary)
			r.Get("/summary/bank-account/{id}", s.accountSummary)
			r.Get("/status/bank-account/{id}", s.accountStatus)
			r.Get("/trend/bank-account/{id}", s.trend)
			r.Get("/outstanding-checks/bank-account/{id}", s.outstandingChecks)
			r.Get("/deposits-in-transit/bank-account/{id}", s.depositsInTransit)
			r.Get("/export/csv/bank-account/{id}", s.exportCSV)
		})
	})
	return r
}

// HTTPServer wraps Handler with the configured listener timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}
