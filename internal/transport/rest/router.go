package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/loan-servicing/internal/accrual"
	"github.com/frahmantamala/loan-servicing/internal/application"
	"github.com/frahmantamala/loan-servicing/internal/disbursement"
	"github.com/frahmantamala/loan-servicing/internal/payment"
	"github.com/frahmantamala/loan-servicing/internal/reconciliation"
	"github.com/frahmantamala/loan-servicing/internal/repayment"
	"github.com/frahmantamala/loan-servicing/internal/transport/middleware"
)

type Handlers struct {
	Application    *application.Handler
	Repayment      *repayment.Handler
	Accrual        *accrual.Handler
	Payment        *payment.Handler
	Reconciliation *reconciliation.Handler
	Disbursement   *disbursement.Handler
}

// RegisterAllRoutes mounts the servicing API under /api/v1. Health endpoints
// are public; every ledger route requires a verified actor identity because
// each mutation is attributed in audit history.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, handlers Handlers, jwtSigningKey string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.ActorAuth(jwtSigningKey, logger))

			if h := handlers.Application; h != nil {
				pr.Route("/applications/{id}", func(ar chi.Router) {
					ar.Get("/", h.GetApplication)
					ar.Patch("/status", h.Transition)
					ar.Post("/advance", h.Advance)

					if dh := handlers.Disbursement; dh != nil {
						ar.Post("/disburse", dh.Disburse)
						ar.Get("/disbursements", dh.ListDisbursements)
					}
				})
			}

			if h := handlers.Repayment; h != nil {
				pr.Get("/loans/{loanID}/repayments", h.ListSchedule)
				pr.Get("/loans/{loanID}/totals", h.LoanTotals)
				pr.Get("/repayments", h.ListDue)
			}

			if h := handlers.Accrual; h != nil {
				pr.Route("/accrual", func(ar chi.Router) {
					ar.Post("/run", h.RunAccrual)
					ar.Get("/fees", h.ListFeeRecords)
					ar.Patch("/fees/{id}/waive", h.WaiveFee)
				})
			}

			if h := handlers.Payment; h != nil {
				pr.Route("/payments", func(pmr chi.Router) {
					pmr.Post("/", h.SubmitPayment)
					pmr.Get("/", h.ListPayments)
					pmr.Get("/{id}", h.GetPayment)
					pmr.Patch("/{id}/approve", h.ApprovePayment)
					pmr.Patch("/{id}/reject", h.RejectPayment)
				})
			}

			if h := handlers.Reconciliation; h != nil {
				pr.Route("/reconciliation", func(rr chi.Router) {
					rr.Post("/match", h.MatchStatement)
					rr.Post("/approve", h.BatchApprove)
				})
			}
		})
	})
}
