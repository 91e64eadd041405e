package repayment

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

// Repository is read-only: the schedule view never mutates the ledger. All
// writes go through the accrual engine and the payment approval path.
type Repository interface {
	ListByLoan(ctx context.Context, loanID int64) ([]*repmodel.LoanRepayment, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*repmodel.LoanRepayment, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*repmodel.LoanRepayment, error)
}

// LoanTotals aggregates a loan's schedule for the servicing dashboard.
type LoanTotals struct {
	LoanID               int64
	Installments         int
	Completed            int
	Overdue              int
	OutstandingScheduled decimal.Decimal
	OutstandingFees      decimal.Decimal
	TotalPaid            decimal.Decimal
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) ListByLoan(ctx context.Context, loanID int64) ([]*repmodel.LoanRepayment, error) {
	return s.repo.ListByLoan(ctx, loanID)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*repmodel.LoanRepayment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) ListDueBetween(ctx context.Context, from, to time.Time) ([]*repmodel.LoanRepayment, error) {
	return s.repo.ListDueBetween(ctx, from, to)
}

// Totals folds the loan's schedule into outstanding and paid aggregates.
// Derived in memory from the same rows ListByLoan returns, so the numbers
// always agree with the schedule the caller just fetched.
func (s *Service) Totals(ctx context.Context, loanID int64) (*LoanTotals, error) {
	repayments, err := s.repo.ListByLoan(ctx, loanID)
	if err != nil {
		s.logger.Error("failed to load schedule for totals", "error", err, "loan_id", loanID)
		return nil, err
	}

	totals := &LoanTotals{
		LoanID:               loanID,
		Installments:         len(repayments),
		OutstandingScheduled: decimal.Zero,
		OutstandingFees:      decimal.Zero,
		TotalPaid:            decimal.Zero,
	}

	for _, rep := range repayments {
		switch rep.Status {
		case repmodel.StatusCompleted:
			totals.Completed++
		case repmodel.StatusOverdue:
			totals.Overdue++
		}
		totals.OutstandingScheduled = totals.OutstandingScheduled.Add(rep.OutstandingScheduled())
		totals.OutstandingFees = totals.OutstandingFees.Add(rep.OutstandingFees())
		if rep.ActualAmount != nil {
			totals.TotalPaid = totals.TotalPaid.Add(*rep.ActualAmount)
		}
	}

	return totals, nil
}
