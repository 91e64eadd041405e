package reconciliation

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/frahmantamala/loan-servicing/internal/payment"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

// PaymentService is the slice of the payment workflow reconciliation needs:
// the candidate set for matching, and approval for confirmed matches.
type PaymentService interface {
	ListPending(ctx context.Context) ([]*paymodel.PendingPayment, error)
	Approve(ctx context.Context, paymentID int64, actor, notes string) (*payment.ApprovalResult, error)
}

// BatchItemResult reports the outcome of one approval in a confirmed batch.
type BatchItemResult struct {
	PaymentID int64  `json:"payment_id"`
	Approved  bool   `json:"approved"`
	Error     string `json:"error,omitempty"`
}

// BatchSummary aggregates one confirmed reconciliation batch.
type BatchSummary struct {
	Total    int               `json:"total"`
	Approved int               `json:"approved"`
	Failed   int               `json:"failed"`
	Results  []BatchItemResult `json:"results"`
}

// Service runs the two reconciliation phases: a read-only scoring pass over
// an uploaded statement, then a bulk approval of the pairings the operator
// confirmed. The phases are deliberately separate so a scoring pass can be
// rerun without side effects.
type Service struct {
	payments PaymentService
	matcher  *Matcher
	workers  int
	logger   *slog.Logger
}

func NewService(payments PaymentService, matcher *Matcher, workers int, logger *slog.Logger) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		payments: payments,
		matcher:  matcher,
		workers:  workers,
		logger:   logger,
	}
}

// MatchStatement parses an uploaded CSV and scores every row against the
// current pending payments. Nothing is written; row-level parse failures are
// returned alongside the matches.
func (s *Service) MatchStatement(ctx context.Context, statement io.Reader) (*MatchResult, []RowError, error) {
	transactions, rowErrors := ParseStatement(statement)

	pending, err := s.payments.ListPending(ctx)
	if err != nil {
		s.logger.Error("failed to load pending payments for matching", "error", err)
		return nil, nil, err
	}

	result := s.matcher.Match(transactions, pending)

	s.logger.Info("statement matched",
		"transactions", len(transactions),
		"skipped_rows", len(rowErrors),
		"pending_candidates", len(pending),
		"matched", len(result.Matches),
		"unmatched", len(result.UnmatchedTransactions))

	return result, rowErrors, nil
}

// BatchApprove approves the confirmed payment IDs with bounded concurrency.
// Each approval is independent; one failure never aborts the batch. Results
// come back in input order.
func (s *Service) BatchApprove(ctx context.Context, paymentIDs []int64, actor string) *BatchSummary {
	summary := &BatchSummary{
		Total:   len(paymentIDs),
		Results: make([]BatchItemResult, len(paymentIDs)),
	}
	if len(paymentIDs) == 0 {
		return summary
	}

	type job struct {
		idx       int
		paymentID int64
	}

	jobs := make(chan job)
	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := BatchItemResult{PaymentID: j.paymentID}
				if _, err := s.payments.Approve(ctx, j.paymentID, actor, "reconciliation batch"); err != nil {
					res.Error = err.Error()
				} else {
					res.Approved = true
				}
				summary.Results[j.idx] = res
			}
		}()
	}

	for i, id := range paymentIDs {
		jobs <- job{idx: i, paymentID: id}
	}
	close(jobs)
	wg.Wait()

	for _, res := range summary.Results {
		if res.Approved {
			summary.Approved++
		} else {
			summary.Failed++
		}
	}

	s.logger.Info("reconciliation batch processed",
		"total", summary.Total,
		"approved", summary.Approved,
		"failed", summary.Failed,
		"actor", actor)

	return summary
}
