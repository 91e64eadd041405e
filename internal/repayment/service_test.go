package repayment_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/loan-servicing/internal/repayment"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

func TestRepaymentService(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Repayment Service Suite")
}

type mockRepaymentRepository struct {
	byLoan map[int64][]*repmodel.LoanRepayment
	err    error

	lastStatus string
	lastLimit  int
	lastOffset int
	lastFrom   time.Time
	lastTo     time.Time
}

func (m *mockRepaymentRepository) ListByLoan(_ context.Context, loanID int64) ([]*repmodel.LoanRepayment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byLoan[loanID], nil
}

func (m *mockRepaymentRepository) ListByStatus(_ context.Context, status string, limit, offset int) ([]*repmodel.LoanRepayment, error) {
	m.lastStatus = status
	m.lastLimit = limit
	m.lastOffset = offset
	return nil, nil
}

func (m *mockRepaymentRepository) ListDueBetween(_ context.Context, from, to time.Time) ([]*repmodel.LoanRepayment, error) {
	m.lastFrom = from
	m.lastTo = to
	return nil, nil
}

func decptr(d decimal.Decimal) *decimal.Decimal { return &d }

var _ = ginkgo.Describe("RepaymentService", func() {
	var (
		repo    *mockRepaymentRepository
		service *repayment.Service
	)

	dueDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	installment := func(number int, status string, principal, interest int64) *repmodel.LoanRepayment {
		return &repmodel.LoanRepayment{
			ID:                int64(number),
			LoanID:            7,
			InstallmentNumber: number,
			DueDate:           dueDate.AddDate(0, number-1, 0),
			PrincipalAmount:   decimal.NewFromInt(principal),
			InterestAmount:    decimal.NewFromInt(interest),
			Status:            status,
		}
	}

	ginkgo.BeforeEach(func() {
		repo = &mockRepaymentRepository{byLoan: make(map[int64][]*repmodel.LoanRepayment)}
		service = repayment.NewService(repo, slog.Default())
	})

	ginkgo.Describe("Totals", func() {
		ginkgo.It("folds the schedule into counts, outstanding sums, and paid total", func() {
			completed := installment(1, repmodel.StatusCompleted, 1000, 60)
			completed.PrincipalPaid = decimal.NewFromInt(1060)
			completed.ActualAmount = decptr(decimal.NewFromInt(1060))

			overdue := installment(2, repmodel.StatusOverdue, 1000, 60)
			overdue.LateFeeAmount = decimal.NewFromInt(30)
			overdue.LateFeesPaid = decimal.NewFromInt(10)

			pending := installment(3, repmodel.StatusPending, 1000, 60)

			repo.byLoan[7] = []*repmodel.LoanRepayment{completed, overdue, pending}

			totals, err := service.Totals(context.Background(), 7)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(totals.LoanID).To(gomega.Equal(int64(7)))
			gomega.Expect(totals.Installments).To(gomega.Equal(3))
			gomega.Expect(totals.Completed).To(gomega.Equal(1))
			gomega.Expect(totals.Overdue).To(gomega.Equal(1))
			gomega.Expect(totals.OutstandingScheduled.String()).To(gomega.Equal("2120"))
			gomega.Expect(totals.OutstandingFees.String()).To(gomega.Equal("20"))
			gomega.Expect(totals.TotalPaid.String()).To(gomega.Equal("1060"))
		})

		ginkgo.It("partial payments reduce outstanding without counting as paid in full", func() {
			partial := installment(1, repmodel.StatusOverdue, 1000, 60)
			partial.PrincipalPaid = decimal.NewFromInt(400)
			partial.ActualAmount = decptr(decimal.NewFromInt(400))

			repo.byLoan[7] = []*repmodel.LoanRepayment{partial}

			totals, err := service.Totals(context.Background(), 7)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(totals.Completed).To(gomega.Equal(0))
			gomega.Expect(totals.OutstandingScheduled.String()).To(gomega.Equal("660"))
			gomega.Expect(totals.TotalPaid.String()).To(gomega.Equal("400"))
		})

		ginkgo.It("an unknown loan yields an empty aggregate", func() {
			totals, err := service.Totals(context.Background(), 404)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(totals.Installments).To(gomega.Equal(0))
			gomega.Expect(totals.OutstandingScheduled.IsZero()).To(gomega.BeTrue())
			gomega.Expect(totals.TotalPaid.IsZero()).To(gomega.BeTrue())
		})

		ginkgo.It("propagates repository failures", func() {
			repo.err = errors.New("database down")

			_, err := service.Totals(context.Background(), 7)

			gomega.Expect(err).To(gomega.MatchError("database down"))
		})
	})

	ginkgo.Describe("ListByStatus", func() {
		ginkgo.It("clamps an absent limit to the default page size", func() {
			_, err := service.ListByStatus(context.Background(), repmodel.StatusOverdue, 0, 0)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(repo.lastLimit).To(gomega.Equal(50))
			gomega.Expect(repo.lastStatus).To(gomega.Equal(repmodel.StatusOverdue))
		})

		ginkgo.It("clamps an oversized limit", func() {
			_, err := service.ListByStatus(context.Background(), repmodel.StatusPending, 1000, 20)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(repo.lastLimit).To(gomega.Equal(50))
			gomega.Expect(repo.lastOffset).To(gomega.Equal(20))
		})

		ginkgo.It("passes a reasonable limit through unchanged", func() {
			_, err := service.ListByStatus(context.Background(), repmodel.StatusPending, 25, 0)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(repo.lastLimit).To(gomega.Equal(25))
		})
	})

	ginkgo.Describe("ListDueBetween", func() {
		ginkgo.It("forwards the window to the repository", func() {
			from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

			_, err := service.ListDueBetween(context.Background(), from, to)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(repo.lastFrom).To(gomega.Equal(from))
			gomega.Expect(repo.lastTo).To(gomega.Equal(to))
		})
	})
})
