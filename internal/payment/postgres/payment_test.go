package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/loan-servicing/internal/payment"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

func TestPaymentRepository(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Payment Repository Suite")
}

var _ = ginkgo.Describe("PaymentRepository", func() {
	var (
		db   *gorm.DB
		repo payment.Repository
		ctx  context.Context
	)

	ginkgo.BeforeEach(func() {
		// Use in-memory SQLite for testing
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		err = db.AutoMigrate(&paymodel.PendingPayment{}, &repmodel.LoanRepayment{})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		repo = NewPaymentRepository(db)
		ctx = context.Background()
	})

	seedRepayment := func(loanID int64, installment int, principal, fees int64) *repmodel.LoanRepayment {
		rep := &repmodel.LoanRepayment{
			LoanID:            loanID,
			InstallmentNumber: installment,
			DueDate:           time.Now().AddDate(0, -1, 0),
			PrincipalAmount:   decimal.NewFromInt(principal),
			InterestAmount:    decimal.Zero,
			Status:            repmodel.StatusOverdue,
			LateFeeAmount:     decimal.NewFromInt(fees),
		}
		gomega.Expect(db.Create(rep).Error).ToNot(gomega.HaveOccurred())
		return rep
	}

	create := func(loanID, amount int64) *paymodel.PendingPayment {
		p := &paymodel.PendingPayment{
			LoanID:        loanID,
			Amount:        decimal.NewFromInt(amount),
			Reference:     "TRX-001",
			PaymentMethod: "bank_transfer",
			Status:        paymodel.StatusPending,
		}
		gomega.Expect(repo.Create(ctx, p)).To(gomega.Succeed())
		return p
	}

	ginkgo.Describe("Approve", func() {
		ginkgo.It("applies the waterfall and resolves the payment atomically", func() {
			rep := seedRepayment(1, 2, 1000, 60)
			p := create(1, 500)

			result, err := repo.Approve(ctx, p.ID, "ops@lender.id", payment.Allocate)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(result.RepaymentID).To(gomega.Equal(rep.ID))
			gomega.Expect(result.Breakdown.FeePortion.Equal(decimal.NewFromInt(60))).To(gomega.BeTrue())

			var stored repmodel.LoanRepayment
			gomega.Expect(db.First(&stored, rep.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.LateFeesPaid.Equal(decimal.NewFromInt(60))).To(gomega.BeTrue())
			gomega.Expect(stored.PrincipalPaid.Equal(decimal.NewFromInt(440))).To(gomega.BeTrue())
			gomega.Expect(stored.Status).To(gomega.Equal(repmodel.StatusOverdue))

			var storedPayment paymodel.PendingPayment
			gomega.Expect(db.First(&storedPayment, p.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(storedPayment.Status).To(gomega.Equal(paymodel.StatusApproved))
			gomega.Expect(*storedPayment.ProcessedBy).To(gomega.Equal("ops@lender.id"))
		})

		ginkgo.It("completes the installment when the payment settles everything", func() {
			rep := seedRepayment(1, 2, 1000, 60)
			p := create(1, 1060)

			result, err := repo.Approve(ctx, p.ID, "ops@lender.id", payment.Allocate)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(result.Breakdown.Completed).To(gomega.BeTrue())

			var stored repmodel.LoanRepayment
			gomega.Expect(db.First(&stored, rep.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.Status).To(gomega.Equal(repmodel.StatusCompleted))
			gomega.Expect(stored.PaidAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("targets the earliest open installment, skipping completed ones", func() {
			first := seedRepayment(1, 1, 1000, 0)
			db.Model(first).Update("status", repmodel.StatusCompleted)
			second := seedRepayment(1, 2, 1000, 0)
			seedRepayment(1, 3, 1000, 0)

			p := create(1, 300)
			result, err := repo.Approve(ctx, p.ID, "ops@lender.id", payment.Allocate)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(result.RepaymentID).To(gomega.Equal(second.ID))
		})

		ginkgo.It("lets exactly one of two racing resolutions win", func() {
			seedRepayment(1, 2, 1000, 0)
			p := create(1, 500)

			_, err := repo.Approve(ctx, p.ID, "first@lender.id", payment.Allocate)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = repo.Approve(ctx, p.ID, "second@lender.id", payment.Allocate)
			gomega.Expect(err).To(gomega.MatchError(payment.ErrAlreadyProcessed))

			_, err = repo.Reject(ctx, p.ID, "second@lender.id", "duplicate", "")
			gomega.Expect(err).To(gomega.MatchError(payment.ErrAlreadyProcessed))

			var stored paymodel.PendingPayment
			gomega.Expect(db.First(&stored, p.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(*stored.ProcessedBy).To(gomega.Equal("first@lender.id"))
		})

		ginkgo.It("rolls the status flip back when allocation fails", func() {
			seedRepayment(1, 2, 1000, 0)
			p := create(1, 500)
			db.Model(&paymodel.PendingPayment{}).Where("id = ?", p.ID).Update("amount", decimal.Zero)

			_, err := repo.Approve(ctx, p.ID, "ops@lender.id", payment.Allocate)

			gomega.Expect(err).To(gomega.MatchError(payment.ErrInvalidAllocation))

			// nothing committed: the payment is still pending
			var stored paymodel.PendingPayment
			gomega.Expect(db.First(&stored, p.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.Status).To(gomega.Equal(paymodel.StatusPending))
		})

		ginkgo.It("returns not found for an unknown payment", func() {
			_, err := repo.Approve(ctx, 404, "ops@lender.id", payment.Allocate)

			gomega.Expect(err).To(gomega.MatchError(payment.ErrPaymentNotFound))
		})

		ginkgo.It("refuses when the loan has no open installment", func() {
			p := create(7, 500)

			_, err := repo.Approve(ctx, p.ID, "ops@lender.id", payment.Allocate)

			gomega.Expect(err).To(gomega.MatchError(payment.ErrNoOpenRepayment))
		})
	})

	ginkgo.Describe("Reject", func() {
		ginkgo.It("resolves the payment without touching repayments", func() {
			rep := seedRepayment(1, 2, 1000, 60)
			p := create(1, 500)

			rejected, err := repo.Reject(ctx, p.ID, "ops@lender.id", "unrecognized sender", "")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rejected.Status).To(gomega.Equal(paymodel.StatusRejected))
			gomega.Expect(*rejected.RejectReason).To(gomega.Equal("unrecognized sender"))

			var stored repmodel.LoanRepayment
			gomega.Expect(db.First(&stored, rep.ID).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.PrincipalPaid.IsZero()).To(gomega.BeTrue())
			gomega.Expect(stored.LateFeesPaid.IsZero()).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("ListPending", func() {
		ginkgo.It("returns only unresolved payments", func() {
			seedRepayment(1, 2, 1000, 0)
			keep := create(1, 100)
			resolved := create(1, 200)
			_, err := repo.Reject(ctx, resolved.ID, "ops@lender.id", "dup", "")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			pending, err := repo.ListPending(ctx)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(pending).To(gomega.HaveLen(1))
			gomega.Expect(pending[0].ID).To(gomega.Equal(keep.ID))
		})
	})
})
