package reconciliation_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/loan-servicing/internal/payment"
	"github.com/frahmantamala/loan-servicing/internal/reconciliation"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

func TestReconciliationService(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Reconciliation Service Suite")
}

type mockPaymentService struct {
	mu sync.Mutex

	pending     []*paymodel.PendingPayment
	pendingErr  error
	approveErrs map[int64]error
	approved    []int64
	notes       map[int64]string
}

func newMockPaymentService() *mockPaymentService {
	return &mockPaymentService{
		approveErrs: make(map[int64]error),
		notes:       make(map[int64]string),
	}
}

func (m *mockPaymentService) ListPending(_ context.Context) ([]*paymodel.PendingPayment, error) {
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	return m.pending, nil
}

func (m *mockPaymentService) Approve(_ context.Context, paymentID int64, _ string, notes string) (*payment.ApprovalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.approveErrs[paymentID]; ok {
		return nil, err
	}
	m.approved = append(m.approved, paymentID)
	m.notes[paymentID] = notes
	return &payment.ApprovalResult{
		Payment: &paymodel.PendingPayment{ID: paymentID, Status: paymodel.StatusApproved},
	}, nil
}

var _ = ginkgo.Describe("ReconciliationService", func() {
	var (
		payments *mockPaymentService
		service  *reconciliation.Service
	)

	ginkgo.BeforeEach(func() {
		payments = newMockPaymentService()
		matcher := reconciliation.NewMatcher(30, 50)
		service = reconciliation.NewService(payments, matcher, 3, slog.Default())
	})

	ginkgo.Describe("MatchStatement", func() {
		ginkgo.It("scores statement rows against the pending payments", func() {
			payments.pending = []*paymodel.PendingPayment{
				{ID: 1, LoanID: 1, Amount: decimal.NewFromInt(1060), PayerName: "Siti Rahma", Reference: "TRX-0042", Status: paymodel.StatusPending},
			}
			statement := strings.NewReader("2025-04-10,Siti Rahma,1370012345678,TRX-0042,1060.00\n")

			result, rowErrors, err := service.MatchStatement(context.Background(), statement)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(rowErrors).To(gomega.BeEmpty())
			gomega.Expect(result.Matches).To(gomega.HaveLen(1))
			gomega.Expect(result.Matches[0].Best.Payment.ID).To(gomega.Equal(int64(1)))
			gomega.Expect(result.Matches[0].Best.AutoSelected).To(gomega.BeTrue())
		})

		ginkgo.It("returns parse failures alongside the matches", func() {
			payments.pending = []*paymodel.PendingPayment{
				{ID: 1, LoanID: 1, Amount: decimal.NewFromInt(500), PayerName: "Budi Santoso", Status: paymodel.StatusPending},
			}
			statement := strings.NewReader(
				"2025-04-10,Budi Santoso,995500112233,TRX-1,500.00\n" +
					"garbage-date,Ghost,1,TRX-2,10.00\n")

			result, rowErrors, err := service.MatchStatement(context.Background(), statement)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Matches).To(gomega.HaveLen(1))
			gomega.Expect(rowErrors).To(gomega.HaveLen(1))
			gomega.Expect(rowErrors[0].Line).To(gomega.Equal(2))
		})

		ginkgo.It("propagates a failure to load the candidate set", func() {
			payments.pendingErr = errors.New("database down")
			statement := strings.NewReader("2025-04-10,Someone,1,TRX-1,10.00\n")

			result, _, err := service.MatchStatement(context.Background(), statement)

			gomega.Expect(err).To(gomega.MatchError("database down"))
			gomega.Expect(result).To(gomega.BeNil())
		})

		ginkgo.It("writes nothing during a scoring pass", func() {
			payments.pending = []*paymodel.PendingPayment{
				{ID: 1, LoanID: 1, Amount: decimal.NewFromInt(500), PayerName: "Budi Santoso", Status: paymodel.StatusPending},
			}
			statement := strings.NewReader("2025-04-10,Budi Santoso,1,TRX-1,500.00\n")

			_, _, err := service.MatchStatement(context.Background(), statement)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(payments.approved).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("BatchApprove", func() {
		ginkgo.It("approves every confirmed payment and keeps input order", func() {
			ids := []int64{5, 3, 8, 1}

			summary := service.BatchApprove(context.Background(), ids, "ops@lender.io")

			gomega.Expect(summary.Total).To(gomega.Equal(4))
			gomega.Expect(summary.Approved).To(gomega.Equal(4))
			gomega.Expect(summary.Failed).To(gomega.Equal(0))
			gomega.Expect(summary.Results).To(gomega.HaveLen(4))
			for i, id := range ids {
				gomega.Expect(summary.Results[i].PaymentID).To(gomega.Equal(id))
				gomega.Expect(summary.Results[i].Approved).To(gomega.BeTrue())
			}
			gomega.Expect(payments.notes[5]).To(gomega.Equal("reconciliation batch"))
		})

		ginkgo.It("isolates failures so one bad payment never aborts the batch", func() {
			payments.approveErrs[3] = payment.ErrAlreadyProcessed

			summary := service.BatchApprove(context.Background(), []int64{5, 3, 8}, "ops@lender.io")

			gomega.Expect(summary.Approved).To(gomega.Equal(2))
			gomega.Expect(summary.Failed).To(gomega.Equal(1))
			gomega.Expect(summary.Results[1].Approved).To(gomega.BeFalse())
			gomega.Expect(summary.Results[1].Error).To(gomega.ContainSubstring("already approved or rejected"))
			gomega.Expect(summary.Results[2].Approved).To(gomega.BeTrue())
		})

		ginkgo.It("handles an empty batch without touching the payment service", func() {
			summary := service.BatchApprove(context.Background(), nil, "ops@lender.io")

			gomega.Expect(summary.Total).To(gomega.Equal(0))
			gomega.Expect(summary.Results).To(gomega.BeEmpty())
			gomega.Expect(payments.approved).To(gomega.BeEmpty())
		})

		ginkgo.It("processes batches larger than the worker pool", func() {
			ids := make([]int64, 20)
			for i := range ids {
				ids[i] = int64(i + 1)
			}

			summary := service.BatchApprove(context.Background(), ids, "ops@lender.io")

			gomega.Expect(summary.Approved).To(gomega.Equal(20))
			gomega.Expect(payments.approved).To(gomega.HaveLen(20))
		})
	})
})

var _ = ginkgo.Describe("BatchApproveDTO", func() {
	ginkgo.It("accepts a clean list of IDs", func() {
		dto := reconciliation.BatchApproveDTO{PaymentIDs: []int64{1, 2, 3}}
		gomega.Expect(dto.Validate()).To(gomega.Succeed())
	})

	ginkgo.It("rejects an empty list", func() {
		dto := reconciliation.BatchApproveDTO{}
		gomega.Expect(dto.Validate()).To(gomega.HaveOccurred())
	})

	ginkgo.It("rejects non-positive IDs", func() {
		dto := reconciliation.BatchApproveDTO{PaymentIDs: []int64{1, 0}}
		gomega.Expect(dto.Validate()).To(gomega.HaveOccurred())
	})

	ginkgo.It("rejects duplicate IDs", func() {
		dto := reconciliation.BatchApproveDTO{PaymentIDs: []int64{4, 4}}
		gomega.Expect(dto.Validate()).To(gomega.HaveOccurred())
	})
})
