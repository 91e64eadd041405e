package accrual_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/loan-servicing/internal/accrual"
	"github.com/frahmantamala/loan-servicing/internal/core/events"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

func TestAccrualService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Accrual Service Suite")
}

// Mock repository for testing
type mockAccrualRepository struct {
	runs       map[string]*repmodel.AccrualRun
	repayments map[int64]*repmodel.LoanRepayment
	feeRecords []*repmodel.LateFeeRecord
	nextRunID  int64
	nextRecID  int64

	claimError  error
	listError   error
	assessError error
}

func newMockAccrualRepository() *mockAccrualRepository {
	return &mockAccrualRepository{
		runs:       make(map[string]*repmodel.AccrualRun),
		repayments: make(map[int64]*repmodel.LoanRepayment),
		nextRunID:  1,
		nextRecID:  1,
	}
}

func (m *mockAccrualRepository) ClaimRun(ctx context.Context, runDate time.Time, triggeredBy string) (*repmodel.AccrualRun, bool, error) {
	if m.claimError != nil {
		return nil, false, m.claimError
	}
	key := runDate.Format("2006-01-02")
	if existing, ok := m.runs[key]; ok {
		if existing.Status == repmodel.RunStatusFailed {
			existing.Status = repmodel.RunStatusRunning
			existing.TriggeredBy = triggeredBy
			return existing, true, nil
		}
		return existing, false, nil
	}
	run := &repmodel.AccrualRun{
		ID:          m.nextRunID,
		RunDate:     runDate,
		Status:      repmodel.RunStatusRunning,
		TriggeredBy: triggeredBy,
	}
	m.nextRunID++
	m.runs[key] = run
	return run, true, nil
}

func (m *mockAccrualRepository) CompleteRun(ctx context.Context, run *repmodel.AccrualRun) error {
	m.runs[run.RunDate.Format("2006-01-02")] = run
	return nil
}

func (m *mockAccrualRepository) FailRun(ctx context.Context, runID int64) error {
	for _, run := range m.runs {
		if run.ID == runID {
			run.Status = repmodel.RunStatusFailed
		}
	}
	return nil
}

func (m *mockAccrualRepository) ListOverdue(ctx context.Context, runDate time.Time, limit, offset int) ([]*repmodel.LoanRepayment, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	var out []*repmodel.LoanRepayment
	for _, rep := range m.repayments {
		if rep.Status != repmodel.StatusCompleted && rep.DueDate.Before(runDate) {
			out = append(out, rep)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *mockAccrualRepository) LastFeeRecord(ctx context.Context, repaymentID int64) (*repmodel.LateFeeRecord, error) {
	var last *repmodel.LateFeeRecord
	for _, rec := range m.feeRecords {
		if rec.LoanRepaymentID != repaymentID {
			continue
		}
		if last == nil || rec.CalculationDate.After(last.CalculationDate) {
			last = rec
		}
	}
	return last, nil
}

func (m *mockAccrualRepository) AssessFee(ctx context.Context, repaymentID int64, newCumulative decimal.Decimal, record *repmodel.LateFeeRecord) error {
	if m.assessError != nil {
		return m.assessError
	}
	rep := m.repayments[repaymentID]
	rep.LateFeeAmount = newCumulative
	rep.Status = repmodel.StatusOverdue
	record.ID = m.nextRecID
	m.nextRecID++
	m.feeRecords = append(m.feeRecords, record)
	return nil
}

func (m *mockAccrualRepository) MarkRepaymentCompleted(ctx context.Context, repaymentID int64) error {
	m.repayments[repaymentID].Status = repmodel.StatusCompleted
	return nil
}

func (m *mockAccrualRepository) MarkRepaymentOverdue(ctx context.Context, repaymentID int64) error {
	m.repayments[repaymentID].Status = repmodel.StatusOverdue
	return nil
}

func (m *mockAccrualRepository) GetFeeRecord(ctx context.Context, id int64) (*repmodel.LateFeeRecord, error) {
	for _, rec := range m.feeRecords {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, accrual.ErrFeeRecordNotFound
}

func (m *mockAccrualRepository) WaiveFeeRecord(ctx context.Context, id int64) (bool, error) {
	for _, rec := range m.feeRecords {
		if rec.ID == id && rec.Status == repmodel.FeeStatusActive {
			rec.Status = repmodel.FeeStatusWaived
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccrualRepository) ListFeeRecords(ctx context.Context, filter accrual.FeeRecordFilter) ([]*repmodel.LateFeeRecord, error) {
	var out []*repmodel.LateFeeRecord
	for _, rec := range m.feeRecords {
		if filter.RepaymentID != nil && rec.LoanRepaymentID != *filter.RepaymentID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type recordingBus struct {
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) error {
	b.events = append(b.events, event)
	return nil
}

var _ = Describe("AccrualService", func() {
	var (
		repo    *mockAccrualRepository
		bus     *recordingBus
		service *accrual.Service
		ctx     context.Context
	)

	testLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	runDate := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		repo = newMockAccrualRepository()
		bus = &recordingBus{}
		service = accrual.NewService(repo, bus, 100, testLogger)
		ctx = context.Background()
	})

	seedRepayment := func(id int64, dueDate time.Time) *repmodel.LoanRepayment {
		rep := &repmodel.LoanRepayment{
			ID:              id,
			LoanID:          1,
			DueDate:         dueDate,
			PrincipalAmount: decimal.NewFromInt(1000),
			Status:          repmodel.StatusPending,
			DailyRate:       decimal.NewFromFloat(0.001),
			FeeType:         repmodel.FeeTypeInterest,
			LateFeeAmount:   decimal.Zero,
			LateFeesPaid:    decimal.Zero,
			PrincipalPaid:   decimal.Zero,
		}
		repo.repayments[id] = rep
		return rep
	}

	Describe("Run", func() {
		Context("with an overdue repayment", func() {
			It("should assess the fee, flag the repayment and record the run", func() {
				seedRepayment(1, runDate.AddDate(0, 0, -10))

				summary, err := service.Run(ctx, runDate, "System")

				Expect(err).ToNot(HaveOccurred())
				Expect(summary.RepaymentsSeen).To(Equal(1))
				Expect(summary.FeesAssessed).To(Equal(1))
				Expect(summary.TotalAssessed.Equal(decimal.NewFromInt(10))).To(BeTrue())

				rep := repo.repayments[1]
				Expect(rep.Status).To(Equal(repmodel.StatusOverdue))
				Expect(rep.LateFeeAmount.Equal(decimal.NewFromInt(10))).To(BeTrue())

				Expect(repo.feeRecords).To(HaveLen(1))
				Expect(repo.feeRecords[0].DaysOverdue).To(Equal(10))
				Expect(repo.runs[runDate.Format("2006-01-02")].Status).To(Equal(repmodel.RunStatusCompleted))
			})

			It("should publish a fee accrued event", func() {
				seedRepayment(1, runDate.AddDate(0, 0, -3))

				_, err := service.Run(ctx, runDate, "System")

				Expect(err).ToNot(HaveOccurred())
				Expect(bus.events).To(HaveLen(1))
				Expect(bus.events[0].EventType()).To(Equal(events.EventTypeFeeAccrued))
			})
		})

		Context("when the date was already processed", func() {
			It("should be a no-op reporting already_processed", func() {
				seedRepayment(1, runDate.AddDate(0, 0, -10))

				first, err := service.Run(ctx, runDate, "System")
				Expect(err).ToNot(HaveOccurred())
				Expect(first.FeesAssessed).To(Equal(1))

				second, err := service.Run(ctx, runDate, "System")
				Expect(err).ToNot(HaveOccurred())
				Expect(second.AlreadyProcessed).To(BeTrue())

				// the ledger did not move
				Expect(repo.feeRecords).To(HaveLen(1))
				Expect(repo.repayments[1].LateFeeAmount.Equal(decimal.NewFromInt(10))).To(BeTrue())
			})
		})

		Context("when another run for the date is still in flight", func() {
			It("should return ErrDuplicateRun", func() {
				key := runDate.Format("2006-01-02")
				repo.runs[key] = &repmodel.AccrualRun{RunDate: runDate, Status: repmodel.RunStatusRunning}

				_, err := service.Run(ctx, runDate, "System")

				Expect(err).To(MatchError(accrual.ErrDuplicateRun))
			})
		})

		Context("when a run fails mid-pass", func() {
			It("should mark the run failed so a retry can assess the date", func() {
				seedRepayment(1, runDate.AddDate(0, 0, -10))
				repo.listError = errors.New("storage unavailable")

				_, err := service.Run(ctx, runDate, "System")
				Expect(err).To(HaveOccurred())
				Expect(repo.runs[runDate.Format("2006-01-02")].Status).To(Equal(repmodel.RunStatusFailed))

				repo.listError = nil
				summary, err := service.Run(ctx, runDate, "System")

				Expect(err).ToNot(HaveOccurred())
				Expect(summary.AlreadyProcessed).To(BeFalse())
				Expect(summary.FeesAssessed).To(Equal(1))
				Expect(repo.feeRecords).To(HaveLen(1))
				Expect(repo.runs[runDate.Format("2006-01-02")].Status).To(Equal(repmodel.RunStatusCompleted))
			})

			It("should not double-assess repayments covered before the failure", func() {
				seedRepayment(1, runDate.AddDate(0, 0, -10))

				_, err := service.Run(ctx, runDate, "System")
				Expect(err).ToNot(HaveOccurred())

				// simulate a crash after the fees were written
				repo.runs[runDate.Format("2006-01-02")].Status = repmodel.RunStatusFailed

				summary, err := service.Run(ctx, runDate, "System")

				Expect(err).ToNot(HaveOccurred())
				Expect(summary.FeesAssessed).To(Equal(0))
				Expect(repo.feeRecords).To(HaveLen(1))
			})
		})

		Context("over consecutive days", func() {
			It("should accrue exactly one day per run", func() {
				seedRepayment(1, runDate.AddDate(0, 0, -10))

				_, err := service.Run(ctx, runDate, "System")
				Expect(err).ToNot(HaveOccurred())

				nextDay := runDate.AddDate(0, 0, 1)
				summary, err := service.Run(ctx, nextDay, "System")
				Expect(err).ToNot(HaveOccurred())

				Expect(summary.TotalAssessed.Equal(decimal.NewFromInt(1))).To(BeTrue())
				Expect(repo.repayments[1].LateFeeAmount.Equal(decimal.NewFromInt(11))).To(BeTrue())
			})
		})

		Context("with a satisfied repayment still flagged open", func() {
			It("should close it without assessing a fee", func() {
				rep := seedRepayment(1, runDate.AddDate(0, 0, -10))
				rep.PrincipalPaid = decimal.NewFromInt(1000)

				summary, err := service.Run(ctx, runDate, "System")

				Expect(err).ToNot(HaveOccurred())
				Expect(summary.RepaymentsClosed).To(Equal(1))
				Expect(summary.FeesAssessed).To(Equal(0))
				Expect(repo.repayments[1].Status).To(Equal(repmodel.StatusCompleted))
			})
		})

		Context("with a fixed-fee repayment between windows", func() {
			It("should flag it overdue without charging", func() {
				rep := seedRepayment(1, runDate.AddDate(0, 0, -3))
				rep.FeeType = repmodel.FeeTypeFixed
				rep.FixedFeeAmount = decimal.NewFromInt(50)
				rep.FrequencyDays = 7
				rep.DailyRate = decimal.Zero

				summary, err := service.Run(ctx, runDate, "System")

				Expect(err).ToNot(HaveOccurred())
				Expect(summary.FeesAssessed).To(Equal(0))
				Expect(repo.repayments[1].Status).To(Equal(repmodel.StatusOverdue))
				Expect(repo.feeRecords).To(BeEmpty())
			})
		})
	})

	Describe("WaiveFee", func() {
		BeforeEach(func() {
			seedRepayment(1, runDate.AddDate(0, 0, -10))
			_, err := service.Run(ctx, runDate, "System")
			Expect(err).ToNot(HaveOccurred())
			bus.events = nil
		})

		It("should flip an active record to waived and leave amounts alone", func() {
			before := repo.repayments[1].LateFeeAmount

			err := service.WaiveFee(ctx, repo.feeRecords[0].ID, "ops@lender.id")

			Expect(err).ToNot(HaveOccurred())
			Expect(repo.feeRecords[0].Status).To(Equal(repmodel.FeeStatusWaived))
			Expect(repo.feeRecords[0].FeeAmount.Equal(decimal.NewFromInt(10))).To(BeTrue())
			Expect(repo.repayments[1].LateFeeAmount.Equal(before)).To(BeTrue())

			Expect(bus.events).To(HaveLen(1))
			Expect(bus.events[0].EventType()).To(Equal(events.EventTypeFeeWaived))
		})

		It("should refuse to waive twice", func() {
			id := repo.feeRecords[0].ID
			Expect(service.WaiveFee(ctx, id, "ops@lender.id")).To(Succeed())

			err := service.WaiveFee(ctx, id, "ops@lender.id")

			Expect(err).To(MatchError(accrual.ErrFeeNotWaivable))
		})

		It("should return not found for an unknown record", func() {
			err := service.WaiveFee(ctx, 9999, "ops@lender.id")

			Expect(err).To(MatchError(accrual.ErrFeeRecordNotFound))
		})
	})
})
