package accrual

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/loan-servicing/internal/core/events"
	"github.com/shopspring/decimal"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

// Repository defines the data access the fee engine needs. LateFeeRecord
// rows are append-only; the only permitted mutation is the WAIVED status flip.
type Repository interface {
	// ClaimRun inserts the run row for runDate. When a row already exists it
	// returns the existing run and claimed=false, except a FAILED row, which
	// is reclaimed so the date can be retried; callers decide whether
	// claimed=false means no-op (completed) or conflict (still running).
	ClaimRun(ctx context.Context, runDate time.Time, triggeredBy string) (run *repmodel.AccrualRun, claimed bool, err error)
	CompleteRun(ctx context.Context, run *repmodel.AccrualRun) error
	// FailRun parks a claimed run as FAILED so a later trigger can reclaim it.
	FailRun(ctx context.Context, runID int64) error

	ListOverdue(ctx context.Context, runDate time.Time, limit, offset int) ([]*repmodel.LoanRepayment, error)
	LastFeeRecord(ctx context.Context, repaymentID int64) (*repmodel.LateFeeRecord, error)

	// AssessFee bumps the repayment's cumulative lateFeeAmount, flags it
	// OVERDUE and inserts the run's LateFeeRecord in one transaction.
	AssessFee(ctx context.Context, repaymentID int64, newCumulative decimal.Decimal, record *repmodel.LateFeeRecord) error
	MarkRepaymentCompleted(ctx context.Context, repaymentID int64) error
	MarkRepaymentOverdue(ctx context.Context, repaymentID int64) error

	GetFeeRecord(ctx context.Context, id int64) (*repmodel.LateFeeRecord, error)
	WaiveFeeRecord(ctx context.Context, id int64) (bool, error)
	ListFeeRecords(ctx context.Context, filter FeeRecordFilter) ([]*repmodel.LateFeeRecord, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type FeeRecordFilter struct {
	RepaymentID *int64
	LoanID      *int64
	Status      string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// RunSummary reports one engine pass. AlreadyProcessed means the date had a
// completed run and nothing was touched.
type RunSummary struct {
	RunDate          time.Time       `json:"run_date"`
	AlreadyProcessed bool            `json:"already_processed"`
	RepaymentsSeen   int             `json:"repayments_seen"`
	FeesAssessed     int             `json:"fees_assessed"`
	RepaymentsClosed int             `json:"repayments_closed"`
	TotalAssessed    decimal.Decimal `json:"total_assessed"`
}

// Service is the overdue-fee accrual engine. One run per calendar day; the
// run row claimed through the repository is what serializes concurrent
// triggers.
type Service struct {
	repo      Repository
	bus       EventPublisher
	batchSize int
	logger    *slog.Logger
}

func NewService(repo Repository, bus EventPublisher, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Service{
		repo:      repo,
		bus:       bus,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run executes one accrual pass for runDate over every repayment that is not
// COMPLETED and past due. Re-running a completed date is a safe no-op; a
// concurrent in-flight run for the same date fails with ErrDuplicateRun.
func (s *Service) Run(ctx context.Context, runDate time.Time, triggeredBy string) (*RunSummary, error) {
	day := DateOnly(runDate)

	run, claimed, err := s.repo.ClaimRun(ctx, day, triggeredBy)
	if err != nil {
		s.logger.Error("failed to claim accrual run", "error", err, "run_date", day)
		return nil, err
	}
	if !claimed {
		if run.Status == repmodel.RunStatusCompleted {
			s.logger.Info("accrual already processed for date", "run_date", day)
			return &RunSummary{RunDate: day, AlreadyProcessed: true, TotalAssessed: decimal.Zero}, nil
		}
		return nil, ErrDuplicateRun
	}

	summary := &RunSummary{RunDate: day, TotalAssessed: decimal.Zero}

	for offset := 0; ; offset += s.batchSize {
		repayments, err := s.repo.ListOverdue(ctx, day, s.batchSize, offset)
		if err != nil {
			s.logger.Error("failed to list overdue repayments", "error", err, "run_date", day)
			s.failRun(ctx, run.ID, day)
			return nil, err
		}
		if len(repayments) == 0 {
			break
		}

		for _, rep := range repayments {
			if err := s.accrueOne(ctx, rep, day, summary); err != nil {
				s.failRun(ctx, run.ID, day)
				return nil, err
			}
		}

		if len(repayments) < s.batchSize {
			break
		}
	}

	run.Status = repmodel.RunStatusCompleted
	run.RepaymentsSeen = summary.RepaymentsSeen
	run.FeesAssessed = summary.FeesAssessed
	run.RepaymentsClosed = summary.RepaymentsClosed
	if err := s.repo.CompleteRun(ctx, run); err != nil {
		s.logger.Error("failed to complete accrual run", "error", err, "run_date", day)
		s.failRun(ctx, run.ID, day)
		return nil, err
	}

	s.logger.Info("accrual run completed",
		"run_date", day,
		"repayments_seen", summary.RepaymentsSeen,
		"fees_assessed", summary.FeesAssessed,
		"repayments_closed", summary.RepaymentsClosed,
		"total_assessed", summary.TotalAssessed)

	return summary, nil
}

// failRun is best-effort: a RUNNING row left behind would lock the date out
// forever, a FAILED one is reclaimable.
func (s *Service) failRun(ctx context.Context, runID int64, day time.Time) {
	if err := s.repo.FailRun(ctx, runID); err != nil {
		s.logger.Error("failed to mark accrual run as failed", "error", err, "run_date", day)
	}
}

func (s *Service) accrueOne(ctx context.Context, rep *repmodel.LoanRepayment, day time.Time, summary *RunSummary) error {
	summary.RepaymentsSeen++

	// fully satisfied but not yet flagged: close it, no fee
	if rep.OutstandingScheduled().IsZero() {
		if err := s.repo.MarkRepaymentCompleted(ctx, rep.ID); err != nil {
			return err
		}
		summary.RepaymentsClosed++
		return nil
	}

	lastDaysOverdue := 0
	last, err := s.repo.LastFeeRecord(ctx, rep.ID)
	if err != nil {
		return err
	}
	if last != nil {
		// second idempotence guard under the run-level claim
		if DateOnly(last.CalculationDate).Equal(day) {
			s.logger.Debug("repayment already assessed for date", "loan_repayment_id", rep.ID, "run_date", day)
			return nil
		}
		lastDaysOverdue = last.DaysOverdue
	}

	assessment := Assess(rep, day, lastDaysOverdue)
	if assessment.DaysOverdue <= 0 {
		return nil
	}

	if assessment.FeeAmount.IsZero() {
		// overdue but no new fee this run (e.g. fixed fee between windows)
		if rep.Status == repmodel.StatusPending {
			if err := s.repo.MarkRepaymentOverdue(ctx, rep.ID); err != nil {
				return err
			}
		}
		return nil
	}

	newCumulative := rep.LateFeeAmount.Add(assessment.FeeAmount)
	record := &repmodel.LateFeeRecord{
		LoanRepaymentID:      rep.ID,
		CalculationDate:      day,
		DaysOverdue:          assessment.DaysOverdue,
		OutstandingPrincipal: assessment.OutstandingPrincipal,
		DailyRate:            rep.DailyRate,
		FeeAmount:            assessment.FeeAmount,
		CumulativeFees:       newCumulative,
		FeeType:              rep.FeeType,
		FixedFeeAmount:       rep.FixedFeeAmount,
		FrequencyDays:        rep.FrequencyDays,
		Status:               repmodel.FeeStatusActive,
	}

	if err := s.repo.AssessFee(ctx, rep.ID, newCumulative, record); err != nil {
		s.logger.Error("failed to assess fee", "error", err, "loan_repayment_id", rep.ID)
		return err
	}

	summary.FeesAssessed++
	summary.TotalAssessed = summary.TotalAssessed.Add(assessment.FeeAmount)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewFeeAccruedEvent(rep.ID, assessment.FeeAmount, newCumulative, day))
	}

	return nil
}

// WaiveFee flips the record to WAIVED. The repayment's cumulative
// lateFeeAmount is left untouched: the audit trail is append-only and any
// reversal happens through an explicit compensating adjustment.
func (s *Service) WaiveFee(ctx context.Context, lateFeeRecordID int64, actor string) error {
	record, err := s.repo.GetFeeRecord(ctx, lateFeeRecordID)
	if err != nil {
		return err
	}
	if record.Status != repmodel.FeeStatusActive {
		s.logger.Warn("waive rejected: record not active",
			"late_fee_record_id", lateFeeRecordID,
			"status", record.Status)
		return ErrFeeNotWaivable
	}

	waived, err := s.repo.WaiveFeeRecord(ctx, lateFeeRecordID)
	if err != nil {
		s.logger.Error("failed to waive fee record", "error", err, "late_fee_record_id", lateFeeRecordID)
		return err
	}
	if !waived {
		return ErrFeeNotWaivable
	}

	s.logger.Info("late fee waived", "late_fee_record_id", lateFeeRecordID, "waived_by", actor)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewFeeWaivedEvent(lateFeeRecordID, actor))
	}
	return nil
}

// ListFeeRecords returns fee records filtered by repayment, loan, status or
// calculation date range.
func (s *Service) ListFeeRecords(ctx context.Context, filter FeeRecordFilter) ([]*repmodel.LateFeeRecord, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.ListFeeRecords(ctx, filter)
}
