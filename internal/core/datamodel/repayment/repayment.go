package repayment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusOverdue   = "OVERDUE"
)

const (
	FeeTypeInterest = "INTEREST"
	FeeTypeFixed    = "FIXED"
	FeeTypeCombined = "COMBINED"
)

const (
	FeeStatusActive = "ACTIVE"
	FeeStatusPaid   = "PAID"
	FeeStatusWaived = "WAIVED"
)

// LoanRepayment is one scheduled installment. PrincipalPaid tracks how much
// of the scheduled principal+interest has been satisfied; LateFeesPaid tracks
// how much of the assessed fees has been satisfied. Both are cumulative and
// must never exceed their counterparts.
type LoanRepayment struct {
	ID                int64            `gorm:"primaryKey"`
	LoanID            int64            `gorm:"column:loan_id;not null;index;uniqueIndex:idx_loan_installment,priority:1"`
	InstallmentNumber int              `gorm:"column:installment_number;not null;uniqueIndex:idx_loan_installment,priority:2"`
	DueDate           time.Time        `gorm:"column:due_date;not null;index"`
	PrincipalAmount   decimal.Decimal  `gorm:"column:principal_amount;type:numeric(18,2);not null"`
	InterestAmount    decimal.Decimal  `gorm:"column:interest_amount;type:numeric(18,2);not null"`
	Status            string           `gorm:"column:status;not null;default:PENDING;index"`
	ActualAmount      *decimal.Decimal `gorm:"column:actual_amount;type:numeric(18,2)"`
	PrincipalPaid     decimal.Decimal  `gorm:"column:principal_paid;type:numeric(18,2);not null;default:0"`
	LateFeeAmount     decimal.Decimal  `gorm:"column:late_fee_amount;type:numeric(18,2);not null;default:0"`
	LateFeesPaid      decimal.Decimal  `gorm:"column:late_fees_paid;type:numeric(18,2);not null;default:0"`
	DailyRate         decimal.Decimal  `gorm:"column:daily_rate;type:numeric(12,8);not null;default:0"`
	FeeType           string           `gorm:"column:fee_type;not null;default:INTEREST"`
	FixedFeeAmount    decimal.Decimal  `gorm:"column:fixed_fee_amount;type:numeric(18,2);not null;default:0"`
	FrequencyDays     int              `gorm:"column:frequency_days;not null;default:0"`
	PaidAt            *time.Time       `gorm:"column:paid_at"`
	PaymentType       *string          `gorm:"column:payment_type"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (LoanRepayment) TableName() string {
	return "loan_repayments"
}

// ScheduledAmount is the installment's total obligation before fees.
func (r *LoanRepayment) ScheduledAmount() decimal.Decimal {
	return r.PrincipalAmount.Add(r.InterestAmount)
}

// OutstandingScheduled is what remains of principal+interest.
func (r *LoanRepayment) OutstandingScheduled() decimal.Decimal {
	out := r.ScheduledAmount().Sub(r.PrincipalPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// OutstandingFees is what remains of assessed late fees.
func (r *LoanRepayment) OutstandingFees() decimal.Decimal {
	out := r.LateFeeAmount.Sub(r.LateFeesPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

func (r *LoanRepayment) IsSettled() bool {
	return r.OutstandingScheduled().IsZero() && r.OutstandingFees().IsZero()
}

// LateFeeRecord captures the output of one accrual run for one repayment.
// Append-only: waiving flips Status, it never rewrites amounts.
type LateFeeRecord struct {
	ID                   int64           `gorm:"primaryKey"`
	LoanRepaymentID      int64           `gorm:"column:loan_repayment_id;not null;index;uniqueIndex:idx_repayment_calc_date,priority:1"`
	CalculationDate      time.Time       `gorm:"column:calculation_date;type:date;not null;uniqueIndex:idx_repayment_calc_date,priority:2"`
	DaysOverdue          int             `gorm:"column:days_overdue;not null"`
	OutstandingPrincipal decimal.Decimal `gorm:"column:outstanding_principal;type:numeric(18,2);not null"`
	DailyRate            decimal.Decimal `gorm:"column:daily_rate;type:numeric(12,8);not null"`
	FeeAmount            decimal.Decimal `gorm:"column:fee_amount;type:numeric(18,2);not null"`
	CumulativeFees       decimal.Decimal `gorm:"column:cumulative_fees;type:numeric(18,2);not null"`
	FeeType              string          `gorm:"column:fee_type;not null"`
	FixedFeeAmount       decimal.Decimal `gorm:"column:fixed_fee_amount;type:numeric(18,2);not null;default:0"`
	FrequencyDays        int             `gorm:"column:frequency_days;not null;default:0"`
	Status               string          `gorm:"column:status;not null;default:ACTIVE"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (LateFeeRecord) TableName() string {
	return "late_fee_records"
}

const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// AccrualRun serializes the fee engine: one row per run date, claimed before
// any repayment is touched. The unique run_date constraint is what makes a
// second run for the same day either a no-op or a duplicate-run conflict.
type AccrualRun struct {
	ID               int64      `gorm:"primaryKey"`
	RunDate          time.Time  `gorm:"column:run_date;type:date;not null;uniqueIndex"`
	Status           string     `gorm:"column:status;not null;default:RUNNING"`
	TriggeredBy      string     `gorm:"column:triggered_by;not null"`
	RepaymentsSeen   int        `gorm:"column:repayments_seen;not null;default:0"`
	FeesAssessed     int        `gorm:"column:fees_assessed;not null;default:0"`
	RepaymentsClosed int        `gorm:"column:repayments_closed;not null;default:0"`
	StartedAt        time.Time  `gorm:"column:started_at;autoCreateTime"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
}

func (AccrualRun) TableName() string {
	return "accrual_runs"
}
