package accrual

import (
	"time"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/shopspring/decimal"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

var (
	ErrDuplicateRun      = internal.NewConflictError("an accrual run for this date is already in progress", internal.ErrCodeDuplicateRun)
	ErrFeeRecordNotFound = internal.NewNotFoundError("late fee record not found", internal.ErrCodeFeeRecordNotFound)
	ErrFeeNotWaivable    = internal.NewConflictError("late fee record is not active", internal.ErrCodeAlreadyProcessed)
)

// DateOnly truncates t to midnight UTC so day arithmetic is stable across
// timezones and run times.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysOverdue is the whole number of days runDate lies past dueDate.
func DaysOverdue(runDate, dueDate time.Time) int {
	return int(DateOnly(runDate).Sub(DateOnly(dueDate)).Hours() / 24)
}

// Assessment is the outcome of one accrual computation for one repayment.
type Assessment struct {
	DaysOverdue          int
	OutstandingPrincipal decimal.Decimal
	FeeAmount            decimal.Decimal
}

// interestFee accrues only the delta since the previous run so repeated runs
// never double-count a day.
func interestFee(outstanding, dailyRate decimal.Decimal, daysOverdue, lastDaysOverdue int) decimal.Decimal {
	deltaDays := daysOverdue - lastDaysOverdue
	if deltaDays <= 0 {
		return decimal.Zero
	}
	return outstanding.Mul(dailyRate).Mul(decimal.NewFromInt(int64(deltaDays)))
}

// fixedFee charges the flat amount once per frequencyDays window. The first
// charge lands when daysOverdue reaches frequencyDays, never on day zero. A
// catch-up run after a gap charges every window crossed since the last run.
func fixedFee(amount decimal.Decimal, frequencyDays, daysOverdue, lastDaysOverdue int) decimal.Decimal {
	if frequencyDays <= 0 || amount.IsZero() {
		return decimal.Zero
	}
	chargesDue := daysOverdue / frequencyDays
	chargesApplied := lastDaysOverdue / frequencyDays
	if chargesDue <= chargesApplied {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(chargesDue - chargesApplied)))
}

// Assess computes the fee owed for one overdue repayment as of runDate.
// lastDaysOverdue is the DaysOverdue recorded by the most recent prior
// accrual run for this repayment, or zero when none exists. The computation
// is pure: it touches no state and is safe to re-run.
func Assess(rep *repmodel.LoanRepayment, runDate time.Time, lastDaysOverdue int) Assessment {
	days := DaysOverdue(runDate, rep.DueDate)
	outstanding := rep.OutstandingScheduled()

	a := Assessment{
		DaysOverdue:          days,
		OutstandingPrincipal: outstanding,
		FeeAmount:            decimal.Zero,
	}
	if days <= 0 || outstanding.IsZero() {
		return a
	}

	switch rep.FeeType {
	case repmodel.FeeTypeInterest:
		a.FeeAmount = interestFee(outstanding, rep.DailyRate, days, lastDaysOverdue)
	case repmodel.FeeTypeFixed:
		a.FeeAmount = fixedFee(rep.FixedFeeAmount, rep.FrequencyDays, days, lastDaysOverdue)
	case repmodel.FeeTypeCombined:
		a.FeeAmount = interestFee(outstanding, rep.DailyRate, days, lastDaysOverdue).
			Add(fixedFee(rep.FixedFeeAmount, rep.FrequencyDays, days, lastDaysOverdue))
	}

	return a
}
