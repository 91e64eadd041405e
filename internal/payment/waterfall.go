package payment

import (
	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/shopspring/decimal"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

var ErrInvalidAllocation = internal.NewValidationError("payment amount must be positive", internal.ErrCodeInvalidAllocation)

// Breakdown is the result of allocating one payment against one repayment.
// FeePortion + PrincipalPortion + Excess always equals the paid amount: the
// waterfall never discards funds.
type Breakdown struct {
	FeePortion       decimal.Decimal `json:"fee_portion"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	Excess           decimal.Decimal `json:"excess"`
	TotalDue         decimal.Decimal `json:"total_due"`
	Completed        bool            `json:"completed"`
}

// Allocate runs the payment waterfall: outstanding late fees are satisfied
// first, then scheduled principal+interest; whatever remains is returned as
// excess for external handling. Pure and deterministic given the repayment
// snapshot.
func Allocate(rep *repmodel.LoanRepayment, paidAmount decimal.Decimal) (Breakdown, error) {
	if !paidAmount.IsPositive() {
		return Breakdown{}, ErrInvalidAllocation
	}

	outstandingFees := rep.OutstandingFees()
	feePortion := decimal.Min(paidAmount, outstandingFees)
	remaining := paidAmount.Sub(feePortion)

	remainingScheduled := rep.OutstandingScheduled()
	principalPortion := decimal.Min(remaining, remainingScheduled)
	excess := remaining.Sub(principalPortion)

	feesAfter := outstandingFees.Sub(feePortion)
	scheduledAfter := remainingScheduled.Sub(principalPortion)

	return Breakdown{
		FeePortion:       feePortion,
		PrincipalPortion: principalPortion,
		Excess:           excess,
		TotalDue:         scheduledAfter.Add(feesAfter),
		Completed:        scheduledAfter.IsZero() && feesAfter.IsZero(),
	}, nil
}
