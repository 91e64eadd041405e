package accrual

import (
	"errors"
	"time"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

// RunAccrualDTO triggers an engine pass for the given date (today when empty).
type RunAccrualDTO struct {
	RunDate string `json:"run_date,omitempty"`
}

func (dto RunAccrualDTO) ParseDate(now time.Time) (time.Time, error) {
	if dto.RunDate == "" {
		return DateOnly(now), nil
	}
	parsed, err := time.Parse("2006-01-02", dto.RunDate)
	if err != nil {
		return time.Time{}, errors.New("run_date must be formatted YYYY-MM-DD")
	}
	return parsed, nil
}

type FeeRecordView struct {
	ID                   int64     `json:"id"`
	LoanRepaymentID      int64     `json:"loan_repayment_id"`
	CalculationDate      string    `json:"calculation_date"`
	DaysOverdue          int       `json:"days_overdue"`
	OutstandingPrincipal string    `json:"outstanding_principal"`
	DailyRate            string    `json:"daily_rate"`
	FeeAmount            string    `json:"fee_amount"`
	CumulativeFees       string    `json:"cumulative_fees"`
	FeeType              string    `json:"fee_type"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

func ToFeeRecordView(rec *repmodel.LateFeeRecord) FeeRecordView {
	return FeeRecordView{
		ID:                   rec.ID,
		LoanRepaymentID:      rec.LoanRepaymentID,
		CalculationDate:      rec.CalculationDate.Format("2006-01-02"),
		DaysOverdue:          rec.DaysOverdue,
		OutstandingPrincipal: rec.OutstandingPrincipal.String(),
		DailyRate:            rec.DailyRate.String(),
		FeeAmount:            rec.FeeAmount.String(),
		CumulativeFees:       rec.CumulativeFees.String(),
		FeeType:              rec.FeeType,
		Status:               rec.Status,
		CreatedAt:            rec.CreatedAt,
	}
}

func ToFeeRecordViews(records []*repmodel.LateFeeRecord) []FeeRecordView {
	views := make([]FeeRecordView, len(records))
	for i, rec := range records {
		views[i] = ToFeeRecordView(rec)
	}
	return views
}
