package repayment

import (
	"time"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

type RepaymentView struct {
	ID                int64      `json:"id"`
	LoanID            int64      `json:"loan_id"`
	InstallmentNumber int        `json:"installment_number"`
	DueDate           time.Time  `json:"due_date"`
	PrincipalAmount   string     `json:"principal_amount"`
	InterestAmount    string     `json:"interest_amount"`
	Status            string     `json:"status"`
	PrincipalPaid     string     `json:"principal_paid"`
	LateFeeAmount     string     `json:"late_fee_amount"`
	LateFeesPaid      string     `json:"late_fees_paid"`
	OutstandingTotal  string     `json:"outstanding_total"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	PaymentType       *string    `json:"payment_type,omitempty"`
}

func ToView(rep *repmodel.LoanRepayment) *RepaymentView {
	return &RepaymentView{
		ID:                rep.ID,
		LoanID:            rep.LoanID,
		InstallmentNumber: rep.InstallmentNumber,
		DueDate:           rep.DueDate,
		PrincipalAmount:   rep.PrincipalAmount.String(),
		InterestAmount:    rep.InterestAmount.String(),
		Status:            rep.Status,
		PrincipalPaid:     rep.PrincipalPaid.String(),
		LateFeeAmount:     rep.LateFeeAmount.String(),
		LateFeesPaid:      rep.LateFeesPaid.String(),
		OutstandingTotal:  rep.OutstandingScheduled().Add(rep.OutstandingFees()).String(),
		PaidAt:            rep.PaidAt,
		PaymentType:       rep.PaymentType,
	}
}

func ToViews(repayments []*repmodel.LoanRepayment) []*RepaymentView {
	views := make([]*RepaymentView, len(repayments))
	for i, rep := range repayments {
		views[i] = ToView(rep)
	}
	return views
}

type TotalsView struct {
	LoanID               int64  `json:"loan_id"`
	Installments         int    `json:"installments"`
	Completed            int    `json:"completed"`
	Overdue              int    `json:"overdue"`
	OutstandingScheduled string `json:"outstanding_scheduled"`
	OutstandingFees      string `json:"outstanding_fees"`
	TotalPaid            string `json:"total_paid"`
}

func ToTotalsView(totals *LoanTotals) *TotalsView {
	return &TotalsView{
		LoanID:               totals.LoanID,
		Installments:         totals.Installments,
		Completed:            totals.Completed,
		Overdue:              totals.Overdue,
		OutstandingScheduled: totals.OutstandingScheduled.String(),
		OutstandingFees:      totals.OutstandingFees.String(),
		TotalPaid:            totals.TotalPaid.String(),
	}
}
