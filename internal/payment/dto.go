package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

// SubmitPaymentDTO is the request payload for recording a payment awaiting
// approval.
type SubmitPaymentDTO struct {
	LoanID         int64            `json:"loan_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Reference      string           `json:"reference"`
	PayerName      string           `json:"payer_name,omitempty"`
	PaymentMethod  string           `json:"payment_method,omitempty"`
	OriginalAmount *decimal.Decimal `json:"original_amount,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

func (dto SubmitPaymentDTO) Validate() error {
	if dto.LoanID <= 0 {
		return errors.New("loan_id is required")
	}
	if !dto.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if dto.Reference == "" {
		return errors.New("reference is required")
	}
	return nil
}

type ApprovePaymentDTO struct {
	Notes string `json:"notes,omitempty"`
}

type RejectPaymentDTO struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

func (dto RejectPaymentDTO) Validate() error {
	if dto.Reason == "" {
		return errors.New("reason is required when rejecting a payment")
	}
	return nil
}

type PaymentView struct {
	ID            int64      `json:"id"`
	LoanID        int64      `json:"loan_id"`
	Amount        string     `json:"amount"`
	Reference     string     `json:"reference"`
	PayerName     string     `json:"payer_name,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Status        string     `json:"status"`
	RejectReason  *string    `json:"reject_reason,omitempty"`
	ProcessedBy   *string    `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func ToView(p *paymodel.PendingPayment) *PaymentView {
	return &PaymentView{
		ID:            p.ID,
		LoanID:        p.LoanID,
		Amount:        p.Amount.String(),
		Reference:     p.Reference,
		PayerName:     p.PayerName,
		PaymentMethod: p.PaymentMethod,
		Status:        p.Status,
		RejectReason:  p.RejectReason,
		ProcessedBy:   p.ProcessedBy,
		ProcessedAt:   p.ProcessedAt,
		CreatedAt:     p.CreatedAt,
	}
}

func ToViews(payments []*paymodel.PendingPayment) []*PaymentView {
	views := make([]*PaymentView, len(payments))
	for i, p := range payments {
		views[i] = ToView(p)
	}
	return views
}

// ApprovalView is the success payload for an approval: the resolved payment
// plus the waterfall breakdown applied to the ledger.
type ApprovalView struct {
	Payment          *PaymentView `json:"payment"`
	RepaymentID      int64        `json:"repayment_id"`
	FeePortion       string       `json:"fee_portion"`
	PrincipalPortion string       `json:"principal_portion"`
	Excess           string       `json:"excess"`
	TotalDue         string       `json:"total_due"`
	Completed        bool         `json:"repayment_completed"`
}

func ToApprovalView(result *ApprovalResult) *ApprovalView {
	return &ApprovalView{
		Payment:          ToView(result.Payment),
		RepaymentID:      result.RepaymentID,
		FeePortion:       result.Breakdown.FeePortion.String(),
		PrincipalPortion: result.Breakdown.PrincipalPortion.String(),
		Excess:           result.Breakdown.Excess.String(),
		TotalDue:         result.Breakdown.TotalDue.String(),
		Completed:        result.Breakdown.Completed,
	}
}
