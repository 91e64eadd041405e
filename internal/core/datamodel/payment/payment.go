package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// PendingPayment is a submitted repayment awaiting operator review. Terminal
// once APPROVED or REJECTED; the status column is only ever changed through a
// compare-and-set against PENDING.
type PendingPayment struct {
	ID             int64            `gorm:"primaryKey"`
	LoanID         int64            `gorm:"column:loan_id;not null;index"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:numeric(18,2);not null"`
	Reference      string           `gorm:"column:reference;not null;index"`
	PayerName      string           `gorm:"column:payer_name"`
	PaymentMethod  string           `gorm:"column:payment_method"`
	OriginalAmount *decimal.Decimal `gorm:"column:original_amount;type:numeric(18,2)"`
	Status         string           `gorm:"column:status;not null;default:PENDING;index"`
	RejectReason   *string          `gorm:"column:reject_reason"`
	Notes          string           `gorm:"column:notes"`
	ProcessedBy    *string          `gorm:"column:processed_by"`
	ProcessedAt    *time.Time       `gorm:"column:processed_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (PendingPayment) TableName() string {
	return "pending_payments"
}

func (p *PendingPayment) IsPending() bool {
	return p.Status == StatusPending
}

// BankTransaction is one parsed bank-statement row. It is never persisted;
// it either matches a pending payment during a reconciliation run or is
// reported back as unmatched.
type BankTransaction struct {
	TransactionDate time.Time       `json:"transaction_date"`
	Beneficiary     string          `json:"beneficiary"`
	Account         string          `json:"account"`
	RefCode         string          `json:"ref_code"`
	Amount          decimal.Decimal `json:"amount"`
}
