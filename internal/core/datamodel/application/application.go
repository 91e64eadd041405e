package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// Application statuses follow the origination lifecycle. The ledger only ever
// mutates Status through the state machine; every other field is owned by the
// origination subsystem.
const (
	StatusIncomplete          = "INCOMPLETE"
	StatusPendingAppFee       = "PENDING_APP_FEE"
	StatusPendingKYC          = "PENDING_KYC"
	StatusPendingApproval     = "PENDING_APPROVAL"
	StatusApproved            = "APPROVED"
	StatusRejected            = "REJECTED"
	StatusPendingSignature    = "PENDING_SIGNATURE"
	StatusPendingDisbursement = "PENDING_DISBURSEMENT"
	StatusActive              = "ACTIVE"
	StatusWithdrawn           = "WITHDRAWN"
)

type LoanApplication struct {
	ID                int64           `gorm:"primaryKey"`
	Status            string          `gorm:"column:status;not null;default:INCOMPLETE"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	TermMonths        int             `gorm:"column:term_months;not null"`
	InterestRate      decimal.Decimal `gorm:"column:interest_rate;type:numeric(12,8)"`
	OriginationFee    decimal.Decimal `gorm:"column:origination_fee;type:numeric(18,2)"`
	LegalFee          decimal.Decimal `gorm:"column:legal_fee;type:numeric(18,2)"`
	StampingFee       decimal.Decimal `gorm:"column:stamping_fee;type:numeric(18,2)"`
	ApplicationFee    decimal.Decimal `gorm:"column:application_fee;type:numeric(18,2)"`
	NetDisbursement   decimal.Decimal `gorm:"column:net_disbursement;type:numeric(18,2)"`
	BorrowerName      string          `gorm:"column:borrower_name"`
	BankName          *string         `gorm:"column:bank_name"`
	BankAccountNumber *string         `gorm:"column:bank_account_number"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (LoanApplication) TableName() string {
	return "loan_applications"
}

func (a *LoanApplication) HasBankDetails() bool {
	return a.BankName != nil && *a.BankName != "" &&
		a.BankAccountNumber != nil && *a.BankAccountNumber != ""
}

// ApplicationHistory is append-only: one row per transition, never updated or
// deleted. A nil PreviousStatus means the row records creation.
type ApplicationHistory struct {
	ID             int64     `gorm:"primaryKey"`
	ApplicationID  int64     `gorm:"column:application_id;not null;index"`
	PreviousStatus *string   `gorm:"column:previous_status"`
	NewStatus      string    `gorm:"column:new_status;not null"`
	ChangedBy      string    `gorm:"column:changed_by;not null"`
	Notes          string    `gorm:"column:notes"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ApplicationHistory) TableName() string {
	return "application_history"
}
