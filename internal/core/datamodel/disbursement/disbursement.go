package disbursement

import "time"

// Disbursement records one executed payout. The (application_id,
// reference_number) pair is unique so a retried disburse call with the same
// reference lands on the existing row instead of paying out twice.
type Disbursement struct {
	ID              int64     `gorm:"primaryKey"`
	ApplicationID   int64     `gorm:"column:application_id;not null;uniqueIndex:idx_app_reference,priority:1"`
	ReferenceNumber string    `gorm:"column:reference_number;not null;uniqueIndex:idx_app_reference,priority:2"`
	DisbursedBy     string    `gorm:"column:disbursed_by;not null"`
	Notes           string    `gorm:"column:notes"`
	BankOverride    bool      `gorm:"column:bank_override;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Disbursement) TableName() string {
	return "disbursements"
}
