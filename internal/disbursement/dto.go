package disbursement

import (
	"time"

	"github.com/frahmantamala/loan-servicing/internal"

	dismodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/disbursement"
)

type DisburseDTO struct {
	ApplicationID     int64  `json:"-"`
	ReferenceNumber   string `json:"reference_number"`
	OverrideBankCheck bool   `json:"override_bank_check"`
	Notes             string `json:"notes"`
}

func (dto DisburseDTO) Validate() error {
	if dto.ApplicationID <= 0 {
		return internal.NewValidationError("application id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type DisbursementView struct {
	ID              int64     `json:"id"`
	ApplicationID   int64     `json:"application_id"`
	ReferenceNumber string    `json:"reference_number"`
	DisbursedBy     string    `json:"disbursed_by"`
	Notes           string    `json:"notes,omitempty"`
	BankOverride    bool      `json:"bank_override"`
	CreatedAt       time.Time `json:"created_at"`
}

func ToView(d *dismodel.Disbursement) *DisbursementView {
	return &DisbursementView{
		ID:              d.ID,
		ApplicationID:   d.ApplicationID,
		ReferenceNumber: d.ReferenceNumber,
		DisbursedBy:     d.DisbursedBy,
		Notes:           d.Notes,
		BankOverride:    d.BankOverride,
		CreatedAt:       d.CreatedAt,
	}
}

func ToViews(items []*dismodel.Disbursement) []*DisbursementView {
	views := make([]*DisbursementView, len(items))
	for i, d := range items {
		views[i] = ToView(d)
	}
	return views
}

// ResultView is the disburse payload: the recorded payout, the application's
// resulting status, and whether this call replayed an earlier disbursement.
type ResultView struct {
	Disbursement      *DisbursementView `json:"disbursement"`
	ApplicationStatus string            `json:"application_status"`
	Replayed          bool              `json:"replayed"`
}

func ToResultView(result *Result) *ResultView {
	return &ResultView{
		Disbursement:      ToView(result.Disbursement),
		ApplicationStatus: result.Application.Status,
		Replayed:          result.Replayed,
	}
}
