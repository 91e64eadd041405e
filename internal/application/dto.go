package application

import (
	"errors"
	"time"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
)

// TransitionDTO is the request payload for an explicit status transition.
type TransitionDTO struct {
	NewStatus string `json:"new_status"`
	Notes     string `json:"notes,omitempty"`
}

func (dto TransitionDTO) Validate() error {
	if dto.NewStatus == "" {
		return errors.New("new_status is required")
	}
	return nil
}

// AdvanceDTO carries optional operator notes for a one-step advance.
type AdvanceDTO struct {
	Notes string `json:"notes,omitempty"`
}

type HistoryEntryView struct {
	ID             int64     `json:"id"`
	PreviousStatus *string   `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedBy      string    `json:"changed_by"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ApplicationView struct {
	ID              int64              `json:"id"`
	Status          string             `json:"status"`
	Amount          string             `json:"amount"`
	TermMonths      int                `json:"term_months"`
	InterestRate    string             `json:"interest_rate"`
	NetDisbursement string             `json:"net_disbursement"`
	BorrowerName    string             `json:"borrower_name"`
	HasBankDetails  bool               `json:"has_bank_details"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	History         []HistoryEntryView `json:"history,omitempty"`
}

func ToView(app *appmodel.LoanApplication, history []*appmodel.ApplicationHistory) *ApplicationView {
	view := &ApplicationView{
		ID:              app.ID,
		Status:          app.Status,
		Amount:          app.Amount.String(),
		TermMonths:      app.TermMonths,
		InterestRate:    app.InterestRate.String(),
		NetDisbursement: app.NetDisbursement.String(),
		BorrowerName:    app.BorrowerName,
		HasBankDetails:  app.HasBankDetails(),
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}

	for _, h := range history {
		view.History = append(view.History, HistoryEntryView{
			ID:             h.ID,
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
			ChangedBy:      h.ChangedBy,
			Notes:          h.Notes,
			CreatedAt:      h.CreatedAt,
		})
	}

	return view
}
