package reconciliation

import (
	"time"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/payment"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

type BatchApproveDTO struct {
	PaymentIDs []int64 `json:"payment_ids"`
}

func (dto BatchApproveDTO) Validate() error {
	if len(dto.PaymentIDs) == 0 {
		return internal.NewValidationError("payment_ids must not be empty", internal.ErrCodeValidationFailed)
	}
	seen := make(map[int64]bool, len(dto.PaymentIDs))
	for _, id := range dto.PaymentIDs {
		if id <= 0 {
			return internal.NewValidationError("payment_ids must be positive", internal.ErrCodeValidationFailed)
		}
		if seen[id] {
			return internal.NewValidationError("payment_ids must not repeat", internal.ErrCodeValidationFailed)
		}
		seen[id] = true
	}
	return nil
}

type TransactionView struct {
	TransactionDate time.Time `json:"transaction_date"`
	Beneficiary     string    `json:"beneficiary"`
	Account         string    `json:"account"`
	RefCode         string    `json:"ref_code"`
	Amount          string    `json:"amount"`
}

type CandidateView struct {
	Payment      *payment.PaymentView `json:"payment"`
	Score        int                  `json:"score"`
	Reasons      []string             `json:"reasons"`
	AutoSelected bool                 `json:"auto_selected"`
}

type MatchView struct {
	Transaction TransactionView `json:"transaction"`
	Best        *CandidateView  `json:"best"`
}

// MatchResponse is the scoring-pass payload: proposed pairings, statement
// rows nothing claimed, and rows the parser had to skip.
type MatchResponse struct {
	Matches               []MatchView       `json:"matches"`
	UnmatchedTransactions []TransactionView `json:"unmatched_transactions"`
	SkippedRows           []RowError        `json:"skipped_rows,omitempty"`
}

func toTransactionView(txn paymodel.BankTransaction) TransactionView {
	return TransactionView{
		TransactionDate: txn.TransactionDate,
		Beneficiary:     txn.Beneficiary,
		Account:         txn.Account,
		RefCode:         txn.RefCode,
		Amount:          txn.Amount.String(),
	}
}

func ToMatchResponse(result *MatchResult, rowErrors []RowError) *MatchResponse {
	resp := &MatchResponse{SkippedRows: rowErrors}

	for _, m := range result.Matches {
		view := MatchView{Transaction: toTransactionView(m.Transaction)}
		if m.Best != nil {
			view.Best = &CandidateView{
				Payment:      payment.ToView(m.Best.Payment),
				Score:        m.Best.Score,
				Reasons:      m.Best.Reasons,
				AutoSelected: m.Best.AutoSelected,
			}
		}
		resp.Matches = append(resp.Matches, view)
	}
	for _, txn := range result.UnmatchedTransactions {
		resp.UnmatchedTransactions = append(resp.UnmatchedTransactions, toTransactionView(txn))
	}
	return resp
}
