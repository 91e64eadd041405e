package reconciliation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

// Scoring weights. The four signals sum to 100; amount equality dominates
// because a bank transfer for the exact pending amount is the strongest
// evidence available.
const (
	weightAmount      = 50
	weightBeneficiary = 30
	weightReference   = 10
	weightDate        = 10
)

// Candidate is one scored (transaction, pending payment) pairing.
type Candidate struct {
	Payment      *paymodel.PendingPayment `json:"payment"`
	Score        int                      `json:"score"`
	Reasons      []string                 `json:"reasons"`
	AutoSelected bool                     `json:"auto_selected"`
}

// TransactionMatch is the best-scoring candidate for one statement row.
type TransactionMatch struct {
	Transaction paymodel.BankTransaction `json:"transaction"`
	Best        *Candidate               `json:"best"`
}

// MatchResult is the full outcome of one scoring pass.
type MatchResult struct {
	Matches               []TransactionMatch         `json:"matches"`
	UnmatchedTransactions []paymodel.BankTransaction `json:"unmatched_transactions"`
}

// Matcher scores statement rows against pending payments. Scoring is pure:
// no state is read or written, so a pass can be repeated freely while the
// operator tweaks the batch.
type Matcher struct {
	floor         int
	autoThreshold int
}

func NewMatcher(floor, autoThreshold int) *Matcher {
	if floor <= 0 {
		floor = 30
	}
	if autoThreshold < floor {
		autoThreshold = 50
	}
	return &Matcher{floor: floor, autoThreshold: autoThreshold}
}

type scoredPair struct {
	txnIdx    int
	candidate *Candidate
}

// Match scores every pairing at or above the floor, then assigns pairs in
// descending score order so a strong match later in the statement is never
// lost to a weak one earlier. Each pending payment is claimed by at most one
// transaction; matches come back in statement order.
func (m *Matcher) Match(transactions []paymodel.BankTransaction, pending []*paymodel.PendingPayment) *MatchResult {
	var pairs []scoredPair
	for i, txn := range transactions {
		for _, p := range pending {
			score, reasons := Score(txn, p)
			if score < m.floor {
				continue
			}
			pairs = append(pairs, scoredPair{
				txnIdx: i,
				candidate: &Candidate{
					Payment:      p,
					Score:        score,
					Reasons:      reasons,
					AutoSelected: score >= m.autoThreshold,
				},
			})
		}
	}

	// stable sort keeps statement order as the tiebreak, so a rerun over the
	// same batch assigns identically
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].candidate.Score > pairs[j].candidate.Score
	})

	best := make(map[int]*Candidate, len(transactions))
	claimed := make(map[int64]bool, len(pending))
	for _, pair := range pairs {
		if best[pair.txnIdx] != nil || claimed[pair.candidate.Payment.ID] {
			continue
		}
		best[pair.txnIdx] = pair.candidate
		claimed[pair.candidate.Payment.ID] = true
	}

	result := &MatchResult{}
	for i, txn := range transactions {
		if c := best[i]; c != nil {
			result.Matches = append(result.Matches, TransactionMatch{Transaction: txn, Best: c})
		} else {
			result.UnmatchedTransactions = append(result.UnmatchedTransactions, txn)
		}
	}
	return result
}

// Score computes the match score in [0,100] for one pairing along with the
// human-readable reasons that contributed.
func Score(txn paymodel.BankTransaction, p *paymodel.PendingPayment) (int, []string) {
	score := 0
	var reasons []string

	if s, reason := amountScore(txn.Amount, p.Amount); s > 0 {
		score += s
		reasons = append(reasons, reason)
	}
	if s, reason := beneficiaryScore(txn.Beneficiary, p.PayerName); s > 0 {
		score += s
		reasons = append(reasons, reason)
	}
	if referenceContained(txn.RefCode, p.Reference) {
		score += weightReference
		reasons = append(reasons, "reference code contained in transaction")
	}
	if s, reason := dateScore(txn, p); s > 0 {
		score += s
		reasons = append(reasons, reason)
	}

	return score, reasons
}

func amountScore(txnAmount, paymentAmount decimal.Decimal) (int, string) {
	if txnAmount.Equal(paymentAmount) {
		return weightAmount, "amount matches exactly"
	}
	if paymentAmount.IsZero() {
		return 0, ""
	}
	diff := txnAmount.Sub(paymentAmount).Abs()
	ratio := diff.Div(paymentAmount)
	if ratio.LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		return weightAmount * 3 / 5, "amount within 1%"
	}
	return 0, ""
}

func beneficiaryScore(beneficiary, payerName string) (int, string) {
	a := normalizeTokens(beneficiary)
	b := normalizeTokens(payerName)
	if len(a) == 0 || len(b) == 0 {
		return 0, ""
	}

	if strings.Join(a, " ") == strings.Join(b, " ") {
		return weightBeneficiary, "beneficiary name matches exactly"
	}

	overlap := 0
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	for _, tok := range b {
		if set[tok] {
			overlap++
		}
	}

	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	s := weightBeneficiary * overlap / denom
	if s == 0 {
		return 0, ""
	}
	return s, fmt.Sprintf("beneficiary tokens overlap %d/%d", overlap, denom)
}

func referenceContained(refCode, reference string) bool {
	if refCode == "" || reference == "" {
		return false
	}
	return strings.Contains(strings.ToLower(refCode), strings.ToLower(reference)) ||
		strings.Contains(strings.ToLower(reference), strings.ToLower(refCode))
}

func dateScore(txn paymodel.BankTransaction, p *paymodel.PendingPayment) (int, string) {
	if txn.TransactionDate.IsZero() || p.CreatedAt.IsZero() {
		return 0, ""
	}
	diff := txn.TransactionDate.Sub(p.CreatedAt)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff.Hours() / 24)
	s := weightDate - 2*days
	if s <= 0 {
		return 0, ""
	}
	if days == 0 {
		return s, "transaction on same day as payment"
	}
	return s, fmt.Sprintf("dates %d day(s) apart", days)
}

// normalizeTokens lowercases and splits a name into alphanumeric tokens so
// punctuation and ordering noise do not defeat the comparison.
func normalizeTokens(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
