package reconciliation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

// statement columns, in order
const (
	colDate = iota
	colBeneficiary
	colAccount
	colRefCode
	colAmount
	statementColumns
)

var statementDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
}

// RowError records why one statement row was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ParseStatement reads a bank-statement CSV. Malformed rows are reported and
// skipped; a bad row never aborts the batch. A header row is detected by a
// non-numeric amount column on line 1.
func ParseStatement(r io.Reader) ([]paymodel.BankTransaction, []RowError) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		transactions []paymodel.BankTransaction
		rowErrors    []RowError
		line         int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if len(record) < statementColumns {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", statementColumns, len(record))})
			continue
		}

		txn, err := parseRow(record)
		if err != nil {
			if line == 1 && looksLikeHeader(record) {
				continue
			}
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		transactions = append(transactions, txn)
	}

	return transactions, rowErrors
}

func parseRow(record []string) (paymodel.BankTransaction, error) {
	var txn paymodel.BankTransaction

	date, err := parseStatementDate(strings.TrimSpace(record[colDate]))
	if err != nil {
		return txn, err
	}

	rawAmount := strings.ReplaceAll(strings.TrimSpace(record[colAmount]), ",", "")
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return txn, fmt.Errorf("invalid amount %q", record[colAmount])
	}
	if amount.IsNegative() {
		return txn, fmt.Errorf("negative amount %q", record[colAmount])
	}

	txn.TransactionDate = date
	txn.Beneficiary = strings.TrimSpace(record[colBeneficiary])
	txn.Account = strings.TrimSpace(record[colAccount])
	txn.RefCode = strings.TrimSpace(record[colRefCode])
	txn.Amount = amount
	return txn, nil
}

func parseStatementDate(s string) (time.Time, error) {
	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func looksLikeHeader(record []string) bool {
	_, err := decimal.NewFromString(strings.TrimSpace(record[colAmount]))
	return err != nil
}
