package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/loan-servicing/internal/repayment"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

type Repository struct {
	db *gorm.DB
}

func NewRepaymentRepository(db *gorm.DB) repayment.Repository {
	return &Repository{db: db}
}

func (r *Repository) ListByLoan(ctx context.Context, loanID int64) ([]*repmodel.LoanRepayment, error) {
	var repayments []*repmodel.LoanRepayment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment_number ASC").
		Find(&repayments).Error
	if err != nil {
		return nil, err
	}
	return repayments, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*repmodel.LoanRepayment, error) {
	var repayments []*repmodel.LoanRepayment
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("due_date ASC, loan_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&repayments).Error
	if err != nil {
		return nil, err
	}
	return repayments, nil
}

func (r *Repository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*repmodel.LoanRepayment, error) {
	var repayments []*repmodel.LoanRepayment
	err := r.db.WithContext(ctx).
		Where("due_date >= ? AND due_date <= ?", from, to).
		Order("due_date ASC, loan_id ASC").
		Find(&repayments).Error
	if err != nil {
		return nil, err
	}
	return repayments, nil
}
