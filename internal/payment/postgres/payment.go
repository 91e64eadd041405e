package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/loan-servicing/internal/payment"
	"gorm.io/gorm"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

// PaymentRepository implements payment.Repository using GORM
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *paymodel.PendingPayment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*paymodel.PendingPayment, error) {
	var p paymodel.PendingPayment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*paymodel.PendingPayment, error) {
	q := r.db.WithContext(ctx).Model(&paymodel.PendingPayment{})

	if filter.LoanID != nil {
		q = q.Where("loan_id = ?", *filter.LoanID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var payments []*paymodel.PendingPayment
	err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListPending(ctx context.Context) ([]*paymodel.PendingPayment, error) {
	var payments []*paymodel.PendingPayment
	err := r.db.WithContext(ctx).
		Where("status = ?", paymodel.StatusPending).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

// Approve flips the payment PENDING → APPROVED with a compare-and-set and
// applies the allocation to the loan's earliest open repayment, all in one
// transaction. RowsAffected == 0 on the flip means another actor resolved
// the payment first.
func (r *PaymentRepository) Approve(ctx context.Context, paymentID int64, actor string, apply payment.ApplyFunc) (*payment.ApprovalResult, error) {
	var result *payment.ApprovalResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&paymodel.PendingPayment{}).
			Where("id = ? AND status = ?", paymentID, paymodel.StatusPending).
			Updates(map[string]interface{}{
				"status":       paymodel.StatusApproved,
				"processed_by": actor,
				"processed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// distinguish missing from already resolved
			var count int64
			if err := tx.Model(&paymodel.PendingPayment{}).Where("id = ?", paymentID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return payment.ErrPaymentNotFound
			}
			return payment.ErrAlreadyProcessed
		}

		var p paymodel.PendingPayment
		if err := tx.Where("id = ?", paymentID).First(&p).Error; err != nil {
			return err
		}

		var rep repmodel.LoanRepayment
		err := tx.Where("loan_id = ? AND status <> ?", p.LoanID, repmodel.StatusCompleted).
			Order("installment_number ASC").
			First(&rep).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return payment.ErrNoOpenRepayment
			}
			return err
		}

		breakdown, err := apply(&rep, p.Amount)
		if err != nil {
			return err
		}

		actualAmount := p.Amount
		if rep.ActualAmount != nil {
			actualAmount = rep.ActualAmount.Add(p.Amount)
		}

		updates := map[string]interface{}{
			"late_fees_paid": rep.LateFeesPaid.Add(breakdown.FeePortion),
			"principal_paid": rep.PrincipalPaid.Add(breakdown.PrincipalPortion),
			"actual_amount":  actualAmount,
			"payment_type":   p.PaymentMethod,
			"updated_at":     now,
		}
		if breakdown.Completed {
			updates["status"] = repmodel.StatusCompleted
			updates["paid_at"] = now
		}

		if err := tx.Model(&repmodel.LoanRepayment{}).Where("id = ?", rep.ID).Updates(updates).Error; err != nil {
			return err
		}

		result = &payment.ApprovalResult{
			Payment:     &p,
			RepaymentID: rep.ID,
			Breakdown:   breakdown,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject flips the payment PENDING → REJECTED with the same compare-and-set;
// the ledger is untouched.
func (r *PaymentRepository) Reject(ctx context.Context, paymentID int64, actor, reason, notes string) (*paymodel.PendingPayment, error) {
	var p paymodel.PendingPayment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&paymodel.PendingPayment{}).
			Where("id = ? AND status = ?", paymentID, paymodel.StatusPending).
			Updates(map[string]interface{}{
				"status":        paymodel.StatusRejected,
				"reject_reason": reason,
				"processed_by":  actor,
				"processed_at":  now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&paymodel.PendingPayment{}).Where("id = ?", paymentID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return payment.ErrPaymentNotFound
			}
			return payment.ErrAlreadyProcessed
		}

		return tx.Where("id = ?", paymentID).First(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
