package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/loan-servicing/internal/accrual"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

// AccrualRepository implements accrual.Repository using GORM
type AccrualRepository struct {
	db *gorm.DB
}

func NewAccrualRepository(db *gorm.DB) accrual.Repository {
	return &AccrualRepository{db: db}
}

// ClaimRun relies on the unique run_date index: the first writer inserts the
// row, later writers read back whatever state the first left behind.
func (r *AccrualRepository) ClaimRun(ctx context.Context, runDate time.Time, triggeredBy string) (*repmodel.AccrualRun, bool, error) {
	run := &repmodel.AccrualRun{
		RunDate:     runDate,
		Status:      repmodel.RunStatusRunning,
		TriggeredBy: triggeredBy,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "run_date"}}, DoNothing: true}).
		Create(run)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return run, true, nil
	}

	var existing repmodel.AccrualRun
	if err := r.db.WithContext(ctx).Where("run_date = ?", runDate).First(&existing).Error; err != nil {
		return nil, false, err
	}

	// a FAILED run is up for grabs; the CAS arbitrates concurrent reclaims
	if existing.Status == repmodel.RunStatusFailed {
		reclaim := r.db.WithContext(ctx).Model(&repmodel.AccrualRun{}).
			Where("id = ? AND status = ?", existing.ID, repmodel.RunStatusFailed).
			Updates(map[string]interface{}{
				"status":       repmodel.RunStatusRunning,
				"triggered_by": triggeredBy,
			})
		if reclaim.Error != nil {
			return nil, false, reclaim.Error
		}
		if reclaim.RowsAffected == 1 {
			existing.Status = repmodel.RunStatusRunning
			existing.TriggeredBy = triggeredBy
			return &existing, true, nil
		}
		if err := r.db.WithContext(ctx).Where("run_date = ?", runDate).First(&existing).Error; err != nil {
			return nil, false, err
		}
	}
	return &existing, false, nil
}

// FailRun parks the run so a later trigger for the same date can reclaim it.
func (r *AccrualRepository) FailRun(ctx context.Context, runID int64) error {
	return r.db.WithContext(ctx).Model(&repmodel.AccrualRun{}).
		Where("id = ?", runID).
		Update("status", repmodel.RunStatusFailed).Error
}

func (r *AccrualRepository) CompleteRun(ctx context.Context, run *repmodel.AccrualRun) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&repmodel.AccrualRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":            run.Status,
			"repayments_seen":   run.RepaymentsSeen,
			"fees_assessed":     run.FeesAssessed,
			"repayments_closed": run.RepaymentsClosed,
			"completed_at":      now,
		}).Error
}

func (r *AccrualRepository) ListOverdue(ctx context.Context, runDate time.Time, limit, offset int) ([]*repmodel.LoanRepayment, error) {
	var repayments []*repmodel.LoanRepayment
	err := r.db.WithContext(ctx).
		Where("status <> ? AND due_date < ?", repmodel.StatusCompleted, runDate).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&repayments).Error
	return repayments, err
}

func (r *AccrualRepository) LastFeeRecord(ctx context.Context, repaymentID int64) (*repmodel.LateFeeRecord, error) {
	var record repmodel.LateFeeRecord
	err := r.db.WithContext(ctx).
		Where("loan_repayment_id = ?", repaymentID).
		Order("calculation_date DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *AccrualRepository) AssessFee(ctx context.Context, repaymentID int64, newCumulative decimal.Decimal, record *repmodel.LateFeeRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&repmodel.LoanRepayment{}).
			Where("id = ?", repaymentID).
			Updates(map[string]interface{}{
				"late_fee_amount": newCumulative,
				"status":          repmodel.StatusOverdue,
				"updated_at":      time.Now(),
			}).Error
		if err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

func (r *AccrualRepository) MarkRepaymentCompleted(ctx context.Context, repaymentID int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&repmodel.LoanRepayment{}).
		Where("id = ?", repaymentID).
		Updates(map[string]interface{}{
			"status":     repmodel.StatusCompleted,
			"paid_at":    now,
			"updated_at": now,
		}).Error
}

func (r *AccrualRepository) MarkRepaymentOverdue(ctx context.Context, repaymentID int64) error {
	return r.db.WithContext(ctx).Model(&repmodel.LoanRepayment{}).
		Where("id = ? AND status = ?", repaymentID, repmodel.StatusPending).
		Update("status", repmodel.StatusOverdue).Error
}

func (r *AccrualRepository) GetFeeRecord(ctx context.Context, id int64) (*repmodel.LateFeeRecord, error) {
	var record repmodel.LateFeeRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accrual.ErrFeeRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// WaiveFeeRecord is the only status mutation the append-only fee log allows.
func (r *AccrualRepository) WaiveFeeRecord(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&repmodel.LateFeeRecord{}).
		Where("id = ? AND status = ?", id, repmodel.FeeStatusActive).
		Update("status", repmodel.FeeStatusWaived)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AccrualRepository) ListFeeRecords(ctx context.Context, filter accrual.FeeRecordFilter) ([]*repmodel.LateFeeRecord, error) {
	q := r.db.WithContext(ctx).Model(&repmodel.LateFeeRecord{})

	if filter.RepaymentID != nil {
		q = q.Where("loan_repayment_id = ?", *filter.RepaymentID)
	}
	if filter.LoanID != nil {
		q = q.Where("loan_repayment_id IN (?)",
			r.db.Model(&repmodel.LoanRepayment{}).Select("id").Where("loan_id = ?", *filter.LoanID))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("calculation_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("calculation_date <= ?", *filter.To)
	}

	var records []*repmodel.LateFeeRecord
	err := q.Order("calculation_date DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&records).Error
	return records, err
}
