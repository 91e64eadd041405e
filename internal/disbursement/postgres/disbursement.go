package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/loan-servicing/internal/disbursement"

	dismodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/disbursement"
)

type Repository struct {
	db *gorm.DB
}

func NewDisbursementRepository(db *gorm.DB) disbursement.Repository {
	return &Repository{db: db}
}

// CreateIfAbsent inserts the disbursement unless the (application, reference)
// pair already exists. The unique index arbitrates concurrent retries: exactly
// one insert wins, the rest read back the winner's row.
func (r *Repository) CreateIfAbsent(ctx context.Context, d *dismodel.Disbursement) (*dismodel.Disbursement, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(d)
	if result.Error != nil {
		return nil, false, result.Error
	}

	if result.RowsAffected > 0 {
		return d, true, nil
	}

	var existing dismodel.Disbursement
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND reference_number = ?", d.ApplicationID, d.ReferenceNumber).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// Delete removes a payout row whose activation lost the status race.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&dismodel.Disbursement{}, id).Error
}

func (r *Repository) GetByApplication(ctx context.Context, applicationID int64) ([]*dismodel.Disbursement, error) {
	var items []*dismodel.Disbursement
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
