package postgres

import (
	"context"

	"github.com/frahmantamala/loan-servicing/internal/application"
	"gorm.io/gorm"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
)

// ApplicationRepository implements application.Repository using GORM
type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) application.Repository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*appmodel.LoanApplication, error) {
	var app appmodel.LoanApplication
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, application.ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) History(ctx context.Context, applicationID int64) ([]*appmodel.ApplicationHistory, error) {
	var history []*appmodel.ApplicationHistory
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&history).Error
	return history, err
}

// TransitionStatus performs the status update and the history append in one
// transaction. The status update is guarded on the expected previous value so
// a concurrent transition loses cleanly instead of overwriting.
func (r *ApplicationRepository) TransitionStatus(ctx context.Context, id int64, previous, next, actor, notes string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&appmodel.LoanApplication{}).
			Where("id = ? AND status = ?", id, previous).
			Update("status", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return application.ErrTransitionConflict
		}

		prev := previous
		history := &appmodel.ApplicationHistory{
			ApplicationID:  id,
			PreviousStatus: &prev,
			NewStatus:      next,
			ChangedBy:      actor,
			Notes:          notes,
		}
		return tx.Create(history).Error
	})
}
