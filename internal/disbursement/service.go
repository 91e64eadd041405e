package disbursement

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/core/events"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
	dismodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/disbursement"
)

var (
	ErrNotDisbursable          = internal.NewConflictError("application is not awaiting disbursement", internal.ErrCodeInvalidTransition)
	ErrInsufficientBankDetails = internal.NewValidationError("application has no bank details on file", internal.ErrCodeMissingBankDetails)
)

// Repository persists executed disbursements. CreateIfAbsent must treat a
// duplicate (application, reference) pair as a successful no-op and hand back
// the existing row. Delete exists only to take back a row whose activation
// lost the status race; a committed disbursement is never deleted.
type Repository interface {
	CreateIfAbsent(ctx context.Context, d *dismodel.Disbursement) (*dismodel.Disbursement, bool, error)
	Delete(ctx context.Context, id int64) error
	GetByApplication(ctx context.Context, applicationID int64) ([]*dismodel.Disbursement, error)
}

// ApplicationService is the slice of the application workflow a disbursement
// touches: reading the current record and moving it to ACTIVE.
type ApplicationService interface {
	GetWithHistory(ctx context.Context, applicationID int64) (*appmodel.LoanApplication, []*appmodel.ApplicationHistory, error)
	Transition(ctx context.Context, applicationID int64, newStatus, actor, notes string) (*appmodel.LoanApplication, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Result reports one disburse call. Replayed carries the idempotent-retry
// outcome: the reference was already recorded and nothing was paid out again.
type Result struct {
	Disbursement *dismodel.Disbursement
	Application  *appmodel.LoanApplication
	Replayed     bool
}

type Service struct {
	repo         Repository
	applications ApplicationService
	bus          EventPublisher
	logger       *slog.Logger
}

func NewService(repo Repository, applications ApplicationService, bus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		applications: applications,
		bus:          bus,
		logger:       logger,
	}
}

// Disburse pays out an application awaiting disbursement and activates it.
// Missing bank details block the payout unless the caller overrides; a retry
// with the same reference number replays the recorded outcome instead of
// paying out twice.
func (s *Service) Disburse(ctx context.Context, dto DisburseDTO, actor string) (*Result, error) {
	app, _, err := s.applications.GetWithHistory(ctx, dto.ApplicationID)
	if err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(dto.ReferenceNumber)
	if reference == "" {
		reference = uuid.NewString()
	}

	if app.Status == appmodel.StatusActive {
		// an activated loan can only mean a prior disbursement went through;
		// surface that row so the retry is a clean no-op
		if existing, err := s.findByReference(ctx, dto.ApplicationID, reference); err != nil {
			return nil, err
		} else if existing != nil {
			s.logger.Info("disbursement replayed on active loan",
				"application_id", dto.ApplicationID, "reference", reference)
			return &Result{Disbursement: existing, Application: app, Replayed: true}, nil
		}
		return nil, ErrNotDisbursable
	}

	if app.Status != appmodel.StatusPendingDisbursement {
		s.logger.Warn("disbursement refused, wrong status",
			"application_id", dto.ApplicationID, "status", app.Status)
		return nil, ErrNotDisbursable
	}

	if !app.HasBankDetails() && !dto.OverrideBankCheck {
		s.logger.Warn("disbursement blocked, missing bank details",
			"application_id", dto.ApplicationID)
		return nil, ErrInsufficientBankDetails
	}

	d := &dismodel.Disbursement{
		ApplicationID:   dto.ApplicationID,
		ReferenceNumber: reference,
		DisbursedBy:     actor,
		Notes:           dto.Notes,
		BankOverride:    dto.OverrideBankCheck && !app.HasBankDetails(),
	}

	stored, created, err := s.repo.CreateIfAbsent(ctx, d)
	if err != nil {
		s.logger.Error("failed to record disbursement", "error", err, "application_id", dto.ApplicationID)
		return nil, err
	}
	if !created {
		s.logger.Info("disbursement replayed",
			"application_id", dto.ApplicationID, "reference", reference)
		return &Result{Disbursement: stored, Application: app, Replayed: true}, nil
	}

	activated, err := s.applications.Transition(ctx, dto.ApplicationID, appmodel.StatusActive, actor, "loan disbursed")
	if err != nil {
		// activation lost the status race; the payout row must go with it or
		// a retry of this reference would replay a disbursement that never
		// happened
		if delErr := s.repo.Delete(ctx, stored.ID); delErr != nil {
			s.logger.Error("failed to roll back disbursement record",
				"error", delErr, "application_id", dto.ApplicationID, "reference", reference)
		}
		s.logger.Error("activation failed, disbursement rolled back",
			"error", err, "application_id", dto.ApplicationID, "reference", reference)
		return nil, err
	}

	s.logger.Info("loan disbursed",
		"application_id", dto.ApplicationID,
		"reference", reference,
		"net_disbursement", activated.NetDisbursement.String(),
		"bank_override", stored.BankOverride,
		"disbursed_by", actor)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewLoanDisbursedEvent(
			dto.ApplicationID, reference, activated.NetDisbursement, actor))
	}

	return &Result{Disbursement: stored, Application: activated}, nil
}

func (s *Service) ListByApplication(ctx context.Context, applicationID int64) ([]*dismodel.Disbursement, error) {
	return s.repo.GetByApplication(ctx, applicationID)
}

func (s *Service) findByReference(ctx context.Context, applicationID int64, reference string) (*dismodel.Disbursement, error) {
	existing, err := s.repo.GetByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if d.ReferenceNumber == reference {
			return d, nil
		}
	}
	return nil, nil
}
