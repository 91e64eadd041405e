package application

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/loan-servicing/internal/core/events"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
)

// Repository defines the data access methods for applications and their
// history log.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*appmodel.LoanApplication, error)
	History(ctx context.Context, applicationID int64) ([]*appmodel.ApplicationHistory, error)
	// TransitionStatus updates the application status and appends the
	// history row in one transaction. The update is guarded on the expected
	// previous status; implementations return ErrTransitionConflict when
	// another writer got there first.
	TransitionStatus(ctx context.Context, id int64, previous, next, actor, notes string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service is the application-status state machine. It gates every status
// mutation in the ledger.
type Service struct {
	repo   Repository
	bus    EventPublisher
	logger *slog.Logger
}

func NewService(repo Repository, bus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger,
	}
}

// Transition moves the application to newStatus if the edge exists in the
// lifecycle graph, appending one history row atomically with the update.
func (s *Service) Transition(ctx context.Context, applicationID int64, newStatus, actor, notes string) (*appmodel.LoanApplication, error) {
	next, err := ParseStatus(newStatus)
	if err != nil {
		s.logger.Warn("transition rejected: unknown status", "application_id", applicationID, "status", newStatus)
		return nil, err
	}

	app, err := s.repo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(app.Status, next) {
		s.logger.Warn("transition rejected: edge not in graph",
			"application_id", applicationID,
			"current_status", app.Status,
			"new_status", next)
		return nil, ErrInvalidTransition
	}

	if err := s.repo.TransitionStatus(ctx, applicationID, app.Status, next, actor, notes); err != nil {
		s.logger.Error("transition failed", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.logger.Info("application transitioned",
		"application_id", applicationID,
		"previous_status", app.Status,
		"new_status", next,
		"changed_by", actor)

	// fire-and-forget: the notification sink must never fail the transition
	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewApplicationTransitionedEvent(applicationID, app.Status, next, actor))
	}

	app.Status = next
	return app, nil
}

// Advance moves the application one step forward along the lifecycle.
func (s *Service) Advance(ctx context.Context, applicationID int64, actor, notes string) (*appmodel.LoanApplication, error) {
	app, err := s.repo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	next, err := NextStatus(app.Status)
	if err != nil {
		s.logger.Warn("advance rejected", "application_id", applicationID, "current_status", app.Status)
		return nil, err
	}

	return s.Transition(ctx, applicationID, next, actor, notes)
}

// GetWithHistory returns the application plus its transition log, newest first.
func (s *Service) GetWithHistory(ctx context.Context, applicationID int64) (*appmodel.LoanApplication, []*appmodel.ApplicationHistory, error) {
	app, err := s.repo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}

	history, err := s.repo.History(ctx, applicationID)
	if err != nil {
		s.logger.Error("failed to load application history", "error", err, "application_id", applicationID)
		return nil, nil, err
	}

	return app, history, nil
}
