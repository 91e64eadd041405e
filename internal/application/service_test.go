package application_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/loan-servicing/internal/application"
	"github.com/frahmantamala/loan-servicing/internal/core/events"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
)

func TestApplicationService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Application Service Suite")
}

// Mock repository for testing
type mockApplicationRepository struct {
	mu              sync.Mutex
	applications    map[int64]*appmodel.LoanApplication
	history         map[int64][]*appmodel.ApplicationHistory
	getError        error
	transitionError error
}

func newMockApplicationRepository() *mockApplicationRepository {
	return &mockApplicationRepository{
		applications: make(map[int64]*appmodel.LoanApplication),
		history:      make(map[int64][]*appmodel.ApplicationHistory),
	}
}

func (m *mockApplicationRepository) GetByID(ctx context.Context, id int64) (*appmodel.LoanApplication, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	app, exists := m.applications[id]
	if !exists {
		return nil, application.ErrApplicationNotFound
	}
	copied := *app
	return &copied, nil
}

func (m *mockApplicationRepository) History(ctx context.Context, applicationID int64) ([]*appmodel.ApplicationHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[applicationID], nil
}

func (m *mockApplicationRepository) TransitionStatus(ctx context.Context, id int64, previous, next, actor, notes string) error {
	if m.transitionError != nil {
		return m.transitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	app, exists := m.applications[id]
	if !exists {
		return application.ErrApplicationNotFound
	}
	if app.Status != previous {
		return application.ErrTransitionConflict
	}
	app.Status = next
	prev := previous
	m.history[id] = append(m.history[id], &appmodel.ApplicationHistory{
		ApplicationID:  id,
		PreviousStatus: &prev,
		NewStatus:      next,
		ChangedBy:      actor,
		Notes:          notes,
	})
	return nil
}

type capturingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *capturingBus) Publish(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

var _ = Describe("ApplicationService", func() {
	var (
		repo    *mockApplicationRepository
		bus     *capturingBus
		service *application.Service
		ctx     context.Context
	)

	testLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	BeforeEach(func() {
		repo = newMockApplicationRepository()
		bus = &capturingBus{}
		service = application.NewService(repo, bus, testLogger)
		ctx = context.Background()
	})

	seed := func(id int64, status string) {
		repo.applications[id] = &appmodel.LoanApplication{ID: id, Status: status}
	}

	Describe("Transition", func() {
		Context("when the edge exists in the lifecycle graph", func() {
			It("should move the application and append a history row", func() {
				seed(1, appmodel.StatusPendingApproval)

				app, err := service.Transition(ctx, 1, appmodel.StatusApproved, "ops@lender.id", "credit check passed")

				Expect(err).ToNot(HaveOccurred())
				Expect(app.Status).To(Equal(appmodel.StatusApproved))
				Expect(repo.history[1]).To(HaveLen(1))
				Expect(repo.history[1][0].ChangedBy).To(Equal("ops@lender.id"))
				Expect(*repo.history[1][0].PreviousStatus).To(Equal(appmodel.StatusPendingApproval))
			})

			It("should publish a transition event", func() {
				seed(1, appmodel.StatusPendingDisbursement)

				_, err := service.Transition(ctx, 1, appmodel.StatusActive, "ops@lender.id", "")

				Expect(err).ToNot(HaveOccurred())
				Expect(bus.events).To(HaveLen(1))
				Expect(bus.events[0].EventType()).To(Equal(events.EventTypeApplicationTransitioned))
			})

			It("should allow withdrawing before activation", func() {
				seed(2, appmodel.StatusPendingKYC)

				app, err := service.Transition(ctx, 2, appmodel.StatusWithdrawn, "borrower", "changed mind")

				Expect(err).ToNot(HaveOccurred())
				Expect(app.Status).To(Equal(appmodel.StatusWithdrawn))
			})
		})

		Context("when the edge does not exist", func() {
			It("should reject skipping steps", func() {
				seed(1, appmodel.StatusIncomplete)

				_, err := service.Transition(ctx, 1, appmodel.StatusActive, "ops@lender.id", "")

				Expect(err).To(MatchError(application.ErrInvalidTransition))
				Expect(repo.history[1]).To(BeEmpty())
			})

			It("should reject any move out of a terminal status", func() {
				for _, terminal := range []string{appmodel.StatusActive, appmodel.StatusRejected, appmodel.StatusWithdrawn} {
					seed(9, terminal)

					_, err := service.Transition(ctx, 9, appmodel.StatusPendingApproval, "ops@lender.id", "")

					Expect(err).To(MatchError(application.ErrInvalidTransition))
				}
			})

			It("should reject withdrawing an active loan", func() {
				seed(3, appmodel.StatusActive)

				_, err := service.Transition(ctx, 3, appmodel.StatusWithdrawn, "borrower", "")

				Expect(err).To(MatchError(application.ErrInvalidTransition))
			})
		})

		Context("when the status string is unknown", func() {
			It("should return ErrUnknownStatus without loading the application", func() {
				seed(1, appmodel.StatusIncomplete)

				_, err := service.Transition(ctx, 1, "SHIPPED", "ops@lender.id", "")

				Expect(err).To(MatchError(application.ErrUnknownStatus))
			})
		})

		Context("when the application does not exist", func() {
			It("should return not found", func() {
				_, err := service.Transition(ctx, 404, appmodel.StatusPendingAppFee, "ops@lender.id", "")

				Expect(err).To(MatchError(application.ErrApplicationNotFound))
			})
		})

		Context("when a concurrent writer moved the application first", func() {
			It("should surface the conflict", func() {
				seed(1, appmodel.StatusPendingApproval)
				repo.transitionError = application.ErrTransitionConflict

				_, err := service.Transition(ctx, 1, appmodel.StatusApproved, "ops@lender.id", "")

				Expect(err).To(MatchError(application.ErrTransitionConflict))
			})
		})
	})

	Describe("Advance", func() {
		It("should walk the full linear path to active", func() {
			seed(1, appmodel.StatusApproved)

			app, err := service.Advance(ctx, 1, "ops@lender.id", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(app.Status).To(Equal(appmodel.StatusPendingSignature))

			app, err = service.Advance(ctx, 1, "ops@lender.id", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(app.Status).To(Equal(appmodel.StatusPendingDisbursement))

			app, err = service.Advance(ctx, 1, "ops@lender.id", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(app.Status).To(Equal(appmodel.StatusActive))
		})

		Context("when the current status branches", func() {
			It("should refuse to pick approve or reject on the caller's behalf", func() {
				seed(1, appmodel.StatusPendingApproval)

				_, err := service.Advance(ctx, 1, "ops@lender.id", "")

				Expect(err).To(MatchError(application.ErrNoNextState))
			})
		})

		Context("when the current status is terminal", func() {
			It("should return ErrNoNextState", func() {
				seed(1, appmodel.StatusRejected)

				_, err := service.Advance(ctx, 1, "ops@lender.id", "")

				Expect(err).To(MatchError(application.ErrNoNextState))
			})
		})
	})

	Describe("GetWithHistory", func() {
		It("should return the application with its transition log", func() {
			seed(1, appmodel.StatusPendingKYC)
			_, err := service.Transition(ctx, 1, appmodel.StatusPendingApproval, "ops@lender.id", "docs verified")
			Expect(err).ToNot(HaveOccurred())

			app, history, err := service.GetWithHistory(ctx, 1)

			Expect(err).ToNot(HaveOccurred())
			Expect(app.Status).To(Equal(appmodel.StatusPendingApproval))
			Expect(history).To(HaveLen(1))
			Expect(history[0].Notes).To(Equal("docs verified"))
		})

		It("should propagate repository failures", func() {
			repo.getError = errors.New("connection reset")

			_, _, err := service.GetWithHistory(ctx, 1)

			Expect(err).To(HaveOccurred())
		})
	})
})
