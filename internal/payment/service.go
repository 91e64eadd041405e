package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/core/events"
	"github.com/shopspring/decimal"

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

var (
	ErrPaymentNotFound  = internal.NewNotFoundError("pending payment not found", internal.ErrCodePaymentNotFound)
	ErrAlreadyProcessed = internal.NewConflictError("payment was already approved or rejected", internal.ErrCodeAlreadyProcessed)
	ErrNoOpenRepayment  = internal.NewValidationError("loan has no open repayment to allocate against", internal.ErrCodeRepaymentNotFound)
)

// ApplyFunc allocates an approved payment against the loan's earliest open
// repayment. It runs inside the approval transaction so the status flip and
// the ledger mutation commit or roll back together.
type ApplyFunc func(rep *repmodel.LoanRepayment, amount decimal.Decimal) (Breakdown, error)

// ApprovalResult reports what one approval did to the ledger.
type ApprovalResult struct {
	Payment     *paymodel.PendingPayment
	RepaymentID int64
	Breakdown   Breakdown
}

// Repository defines data access for pending payments and the ledger writes
// an approval performs. Approve must be a compare-and-set: exactly one caller
// wins a concurrent race, the rest see ErrAlreadyProcessed.
type Repository interface {
	Create(ctx context.Context, p *paymodel.PendingPayment) error
	GetByID(ctx context.Context, id int64) (*paymodel.PendingPayment, error)
	List(ctx context.Context, filter ListFilter) ([]*paymodel.PendingPayment, error)
	ListPending(ctx context.Context) ([]*paymodel.PendingPayment, error)

	Approve(ctx context.Context, paymentID int64, actor string, apply ApplyFunc) (*ApprovalResult, error)
	Reject(ctx context.Context, paymentID int64, actor, reason, notes string) (*paymodel.PendingPayment, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ListFilter struct {
	LoanID *int64
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Service manages the PENDING → APPROVED/REJECTED payment lifecycle and runs
// the waterfall on approval.
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

// Submit records a payment awaiting review, from a borrower repayment, a
// manual admin entry, or a matched bank transaction.
func (s *Service) Submit(ctx context.Context, dto SubmitPaymentDTO) (*paymodel.PendingPayment, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("payment submission validation failed", "error", err, "loan_id", dto.LoanID)
		return nil, err
	}

	p := &paymodel.PendingPayment{
		LoanID:         dto.LoanID,
		Amount:         dto.Amount,
		Reference:      dto.Reference,
		PayerName:      dto.PayerName,
		PaymentMethod:  dto.PaymentMethod,
		OriginalAmount: dto.OriginalAmount,
		Notes:          dto.Notes,
		Status:         paymodel.StatusPending,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error("failed to create pending payment", "error", err, "loan_id", dto.LoanID)
		return nil, err
	}

	s.logger.Info("pending payment submitted",
		"payment_id", p.ID,
		"loan_id", p.LoanID,
		"amount", p.Amount.String(),
		"reference", p.Reference)

	return p, nil
}

// Approve resolves the payment through a compare-and-set on PENDING and
// applies the waterfall to the loan's earliest open repayment in the same
// transaction. The losing side of a concurrent approve/reject race gets
// ErrAlreadyProcessed and is expected to refresh its view.
func (s *Service) Approve(ctx context.Context, paymentID int64, actor, notes string) (*ApprovalResult, error) {
	result, err := s.repo.Approve(ctx, paymentID, actor, Allocate)
	if err != nil {
		if err == ErrAlreadyProcessed {
			s.logger.Warn("approve lost optimistic race", "payment_id", paymentID, "actor", actor)
		} else {
			s.logger.Error("failed to approve payment", "error", err, "payment_id", paymentID)
		}
		return nil, err
	}

	s.logger.Info("payment approved",
		"payment_id", paymentID,
		"loan_id", result.Payment.LoanID,
		"repayment_id", result.RepaymentID,
		"fee_portion", result.Breakdown.FeePortion.String(),
		"principal_portion", result.Breakdown.PrincipalPortion.String(),
		"excess", result.Breakdown.Excess.String(),
		"approved_by", actor)

	if result.Breakdown.Excess.IsPositive() {
		// overpayment is reported, not absorbed; crediting it elsewhere is
		// the caller's responsibility
		s.logger.Warn("payment overpaid repayment, excess returned",
			"payment_id", paymentID,
			"excess", result.Breakdown.Excess.String())
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewPaymentApprovedEvent(
			paymentID, result.Payment.LoanID, result.Payment.Amount, result.Breakdown.Excess, actor))
	}

	return result, nil
}

// Reject resolves the payment without touching the ledger.
func (s *Service) Reject(ctx context.Context, paymentID int64, actor, reason, notes string) (*paymodel.PendingPayment, error) {
	if reason == "" {
		return nil, internal.NewValidationError("reason is required when rejecting a payment", internal.ErrCodeValidationFailed)
	}

	p, err := s.repo.Reject(ctx, paymentID, actor, reason, notes)
	if err != nil {
		if err == ErrAlreadyProcessed {
			s.logger.Warn("reject lost optimistic race", "payment_id", paymentID, "actor", actor)
		} else {
			s.logger.Error("failed to reject payment", "error", err, "payment_id", paymentID)
		}
		return nil, err
	}

	s.logger.Info("payment rejected",
		"payment_id", paymentID,
		"loan_id", p.LoanID,
		"reason", reason,
		"rejected_by", actor)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewPaymentRejectedEvent(paymentID, p.LoanID, reason, actor))
	}

	return p, nil
}

func (s *Service) GetByID(ctx context.Context, paymentID int64) (*paymodel.PendingPayment, error) {
	return s.repo.GetByID(ctx, paymentID)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*paymodel.PendingPayment, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// ListPending returns every unresolved payment, the candidate set for
// reconciliation matching.
func (s *Service) ListPending(ctx context.Context) ([]*paymodel.PendingPayment, error) {
	return s.repo.ListPending(ctx)
}
