package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types consumed by the notification/audit sink. Delivery is
// fire-and-forget: a failed handler never blocks or fails the ledger write
// that produced the event.
const (
	EventTypeApplicationTransitioned = "application.transitioned"
	EventTypeFeeAccrued              = "fee.accrued"
	EventTypeFeeWaived               = "fee.waived"
	EventTypePaymentApproved         = "payment.approved"
	EventTypePaymentRejected         = "payment.rejected"
	EventTypeLoanDisbursed           = "loan.disbursed"
)

func NewApplicationTransitionedEvent(applicationID int64, previousStatus, newStatus, changedBy string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeApplicationTransitioned,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"application_id":  applicationID,
			"previous_status": previousStatus,
			"new_status":      newStatus,
			"changed_by":      changedBy,
		},
	}
}

func NewFeeAccruedEvent(repaymentID int64, feeAmount, cumulativeFees decimal.Decimal, runDate time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeFeeAccrued,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"loan_repayment_id": repaymentID,
			"fee_amount":        feeAmount.String(),
			"cumulative_fees":   cumulativeFees.String(),
			"run_date":          runDate.Format("2006-01-02"),
		},
	}
}

func NewFeeWaivedEvent(lateFeeRecordID int64, waivedBy string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeFeeWaived,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"late_fee_record_id": lateFeeRecordID,
			"waived_by":          waivedBy,
		},
	}
}

func NewPaymentApprovedEvent(paymentID, loanID int64, amount, excess decimal.Decimal, approvedBy string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypePaymentApproved,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"payment_id":  paymentID,
			"loan_id":     loanID,
			"amount":      amount.String(),
			"excess":      excess.String(),
			"approved_by": approvedBy,
		},
	}
}

func NewPaymentRejectedEvent(paymentID, loanID int64, reason, rejectedBy string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypePaymentRejected,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"payment_id":  paymentID,
			"loan_id":     loanID,
			"reason":      reason,
			"rejected_by": rejectedBy,
		},
	}
}

func NewLoanDisbursedEvent(applicationID int64, referenceNumber string, netDisbursement decimal.Decimal, disbursedBy string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeLoanDisbursed,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"application_id":   applicationID,
			"reference_number": referenceNumber,
			"net_disbursement": netDisbursement.String(),
			"disbursed_by":     disbursedBy,
		},
	}
}
