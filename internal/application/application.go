package application

import (
	"github.com/frahmantamala/loan-servicing/internal"
	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
)

// Domain errors surfaced to callers. None of these are retried automatically.
var (
	ErrApplicationNotFound = internal.NewNotFoundError("loan application not found", internal.ErrCodeApplicationNotFound)
	ErrInvalidTransition   = internal.NewValidationError("status transition not allowed", internal.ErrCodeInvalidTransition)
	ErrNoNextState         = internal.NewValidationError("no single next status from current status", internal.ErrCodeNoNextState)
	ErrUnknownStatus       = internal.NewValidationError("unknown application status", internal.ErrCodeUnknownStatus)
	ErrTransitionConflict  = internal.NewConflictError("application was modified concurrently", internal.ErrCodeAlreadyProcessed)
)

// transitions is the closed edge set of the application lifecycle. Any
// pre-ACTIVE state may be withdrawn; REJECTED, WITHDRAWN and ACTIVE are
// terminal for this machine.
var transitions = map[string][]string{
	appmodel.StatusIncomplete:          {appmodel.StatusPendingAppFee, appmodel.StatusWithdrawn},
	appmodel.StatusPendingAppFee:       {appmodel.StatusPendingKYC, appmodel.StatusWithdrawn},
	appmodel.StatusPendingKYC:          {appmodel.StatusPendingApproval, appmodel.StatusWithdrawn},
	appmodel.StatusPendingApproval:     {appmodel.StatusApproved, appmodel.StatusRejected, appmodel.StatusWithdrawn},
	appmodel.StatusApproved:            {appmodel.StatusPendingSignature, appmodel.StatusWithdrawn},
	appmodel.StatusPendingSignature:    {appmodel.StatusPendingDisbursement, appmodel.StatusWithdrawn},
	appmodel.StatusPendingDisbursement: {appmodel.StatusActive, appmodel.StatusWithdrawn},
	appmodel.StatusActive:              {},
	appmodel.StatusRejected:            {},
	appmodel.StatusWithdrawn:           {},
}

// advances maps each status to its single forward step. Branching statuses
// (PENDING_APPROVAL must be resolved to APPROVED or REJECTED explicitly) and
// terminal statuses have no entry.
var advances = map[string]string{
	appmodel.StatusIncomplete:          appmodel.StatusPendingAppFee,
	appmodel.StatusPendingAppFee:       appmodel.StatusPendingKYC,
	appmodel.StatusPendingKYC:          appmodel.StatusPendingApproval,
	appmodel.StatusApproved:            appmodel.StatusPendingSignature,
	appmodel.StatusPendingSignature:    appmodel.StatusPendingDisbursement,
	appmodel.StatusPendingDisbursement: appmodel.StatusActive,
}

// ParseStatus rejects unknown status strings at the boundary.
func ParseStatus(s string) (string, error) {
	if _, ok := transitions[s]; !ok {
		return "", ErrUnknownStatus
	}
	return s, nil
}

// CanTransition reports whether the edge current → next exists.
func CanTransition(current, next string) bool {
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatus returns the single legal forward status, or ErrNoNextState.
func NextStatus(current string) (string, error) {
	next, ok := advances[current]
	if !ok {
		return "", ErrNoNextState
	}
	return next, nil
}

// IsTerminal reports whether the machine permits no further transitions.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}
