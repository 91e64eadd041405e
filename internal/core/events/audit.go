package events

import (
	"context"
	"log/slog"
)

// ledgerEventTypes is every event the ledger emits; the audit trail covers
// all of them.
var ledgerEventTypes = []string{
	EventTypeApplicationTransitioned,
	EventTypeFeeAccrued,
	EventTypeFeeWaived,
	EventTypePaymentApproved,
	EventTypePaymentRejected,
	EventTypeLoanDisbursed,
}

// AuditLogger writes one structured line per ledger event so operators can
// trace who changed what. It never fails: a lost audit line must not fail
// the ledger write that produced it.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

func (a *AuditLogger) HandleLedgerEvent(ctx context.Context, event Event) error {
	a.logger.Info("ledger event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"occurred_at", event.OccurredAt(),
		"payload", event.Payload())
	return nil
}

func (a *AuditLogger) RegisterEventHandlers(eventBus *EventBus) {
	for _, eventType := range ledgerEventTypes {
		eventBus.Subscribe(eventType, a.HandleLedgerEvent)
	}

	a.logger.Info("audit event handlers registered", "handlers", ledgerEventTypes)
}
