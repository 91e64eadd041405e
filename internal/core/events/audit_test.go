package events_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frahmantamala/loan-servicing/internal/core/events"
)

func TestAuditLogger(t *testing.T) {
	newBus := func(buf *bytes.Buffer) *events.EventBus {
		lg := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		bus := events.NewEventBus(lg)
		events.NewAuditLogger(lg).RegisterEventHandlers(bus)
		return bus
	}

	t.Run("writes one audit line per published event", func(t *testing.T) {
		var buf bytes.Buffer
		bus := newBus(&buf)

		event := events.NewLoanDisbursedEvent(42, "DISB-1", decimal.NewFromInt(9700), "finance@lender.io")
		require.NoError(t, bus.PublishSync(context.Background(), event))

		out := buf.String()
		assert.Contains(t, out, "ledger event")
		assert.Contains(t, out, events.EventTypeLoanDisbursed)
		assert.Contains(t, out, event.EventID())
	})

	t.Run("covers every ledger event type", func(t *testing.T) {
		var buf bytes.Buffer
		bus := newBus(&buf)
		ctx := context.Background()

		published := []events.BaseEvent{
			events.NewApplicationTransitionedEvent(1, "APPROVED", "PENDING_DISBURSEMENT", "ops@lender.id"),
			events.NewFeeAccruedEvent(1, decimal.NewFromInt(10), decimal.NewFromInt(10), time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)),
			events.NewFeeWaivedEvent(1, "ops@lender.id"),
			events.NewPaymentApprovedEvent(1, 1, decimal.NewFromInt(500), decimal.Zero, "ops@lender.id"),
			events.NewPaymentRejectedEvent(1, 1, "duplicate", "ops@lender.id"),
			events.NewLoanDisbursedEvent(1, "DISB-1", decimal.NewFromInt(9700), "finance@lender.io"),
		}
		for _, event := range published {
			require.NoError(t, bus.PublishSync(ctx, event))
		}

		out := buf.String()
		for _, event := range published {
			assert.Contains(t, out, event.EventType())
		}
	})
}
