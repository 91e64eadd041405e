package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frahmantamala/loan-servicing/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Run("production logs JSON tagged with the service name", func(t *testing.T) {
		var buf bytes.Buffer
		lg := logger.New(&buf, "production")

		lg.Info("server started", "port", 8080)

		out := buf.String()
		assert.Contains(t, out, `"service":"loan-servicing"`)
		assert.Contains(t, out, `"msg":"server started"`)
	})

	t.Run("production suppresses debug", func(t *testing.T) {
		var buf bytes.Buffer
		lg := logger.New(&buf, "production")

		lg.Debug("noise")

		assert.Empty(t, buf.String())
	})

	t.Run("development logs debug as text", func(t *testing.T) {
		var buf bytes.Buffer
		lg := logger.New(&buf, "development")

		lg.Debug("repayment already assessed for date")

		out := buf.String()
		assert.Contains(t, out, "service=loan-servicing")
		assert.Contains(t, out, slog.LevelDebug.String())
	})
}
