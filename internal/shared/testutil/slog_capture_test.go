package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapture(t *testing.T) {
	t.Run("captures records with derived attrs", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.With("component", "resolver").Info("filled", slog.String("candidate", "Lydgate"))
		logger.Error("failed", slog.Int("code", 2))

		records := logs.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "resolver", records[0].Attrs["component"])
		assert.Equal(t, "Lydgate", records[0].Attrs["candidate"])
		assert.NotContains(t, records[1].Attrs, "component")
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Warn("warn msg")
		logger.Warn("another warn")

		assert.Len(t, logs.AtLevel(slog.LevelWarn), 2)
		assert.Len(t, logs.AtLevel(slog.LevelDebug), 1)
		AssertLogContains(t, logs, slog.LevelWarn, "another")
		AssertNoErrors(t, logs)
	})
}

func TestRaw(t *testing.T) {
	r := Raw("pollster", "Acme Poll", "Lydgate", "40")
	assert.Equal(t, "Acme Poll", r["pollster"])
	assert.Equal(t, "40", r["Lydgate"])

	assert.Panics(t, func() { Raw("odd") })
}
