package observability

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", UserIDFromContext(ctx))

	ctx = WithUserID(ctx, "user-456")
	assert.Equal(t, "user-456", UserIDFromContext(ctx))
}

func TestMetricsCounters(t *testing.T) {
	// Unique namespace to avoid duplicate registration across test runs.
	m := NewMetrics("research_survey_test")

	m.LedgerCharges.Inc()
	m.LedgerCharges.Inc()
	m.AmountChargedFen.Add(100)
	m.PapersRetrieved.WithLabelValues("arxiv").Add(25)

	var metric dto.Metric
	require.NoError(t, m.LedgerCharges.Write(&metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())

	require.NoError(t, m.AmountChargedFen.Write(&metric))
	assert.Equal(t, float64(100), metric.GetCounter().GetValue())

	require.NoError(t, m.PapersRetrieved.WithLabelValues("arxiv").Write(&metric))
	assert.Equal(t, float64(25), metric.GetCounter().GetValue())
}
