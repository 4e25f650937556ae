package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/helpdesk-labs/support-rewards/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		raw  string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"nonsense", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		logger, err := NewLogger(config.LoggerConfig{Level: tt.raw, Service: "test"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(tt.want), tt.raw)
		if tt.want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(tt.want-1), tt.raw)
		}
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Inc(CounterPurchases)
	m.Add(CounterPointsAwarded, 40)
	m.Add(CounterPointsAwarded, 10)
	m.RecordRequest("/metrics", "GET", 200, 0)
	m.RecordError("/nope", "GET", "NOT_FOUND")

	assert.Equal(t, int64(1), m.Count(CounterPurchases))
	assert.Equal(t, int64(50), m.Count(CounterPointsAwarded))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap["requests"]["/metrics|GET|200"])
	assert.Equal(t, int64(1), snap["errors"]["/nope|GET|NOT_FOUND"])

	var nilMetrics *Metrics
	nilMetrics.Inc(CounterPurchases)
	assert.Zero(t, nilMetrics.Count(CounterPurchases))
}
