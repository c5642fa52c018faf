package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CommandRunsTotal.WithLabelValues("uptime", "OK").Inc()
	m.BackupRunsTotal.WithLabelValues("created").Inc()
	m.HealthSeverity.Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandRunsTotal.WithLabelValues("uptime", "OK")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HealthSeverity))

	n, err := testutil.GatherAndCount(reg, "blackfong_backup_runs_total", "blackfong_health_severity")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		logger, err := NewLogger("debug", format)
		require.NoError(t, err, format)
		assert.NotNil(t, logger)
	}

	_, err := NewLogger("loud", "json")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestInitTracing_Noop(t *testing.T) {
	shutdown, err := InitTracing(false)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "test")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
