package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestAuthMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewAuthMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.Record(ctx, "login", nil)
	m.Record(ctx, "login", nil)
	m.Record(ctx, "login", errors.New("wrong password"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	got := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "auth_operations_total", got.Name)

	sum, ok := got.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"success": 2, "failure": 1}, counts)
}

func TestAuthMetrics_NilReceiver(t *testing.T) {
	var m *AuthMetrics
	assert.NotPanics(t, func() { m.Record(context.Background(), "login", nil) })
}

func TestInitLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := InitLogger(env)
		require.NoError(t, err, env)
		assert.NotNil(t, logger)
	}
}
