package observability

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
		}
	}
}

// AuthMetrics counts identity provider operations by outcome
type AuthMetrics struct {
	operations metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on the given meter
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	operations, err := meter.Int64Counter(
		"auth_operations_total",
		metric.WithDescription("Identity provider operations by name and outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{operations: operations}, nil
}

// Record counts one operation; safe to call on a nil receiver
func (m *AuthMetrics) Record(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
