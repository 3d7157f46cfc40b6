package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveGateway("health", "ok", time.Second)
		c.Activation("EVOLUTION_API", "success")
		c.Compensation("container_stop", "error")
		c.StatusCorrection("instance_info")
		c.WebhookEvent("CONNECTION_UPDATE", "applied")
		c.SetWebhookQueueSize(3)
	})
}

func TestCollectorCountsAndServes(t *testing.T) {
	c := NewCollector()
	c.Activation("EVOLUTION_API", "success")
	c.Activation("EVOLUTION_API", "success")
	c.Compensation("container_stop", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.activationsTotal.WithLabelValues("EVOLUTION_API", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compensations.WithLabelValues("container_stop", "error")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "evomanager_activations_total")
}
