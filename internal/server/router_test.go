package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/api/handler"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	return NewRouter(Options{
		Env:        "test",
		AuthSecret: "segredo",
		Logger:     log,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		HealthHandler: handler.NewHealthHandler(map[string]func(context.Context) error{
			"database": func(context.Context) error { return nil },
		}),
		CatalogHandler:     handler.NewCatalogHandler(nil, log),
		IntegrationHandler: handler.NewIntegrationHandler(nil, log),
		InstanceHandler:    handler.NewInstanceHandler(nil, nil, log),
		WebhookHandler:     handler.NewWebhookHandler(nil, nil, log),
	})
}

func TestPublicRoutes(t *testing.T) {
	r := testRouter()

	for _, path := range []string{"/api/healthz", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := testRouter()

	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/global-integrations"},
		{http.MethodPost, "/api/webhooks/test"},
		{http.MethodGet, "/api/clients/c1/integrations"},
		{http.MethodGet, "/api/clients/c1/evolution/instances"},
		{http.MethodGet, "/api/clients/c1/evolution/instances/i1/status"},
		{http.MethodPut, "/api/clients/c1/evolution/instances/i1/webhook"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}
