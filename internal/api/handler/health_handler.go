package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-apime/evomanager/internal/config"
	"github.com/open-apime/evomanager/internal/pkg/response"
)

type HealthHandler struct {
	checks map[string]func(context.Context) error
}

func NewHealthHandler(checks map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Register(r *gin.RouterGroup) {
	r.GET("/", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"name":    "evomanager",
			"version": config.Version,
		})
	})
	r.GET("/healthz", h.healthz)
}

func (h *HealthHandler) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "version": config.Version, "dependencies": deps})
}
