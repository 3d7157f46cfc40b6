package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/pkg/response"
	integrationSvc "github.com/open-apime/evomanager/internal/service/integration"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type IntegrationService interface {
	Activate(ctx context.Context, clientID string, t model.IntegrationType, cfg map[string]any) (model.ClientIntegration, error)
	Deactivate(ctx context.Context, clientID string, t model.IntegrationType) (integrationSvc.DeactivateResult, error)
	List(ctx context.Context, clientID string) ([]model.ClientIntegration, error)
	ContainerAction(ctx context.Context, clientID, action string) (integrationSvc.ContainerResult, error)
	CheckHealth(ctx context.Context, clientID string) (integrationSvc.HealthResult, error)
}

type IntegrationHandler struct {
	service IntegrationService
	log     *zap.Logger
}

func NewIntegrationHandler(service IntegrationService, log *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{service: service, log: log}
}

// Register espera um grupo já prefixado com /clients/:clientId.
func (h *IntegrationHandler) Register(r *gin.RouterGroup) {
	r.GET("/integrations", h.list)
	r.POST("/integrations/:type", h.activate)
	r.DELETE("/integrations/:type", h.deactivate)
	r.POST("/evolution/container/:action", h.containerAction)
	r.GET("/evolution/health", h.health)
}

type activateRequest struct {
	Config map[string]any `json:"config"`
}

func integrationType(c *gin.Context) model.IntegrationType {
	return model.IntegrationType(strings.ToUpper(c.Param("type")))
}

func (h *IntegrationHandler) activate(c *gin.Context) {
	var req activateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, err)
			return
		}
	}

	ci, err := h.service.Activate(c.Request.Context(), c.Param("clientId"), integrationType(c), req.Config)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ci)
}

func (h *IntegrationHandler) deactivate(c *gin.Context) {
	res, err := h.service.Deactivate(c.Request.Context(), c.Param("clientId"), integrationType(c))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *IntegrationHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

func (h *IntegrationHandler) containerAction(c *gin.Context) {
	res, err := h.service.ContainerAction(c.Request.Context(), c.Param("clientId"), c.Param("action"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *IntegrationHandler) health(c *gin.Context) {
	res, err := h.service.CheckHealth(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
