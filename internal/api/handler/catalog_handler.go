package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/pkg/response"
	catalogSvc "github.com/open-apime/evomanager/internal/service/catalog"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type CatalogService interface {
	Create(ctx context.Context, in catalogSvc.CreateInput) (model.GlobalIntegration, error)
	List(ctx context.Context) ([]model.GlobalIntegration, error)
	Get(ctx context.Context, t model.IntegrationType) (model.GlobalIntegration, error)
	Update(ctx context.Context, t model.IntegrationType, in catalogSvc.UpdateInput) (model.GlobalIntegration, error)
}

type CatalogHandler struct {
	service CatalogService
	log     *zap.Logger
}

func NewCatalogHandler(service CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, log: log}
}

func (h *CatalogHandler) Register(r *gin.RouterGroup) {
	r.GET("/global-integrations", h.list)
	r.POST("/global-integrations", h.create)
	r.GET("/global-integrations/:type", h.get)
	r.PUT("/global-integrations/:type", h.update)
}

func (h *CatalogHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

func (h *CatalogHandler) create(c *gin.Context) {
	var in catalogSvc.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}
	gi, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gi)
}

func (h *CatalogHandler) get(c *gin.Context) {
	gi, err := h.service.Get(c.Request.Context(), model.IntegrationType(strings.ToUpper(c.Param("type"))))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gi)
}

func (h *CatalogHandler) update(c *gin.Context) {
	var in catalogSvc.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}
	gi, err := h.service.Update(c.Request.Context(), model.IntegrationType(strings.ToUpper(c.Param("type"))), in)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gi)
}
