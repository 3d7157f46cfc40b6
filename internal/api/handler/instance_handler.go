package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/pkg/response"
	"github.com/open-apime/evomanager/internal/service/connection"
	instanceSvc "github.com/open-apime/evomanager/internal/service/instance"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type InstanceService interface {
	Create(ctx context.Context, clientID, instanceName string) (instanceSvc.CreateResult, error)
	Delete(ctx context.Context, clientID, instanceName string) (instanceSvc.DeleteResult, error)
	List(ctx context.Context, clientID string) ([]model.EvolutionInstance, error)
}

type ConnectionService interface {
	GetStatus(ctx context.Context, clientID, instanceName string) (connection.StatusResult, error)
	GetCurrentQR(ctx context.Context, clientID, instanceName string) (connection.QRResult, error)
}

type InstanceHandler struct {
	instances   InstanceService
	connections ConnectionService
	log         *zap.Logger
}

func NewInstanceHandler(instances InstanceService, connections ConnectionService, log *zap.Logger) *InstanceHandler {
	return &InstanceHandler{instances: instances, connections: connections, log: log}
}

// Register espera um grupo já prefixado com /clients/:clientId.
func (h *InstanceHandler) Register(r *gin.RouterGroup) {
	r.GET("/evolution/instances", h.list)
	r.POST("/evolution/instances", h.create)
	r.DELETE("/evolution/instances/:name", h.delete)
	r.GET("/evolution/instances/:name/status", h.status)
	r.GET("/evolution/instances/:name/qr", h.qr)
}

type createInstanceRequest struct {
	InstanceName string `json:"instanceName" binding:"required"`
}

func (h *InstanceHandler) create(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.instances.Create(c.Request.Context(), c.Param("clientId"), req.InstanceName)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *InstanceHandler) list(c *gin.Context) {
	list, err := h.instances.List(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

func (h *InstanceHandler) delete(c *gin.Context) {
	res, err := h.instances.Delete(c.Request.Context(), c.Param("clientId"), c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// status e qr podem gravar no store; ver connection.Service.
func (h *InstanceHandler) status(c *gin.Context) {
	res, err := h.connections.GetStatus(c.Request.Context(), c.Param("clientId"), c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *InstanceHandler) qr(c *gin.Context) {
	res, err := h.connections.GetCurrentQR(c.Request.Context(), c.Param("clientId"), c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
