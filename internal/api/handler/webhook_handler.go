package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/pkg/queue"
	"github.com/open-apime/evomanager/internal/pkg/response"
	"github.com/open-apime/evomanager/internal/webhook/delivery"
)

// Tamanho máximo aceito para um callback do Evolution.
const maxCallbackBody = 2 << 20

type WebhookConfigService interface {
	Get(ctx context.Context, clientID, instanceName string) (*gateway.WebhookConfig, error)
	Set(ctx context.Context, clientID, instanceName, webhookURL string, events []string) (gateway.WebhookConfig, error)
	Test(ctx context.Context, webhookURL string) delivery.Result
}

type CallbackReceiver interface {
	Handle(ctx context.Context, clientID, instanceName, apiKey string, body []byte) (queue.Event, error)
}

type WebhookHandler struct {
	configs  WebhookConfigService
	receiver CallbackReceiver
	log      *zap.Logger
}

func NewWebhookHandler(configs WebhookConfigService, receiver CallbackReceiver, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{configs: configs, receiver: receiver, log: log}
}

// RegisterClient espera um grupo já prefixado com /clients/:clientId.
func (h *WebhookHandler) RegisterClient(r *gin.RouterGroup) {
	r.GET("/evolution/instances/:name/webhook", h.get)
	r.PUT("/evolution/instances/:name/webhook", h.set)
}

func (h *WebhookHandler) RegisterTest(r *gin.RouterGroup) {
	r.POST("/webhooks/test", h.test)
}

// RegisterCallback expõe a URL registrada no Evolution. A rota não usa JWT:
// o receiver exige a apikey do backend no cabeçalho ou no payload.
func (h *WebhookHandler) RegisterCallback(r *gin.RouterGroup) {
	r.POST("/webhook/evolution/:clientId/:instanceName", h.callback)
}

func (h *WebhookHandler) get(c *gin.Context) {
	wc, err := h.configs.Get(c.Request.Context(), c.Param("clientId"), c.Param("name"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, wc)
}

type setWebhookRequest struct {
	URL    string   `json:"url" binding:"required"`
	Events []string `json:"events" binding:"required"`
}

func (h *WebhookHandler) set(c *gin.Context) {
	var req setWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	wc, err := h.configs.Set(c.Request.Context(), c.Param("clientId"), c.Param("name"), req.URL, req.Events)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, wc)
}

type testWebhookRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *WebhookHandler) test(c *gin.Context) {
	var req testWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}
	response.Success(c, http.StatusOK, h.configs.Test(c.Request.Context(), req.URL))
}

func (h *WebhookHandler) callback(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.ErrorWithMessage(c, http.StatusRequestEntityTooLarge, "payload muito grande")
			return
		}
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	ev, err := h.receiver.Handle(c.Request.Context(), c.Param("clientId"), c.Param("instanceName"), c.GetHeader("apikey"), body)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true, "id": ev.ID})
}
