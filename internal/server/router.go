package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/api/handler"
	"github.com/open-apime/evomanager/internal/api/middleware"
)

type Options struct {
	Env         string
	AuthSecret  string
	Logger      *zap.Logger
	Metrics     http.Handler
	RateLimit   middleware.RateLimitOption
	IPRateLimit middleware.IPRateLimitOption

	HealthHandler      *handler.HealthHandler
	CatalogHandler     *handler.CatalogHandler
	IntegrationHandler *handler.IntegrationHandler
	InstanceHandler    *handler.InstanceHandler
	WebhookHandler     *handler.WebhookHandler
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if opts.Logger != nil {
		router.Use(middleware.Logger(opts.Logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := router.Group("/api")
	opts.HealthHandler.Register(api)

	// Callbacks do Evolution não carregam JWT; só o limite por IP.
	public := api.Group("")
	public.Use(middleware.IPRateLimit(opts.IPRateLimit))
	opts.WebhookHandler.RegisterCallback(public)

	protected := api.Group("")
	protected.Use(middleware.RateLimit(opts.RateLimit))
	protected.Use(middleware.Auth(opts.AuthSecret))

	opts.CatalogHandler.Register(protected)
	opts.WebhookHandler.RegisterTest(protected)

	clients := protected.Group("/clients/:clientId")
	opts.IntegrationHandler.Register(clients)
	opts.InstanceHandler.Register(clients)
	opts.WebhookHandler.RegisterClient(clients)

	return router
}
