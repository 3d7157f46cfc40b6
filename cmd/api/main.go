package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/api/handler"
	"github.com/open-apime/evomanager/internal/api/middleware"
	"github.com/open-apime/evomanager/internal/app"
	"github.com/open-apime/evomanager/internal/config"
	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/logger"
	"github.com/open-apime/evomanager/internal/metrics"
	"github.com/open-apime/evomanager/internal/server"
	"github.com/open-apime/evomanager/internal/service/catalog"
	"github.com/open-apime/evomanager/internal/service/connection"
	"github.com/open-apime/evomanager/internal/service/instance"
	"github.com/open-apime/evomanager/internal/service/integration"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/service/webhookconfig"
	"github.com/open-apime/evomanager/internal/storage/factory"
	"github.com/open-apime/evomanager/internal/storage/model"
	"github.com/open-apime/evomanager/internal/webhook"
	"github.com/open-apime/evomanager/internal/webhook/delivery"
)

func main() {
	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logr.Sugar().Debugf)); err != nil {
		logr.Warn("automaxprocs: não foi possível ajustar GOMAXPROCS", zap.Error(err))
	}

	logr.Info("iniciando aplicação",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Storage.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()

	repos, err := factory.NewRepositories(cfg, logr)
	if err != nil {
		logr.Fatal("storage", zap.Error(err))
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logr.Warn("erro ao fechar conexões", zap.Error(err))
		}
	}()

	gw := gateway.New(gateway.Config{
		BaseURL:   cfg.Evolution.BackendURL,
		APIKey:    cfg.Evolution.APIKey,
		Timeout:   cfg.Evolution.Timeout(),
		RetryMax:  cfg.Evolution.RetryMax,
		RateLimit: cfg.Evolution.RateLimit,
		RateBurst: cfg.Evolution.RateBurst,
	}, logr, collector)

	// O catálogo prevalece sobre as variáveis de ambiente.
	if gi, err := repos.Catalog.GetByType(ctx, model.IntegrationTypeEvolutionAPI); err == nil && gi.BackendURL != "" {
		gw.SetBackend(gi.BackendURL, gi.APIKey)
		logr.Info("backend Evolution carregado do catálogo", zap.String("url", gi.BackendURL))
	}

	resolver := tenant.NewResolver(repos.Client, repos.Integration)
	prober := delivery.NewProber(logr, time.Duration(cfg.Webhook.TestTimeoutSeconds)*time.Second, cfg.Webhook.TestAllowPrivate)

	webhookConfigService := webhookconfig.NewService(gw, resolver, prober, cfg.App.BaseURL, logr)
	instanceService := instance.NewService(resolver, gw, webhookConfigService, repos.Integration, repos.Instance, collector, logr)
	connectionService := connection.NewService(resolver, gw, repos.Instance,
		connection.PolicyFor(cfg.Evolution.ConnectingHeuristic), collector, logr)
	integrationService := integration.NewService(resolver, repos.Catalog, repos.Integration, gw, repos.Locker,
		time.Duration(cfg.Activation.LockTTLSeconds)*time.Second, collector, logr)
	catalogService := catalog.NewService(repos.Catalog, gw, logr)

	receiver := webhook.NewReceiver(repos.EventQueue, gw, collector, logr)
	pool := webhook.NewPool(repos.EventQueue, webhook.NewApplier(resolver, repos.Instance, logr), collector, logr, cfg.Webhook.Workers)
	pool.Start(ctx)

	router := server.NewRouter(server.Options{
		Env:        cfg.App.Env,
		AuthSecret: cfg.JWT.Secret,
		Logger:     logr,
		Metrics:    collector.Handler(),
		RateLimit: middleware.RateLimitOption{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			Prefix:   cfg.RateLimit.Prefix,
			Limiter:  repos.RateLimiter,
			Logger:   logr,
		},
		IPRateLimit: middleware.IPRateLimitOption{
			Enabled:        cfg.IPRateLimit.Enabled,
			Requests:       cfg.IPRateLimit.Requests,
			WindowSeconds:  cfg.IPRateLimit.WindowSeconds,
			SkipPrivateIPs: cfg.IPRateLimit.SkipPrivateIPs,
			Limiter:        repos.RateLimiter,
			Logger:         logr,
		},
		HealthHandler:      handler.NewHealthHandler(repos.Checks),
		CatalogHandler:     handler.NewCatalogHandler(catalogService, logr),
		IntegrationHandler: handler.NewIntegrationHandler(integrationService, logr),
		InstanceHandler:    handler.NewInstanceHandler(instanceService, connectionService, logr),
		WebhookHandler:     handler.NewWebhookHandler(webhookConfigService, receiver, logr),
	})

	application := app.New(cfg, logr, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logr.Info("sinal de encerramento recebido")
	case err := <-errCh:
		if err != nil {
			logr.Error("servidor finalizado com erro", zap.Error(err))
		}
	}

	logr.Info("iniciando shutdown graceful")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logr.Error("erro ao encerrar servidor", zap.Error(err))
	}
	pool.Stop()
	logr.Info("aplicação encerrada")
}
