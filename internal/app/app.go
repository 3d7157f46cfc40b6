// Package app encapsula o http.Server da API.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/config"
)

type App struct {
	server *http.Server
	log    *zap.Logger
}

func New(cfg config.Config, log *zap.Logger, handler http.Handler) *App {
	return &App{
		server: &http.Server{
			Addr:              net.JoinHostPort("", cfg.App.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// QR e status podem esperar o timeout do gateway mais retries.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

// Run bloqueia até o servidor parar. Encerramento via Shutdown não é erro.
func (a *App) Run(ctx context.Context) error {
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }
	a.log.Info("servidor HTTP escutando", zap.String("addr", a.server.Addr))

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
