// Package webhookconfig lê e grava o registro de webhook de uma instância no
// Evolution e monta a URL de callback servida por esta API.
package webhookconfig

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/webhook/delivery"
)

// DefaultEvents é o conjunto registrado automaticamente na criação da
// instância.
var DefaultEvents = []string{
	"QRCODE_UPDATED",
	"MESSAGES_SET",
	"MESSAGES_UPSERT",
	"CONNECTION_UPDATE",
	"SEND_MESSAGE",
}

type Gateway interface {
	InstanceWebhook(ctx context.Context, containerName, instanceName string) (*gateway.WebhookConfig, error)
	SetWebhook(ctx context.Context, containerName, instanceName string, cfg gateway.WebhookConfig) (gateway.WebhookConfig, error)
}

type Resolver interface {
	Container(ctx context.Context, clientID string) (tenant.Scope, error)
}

type Prober interface {
	Probe(ctx context.Context, url string) delivery.Result
}

type Service struct {
	gateway  Gateway
	resolver Resolver
	prober   Prober
	baseURL  string
	log      *zap.Logger
}

func NewService(gw Gateway, resolver Resolver, prober Prober, baseURL string, log *zap.Logger) *Service {
	return &Service{
		gateway:  gw,
		resolver: resolver,
		prober:   prober,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
	}
}

// CallbackURL segue o formato {baseUrl}/api/webhook/evolution/{clientId}/{instanceName}.
// Sistemas externos dependem dele byte a byte.
func (s *Service) CallbackURL(clientID, instanceName string) string {
	return s.baseURL + "/api/webhook/evolution/" + clientID + "/" + url.PathEscape(instanceName)
}

// Get devolve nil quando não há webhook ou quando a consulta ao gateway
// falha; apenas erros de escopo são propagados.
func (s *Service) Get(ctx context.Context, clientID, instanceName string) (*gateway.WebhookConfig, error) {
	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return nil, err
	}

	wc, err := s.gateway.InstanceWebhook(ctx, scope.ContainerName(), instanceName)
	if err != nil {
		s.log.Warn("webhook: falha ao consultar configuração",
			zap.String("client_id", clientID),
			zap.String("instance", instanceName),
			zap.Error(err),
		)
		return nil, nil
	}
	return wc, nil
}

// Set substitui o registro inteiro; eventos não informados deixam de ser
// enviados.
func (s *Service) Set(ctx context.Context, clientID, instanceName, webhookURL string, events []string) (gateway.WebhookConfig, error) {
	if err := validateURL(webhookURL); err != nil {
		return gateway.WebhookConfig{}, err
	}
	normalized := normalizeEvents(events)
	if len(normalized) == 0 {
		return gateway.WebhookConfig{}, apperr.BadRequest("informe ao menos um evento")
	}

	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return gateway.WebhookConfig{}, err
	}

	cfg := gateway.WebhookConfig{URL: webhookURL, Events: normalized, Enabled: true}
	saved, err := s.gateway.SetWebhook(ctx, scope.ContainerName(), instanceName, cfg)
	if err != nil {
		return gateway.WebhookConfig{}, err
	}

	s.log.Info("webhook: configuração atualizada",
		zap.String("client_id", clientID),
		zap.String("instance", instanceName),
		zap.Strings("events", normalized),
	)
	return saved, nil
}

// ConfigureDefault aponta a instância para o callback desta API com os
// eventos padrão.
func (s *Service) ConfigureDefault(ctx context.Context, clientID, containerName, instanceName string) (gateway.WebhookConfig, error) {
	cfg := gateway.WebhookConfig{
		URL:     s.CallbackURL(clientID, instanceName),
		Events:  append([]string(nil), DefaultEvents...),
		Enabled: true,
	}
	return s.gateway.SetWebhook(ctx, containerName, instanceName, cfg)
}

// Test é só diagnóstico: nada é gravado.
func (s *Service) Test(ctx context.Context, webhookURL string) delivery.Result {
	if err := validateURL(webhookURL); err != nil {
		return delivery.Result{Error: err.Error()}
	}
	return s.prober.Probe(ctx, webhookURL)
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.BadRequest("url de webhook inválida")
	}
	return nil
}

// normalizeEvents aceita connection.update ou CONNECTION_UPDATE e remove
// duplicados preservando a ordem.
func normalizeEvents(events []string) []string {
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(e), ".", "_"))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
