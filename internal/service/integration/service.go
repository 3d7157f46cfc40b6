// Package integration ativa e desativa integrações de clientes. Para
// EVOLUTION_API a ativação provisiona um container no gateway e a
// desativação o para, sempre mantendo o store consistente com o remoto.
package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/metrics"
	"github.com/open-apime/evomanager/internal/pkg/locker"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type Gateway interface {
	DeployClientContainer(ctx context.Context, clientID string) (gateway.Deployment, error)
	ContainerAction(ctx context.Context, containerName, action string) error
	ListContainers(ctx context.Context) ([]gateway.Container, error)
	HealthCheck(ctx context.Context) (gateway.Health, error)
}

type Resolver interface {
	Client(ctx context.Context, clientID string) (model.Client, error)
	Container(ctx context.Context, clientID string) (tenant.Scope, error)
}

type Service struct {
	resolver     Resolver
	catalog      storage.GlobalIntegrationRepository
	integrations storage.IntegrationRepository
	gateway      Gateway
	locker       locker.Locker
	lockTTL      time.Duration
	metrics      *metrics.Collector
	log          *zap.Logger
	now          func() time.Time
}

func NewService(
	resolver Resolver,
	catalog storage.GlobalIntegrationRepository,
	integrations storage.IntegrationRepository,
	gw Gateway,
	lk locker.Locker,
	lockTTL time.Duration,
	m *metrics.Collector,
	log *zap.Logger,
) *Service {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &Service{
		resolver:     resolver,
		catalog:      catalog,
		integrations: integrations,
		gateway:      gw,
		locker:       lk,
		lockTTL:      lockTTL,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

type DeactivateResult struct {
	Success bool `json:"success"`
}

type ContainerResult struct {
	ContainerName string                `json:"containerName"`
	Action        string                `json:"action"`
	Status        model.ContainerStatus `json:"containerStatus"`
}

type HealthResult struct {
	ContainerName string                `json:"containerName"`
	GatewayOK     bool                  `json:"gatewayOk"`
	Status        model.ContainerStatus `json:"containerStatus"`
	CheckedAt     time.Time             `json:"checkedAt"`
}

func lockKey(clientID string, t model.IntegrationType) string {
	return "activation:" + clientID + ":" + string(t)
}

// acquire serializa ativação e desativação do mesmo (cliente, tipo).
func (s *Service) acquire(ctx context.Context, clientID string, t model.IntegrationType) (func(), error) {
	lock, err := s.locker.Acquire(ctx, lockKey(clientID, t), s.lockTTL)
	if err != nil {
		if errors.Is(err, locker.ErrLocked) {
			return nil, apperr.Wrap(apperr.KindConflict, "operação em andamento para esta integração", err)
		}
		return nil, apperr.Internal("adquirir lock da integração", err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			s.log.Warn("falha ao liberar lock da integração",
				zap.String("client_id", clientID),
				zap.String("type", string(t)),
				zap.Error(err),
			)
		}
	}, nil
}

// Activate cria ou reativa a integração do cliente. Com EVOLUTION_API o
// container é provisionado antes de qualquer escrita local; se a escrita
// falhar depois disso, o container recebe um único stop de compensação.
func (s *Service) Activate(ctx context.Context, clientID string, t model.IntegrationType, cfg map[string]any) (model.ClientIntegration, error) {
	if t == "" {
		return model.ClientIntegration{}, apperr.BadRequest("tipo de integração obrigatório")
	}
	if _, err := s.resolver.Client(ctx, clientID); err != nil {
		return model.ClientIntegration{}, err
	}

	gi, err := s.catalog.GetByType(ctx, t)
	if err != nil {
		return model.ClientIntegration{}, storage.AppError("integração "+string(t), err)
	}
	if !gi.IsActive {
		return model.ClientIntegration{}, apperr.NotFound("integração " + string(t) + " indisponível no catálogo")
	}

	release, err := s.acquire(ctx, clientID, t)
	if err != nil {
		s.metrics.Activation(string(t), "locked")
		return model.ClientIntegration{}, err
	}
	defer release()

	var deployment *gateway.Deployment
	if t == model.IntegrationTypeEvolutionAPI {
		d, err := s.gateway.DeployClientContainer(ctx, clientID)
		if err != nil {
			s.metrics.Activation(string(t), "deploy_error")
			s.log.Error("falha ao provisionar container",
				zap.String("client_id", clientID),
				zap.Error(err),
			)
			return model.ClientIntegration{}, apperr.Internal("provisionar container Evolution", err)
		}
		deployment = &d
	}

	var result model.ClientIntegration
	err = s.integrations.WithTx(ctx, func(tx storage.IntegrationTx) error {
		ci, err := tx.UpsertClientIntegration(ctx, model.ClientIntegration{
			ClientID:    clientID,
			Type:        t,
			IsActive:    true,
			Name:        gi.Name,
			Description: gi.Description,
			Config:      cfg,
		})
		if err != nil {
			return err
		}
		if deployment != nil {
			deployedAt := s.now().UTC()
			ei, err := tx.UpsertEvolutionIntegration(ctx, model.EvolutionIntegration{
				ClientIntegrationID: ci.ID,
				ContainerName:       deployment.ContainerName,
				HostPort:            deployment.HostPort,
				EvolutionAPIURL:     deployment.EvolutionAPIURL,
				ManagerURL:          deployment.ManagerURL,
				ContainerStatus:     model.ContainerStatusRunning,
				LastDeployedAt:      &deployedAt,
			})
			if err != nil {
				return err
			}
			ci.Evolution = &ei
		}
		result = ci
		return nil
	})
	if err != nil {
		s.metrics.Activation(string(t), "store_error")
		s.log.Error("falha ao salvar integração",
			zap.String("client_id", clientID),
			zap.String("type", string(t)),
			zap.Error(err),
		)
		if deployment != nil {
			s.stopContainer(ctx, clientID, deployment.ContainerName)
		}
		return model.ClientIntegration{}, apperr.Internal("salvar integração", err)
	}

	s.metrics.Activation(string(t), "ok")
	s.log.Info("integração ativada",
		zap.String("client_id", clientID),
		zap.String("type", string(t)),
	)
	return result, nil
}

// stopContainer é a compensação da ativação: uma tentativa, falha só
// registrada.
func (s *Service) stopContainer(ctx context.Context, clientID, containerName string) {
	outcome := "ok"
	if err := s.gateway.ContainerAction(context.WithoutCancel(ctx), containerName, gateway.ActionStop); err != nil {
		outcome = "error"
		s.log.Error("falha ao parar container após erro no store",
			zap.String("client_id", clientID),
			zap.String("container", containerName),
			zap.Error(err),
		)
	}
	s.metrics.Compensation("container_stop", outcome)
}

// Deactivate para o container (sem bloquear em caso de falha) e remove
// instâncias, integração Evolution e integração do cliente numa transação.
func (s *Service) Deactivate(ctx context.Context, clientID string, t model.IntegrationType) (DeactivateResult, error) {
	if _, err := s.resolver.Client(ctx, clientID); err != nil {
		return DeactivateResult{}, err
	}
	ci, err := s.integrations.GetClientIntegration(ctx, clientID, t)
	if err != nil {
		return DeactivateResult{}, storage.AppError("integração "+string(t)+" do cliente", err)
	}

	release, err := s.acquire(ctx, clientID, t)
	if err != nil {
		return DeactivateResult{}, err
	}
	defer release()

	if ci.Evolution != nil && ci.Evolution.ContainerName != "" {
		if err := s.gateway.ContainerAction(ctx, ci.Evolution.ContainerName, gateway.ActionStop); err != nil {
			s.log.Warn("falha ao parar container na desativação; seguindo com a remoção local",
				zap.String("client_id", clientID),
				zap.String("container", ci.Evolution.ContainerName),
				zap.Error(err),
			)
		}
	}

	err = s.integrations.WithTx(ctx, func(tx storage.IntegrationTx) error {
		if ci.Evolution != nil {
			if err := tx.DeleteInstancesByIntegration(ctx, ci.Evolution.ID); err != nil {
				return err
			}
			if err := tx.DeleteEvolutionIntegration(ctx, ci.Evolution.ID); err != nil {
				return err
			}
		}
		return tx.DeleteClientIntegration(ctx, ci.ID)
	})
	if err != nil {
		return DeactivateResult{}, apperr.Internal("remover integração", err)
	}

	s.log.Info("integração desativada",
		zap.String("client_id", clientID),
		zap.String("type", string(t)),
	)
	return DeactivateResult{Success: true}, nil
}

func (s *Service) List(ctx context.Context, clientID string) ([]model.ClientIntegration, error) {
	if _, err := s.resolver.Client(ctx, clientID); err != nil {
		return nil, err
	}
	list, err := s.integrations.ListClientIntegrations(ctx, clientID)
	if err != nil {
		return nil, apperr.Internal("listar integrações", err)
	}
	if list == nil {
		list = []model.ClientIntegration{}
	}
	return list, nil
}

// ContainerAction executa start/stop/restart no container do cliente e
// grava o status resultante.
func (s *Service) ContainerAction(ctx context.Context, clientID, action string) (ContainerResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	var status model.ContainerStatus
	switch action {
	case gateway.ActionStart, gateway.ActionRestart:
		status = model.ContainerStatusRunning
	case gateway.ActionStop:
		status = model.ContainerStatusStopped
	default:
		return ContainerResult{}, apperr.BadRequest("ação inválida: " + action)
	}

	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return ContainerResult{}, err
	}
	if err := s.gateway.ContainerAction(ctx, scope.ContainerName(), action); err != nil {
		return ContainerResult{}, err
	}
	if err := s.integrations.UpdateContainerStatus(ctx, scope.Evolution.ID, status, nil); err != nil {
		return ContainerResult{}, apperr.Internal("atualizar status do container", err)
	}

	s.log.Info("ação executada no container",
		zap.String("client_id", clientID),
		zap.String("container", scope.ContainerName()),
		zap.String("action", action),
	)
	return ContainerResult{ContainerName: scope.ContainerName(), Action: action, Status: status}, nil
}

// CheckHealth consulta o gateway e a lista de containers. O status do
// container do cliente e o horário da checagem são gravados.
func (s *Service) CheckHealth(ctx context.Context, clientID string) (HealthResult, error) {
	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return HealthResult{}, err
	}

	health, err := s.gateway.HealthCheck(ctx)
	if err != nil {
		return HealthResult{}, err
	}
	containers, err := s.gateway.ListContainers(ctx)
	if err != nil {
		return HealthResult{}, err
	}

	status := model.ContainerStatusError
	for _, c := range containers {
		if c.Name == scope.ContainerName() {
			status = ContainerStatusOf(c.Status)
			break
		}
	}

	checkedAt := s.now().UTC()
	if err := s.integrations.UpdateContainerStatus(ctx, scope.Evolution.ID, status, &checkedAt); err != nil {
		return HealthResult{}, apperr.Internal("atualizar saúde do container", err)
	}

	return HealthResult{
		ContainerName: scope.ContainerName(),
		GatewayOK:     health.OK,
		Status:        status,
		CheckedAt:     checkedAt,
	}, nil
}

// ContainerStatusOf traduz o status reportado pelo host de containers.
// Container ausente da listagem é tratado como ERROR pelo chamador.
func ContainerStatusOf(s string) model.ContainerStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "up", "healthy":
		return model.ContainerStatusRunning
	case "exited", "stopped", "created", "paused":
		return model.ContainerStatusStopped
	case "dead", "error", "unhealthy", "restarting":
		return model.ContainerStatusError
	default:
		return model.ContainerStatusUnknown
	}
}
