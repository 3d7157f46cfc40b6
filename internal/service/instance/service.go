// Package instance cria e remove sessões WhatsApp dentro do container
// Evolution do cliente, mantendo o store local em sincronia.
package instance

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/metrics"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

// Letras, dígitos, espaço, ponto, hífen e underscore; começa com letra ou
// dígito.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._-]{0,63}$`)

type Gateway interface {
	CreateInstance(ctx context.Context, clientID, instanceName string) (gateway.CreatedInstance, error)
	DeleteInstance(ctx context.Context, clientID, instanceName string) error
}

type WebhookConfigurer interface {
	ConfigureDefault(ctx context.Context, clientID, containerName, instanceName string) (gateway.WebhookConfig, error)
}

type Resolver interface {
	ActiveEvolution(ctx context.Context, clientID string) (tenant.Scope, error)
	Container(ctx context.Context, clientID string) (tenant.Scope, error)
}

type Service struct {
	resolver     Resolver
	gateway      Gateway
	webhooks     WebhookConfigurer
	integrations storage.IntegrationRepository
	instances    storage.InstanceRepository
	metrics      *metrics.Collector
	log          *zap.Logger
	now          func() time.Time
}

func NewService(
	resolver Resolver,
	gw Gateway,
	webhooks WebhookConfigurer,
	integrations storage.IntegrationRepository,
	instances storage.InstanceRepository,
	m *metrics.Collector,
	log *zap.Logger,
) *Service {
	return &Service{
		resolver:     resolver,
		gateway:      gw,
		webhooks:     webhooks,
		integrations: integrations,
		instances:    instances,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

type CreateResult struct {
	Instance          model.EvolutionInstance `json:"instance"`
	WebhookConfigured bool                    `json:"webhookConfigured"`
	WebhookError      string                  `json:"webhookError,omitempty"`
}

type DeleteResult struct {
	Success bool `json:"success"`
}

// MapStatus converte o estado reportado pelo gateway no status local.
func MapStatus(state string) model.InstanceStatus {
	switch gateway.NormalizeState(state) {
	case gateway.StateOpen:
		return model.InstanceStatusConnected
	case gateway.StateConnecting:
		return model.InstanceStatusConnecting
	default:
		return model.InstanceStatusDisconnected
	}
}

func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return apperr.BadRequest("nome da instância inválido")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, clientID, instanceName string) (CreateResult, error) {
	// Sem integração ativa a resposta é FORBIDDEN, mesmo com nome inválido.
	scope, err := s.resolver.ActiveEvolution(ctx, clientID)
	if err != nil {
		return CreateResult{}, err
	}

	name := strings.TrimSpace(instanceName)
	if err := ValidateName(name); err != nil {
		return CreateResult{}, err
	}

	_, err = s.instances.GetByName(ctx, scope.Evolution.ID, name)
	switch {
	case err == nil:
		return CreateResult{}, apperr.Conflict("instância já existe: " + name)
	case !errors.Is(err, storage.ErrNotFound):
		return CreateResult{}, storage.AppError("verificar instância", err)
	}

	remote, err := s.gateway.CreateInstance(ctx, clientID, name)
	if err != nil {
		return CreateResult{}, err
	}

	inst := model.EvolutionInstance{
		EvolutionIntegrationID: scope.Evolution.ID,
		InstanceName:           name,
		Status:                 MapStatus(remote.Status),
	}
	if inst.Status == model.InstanceStatusConnected {
		connectedAt := s.now().UTC()
		if remote.LastConnected != nil {
			connectedAt = *remote.LastConnected
		}
		inst.LastConnected = &connectedAt
	}

	// A integração é reverificada na mesma transação do insert: uma
	// desativação concorrente não deixa instância órfã.
	err = s.integrations.WithTx(ctx, func(tx storage.IntegrationTx) error {
		if err := tx.LockActiveIntegration(ctx, scope.Integration.ID); err != nil {
			return err
		}
		created, err := tx.CreateInstance(ctx, inst)
		if err != nil {
			return err
		}
		inst = created
		return nil
	})
	if err != nil {
		return CreateResult{}, s.failCreate(ctx, clientID, name, err)
	}

	s.log.Info("instância criada",
		zap.String("client_id", clientID),
		zap.String("instance", name),
		zap.String("status", string(inst.Status)),
	)

	result := CreateResult{Instance: inst, WebhookConfigured: true}
	if _, err := s.webhooks.ConfigureDefault(ctx, clientID, scope.ContainerName(), name); err != nil {
		s.log.Warn("falha ao configurar webhook padrão",
			zap.String("client_id", clientID),
			zap.String("instance", name),
			zap.Error(err),
		)
		result.WebhookConfigured = false
		result.WebhookError = err.Error()
	}
	return result, nil
}

// failCreate desfaz a criação remota quando o insert local não aconteceu.
// Em conflito de nome a instância remota pertence a quem inseriu primeiro e
// não é tocada.
func (s *Service) failCreate(ctx context.Context, clientID, name string, cause error) error {
	if errors.Is(cause, storage.ErrConflict) {
		return apperr.Wrap(apperr.KindConflict, "instância já existe: "+name, cause)
	}

	outcome := "ok"
	if err := s.gateway.DeleteInstance(ctx, clientID, name); err != nil {
		outcome = "error"
		s.log.Error("falha ao remover instância remota após erro local",
			zap.String("client_id", clientID),
			zap.String("instance", name),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
	s.metrics.Compensation("instance_delete", outcome)

	if errors.Is(cause, storage.ErrIntegrationInactive) {
		return apperr.Wrap(apperr.KindForbidden, "integração Evolution desativada durante a criação", cause)
	}
	return apperr.Internal("salvar instância", cause)
}

// Delete remove primeiro no gateway. Se a remoção remota falhar o registro
// local é mantido, para que o operador possa tentar de novo.
func (s *Service) Delete(ctx context.Context, clientID, instanceName string) (DeleteResult, error) {
	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return DeleteResult{}, err
	}

	name := strings.TrimSpace(instanceName)
	inst, err := s.instances.GetByName(ctx, scope.Evolution.ID, name)
	if err != nil {
		return DeleteResult{}, storage.AppError("instância "+name, err)
	}

	if err := s.gateway.DeleteInstance(ctx, clientID, inst.InstanceName); err != nil {
		return DeleteResult{}, err
	}

	if err := s.instances.Delete(ctx, inst.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return DeleteResult{}, apperr.Internal("remover instância local", err)
	}

	s.log.Info("instância removida",
		zap.String("client_id", clientID),
		zap.String("instance", inst.InstanceName),
	)
	return DeleteResult{Success: true}, nil
}

func (s *Service) List(ctx context.Context, clientID string) ([]model.EvolutionInstance, error) {
	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return nil, err
	}
	list, err := s.instances.ListByIntegration(ctx, scope.Evolution.ID)
	if err != nil {
		return nil, apperr.Internal("listar instâncias", err)
	}
	if list == nil {
		list = []model.EvolutionInstance{}
	}
	return list, nil
}
