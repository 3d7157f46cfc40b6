package storage

import (
	"context"
	"errors"
	"time"

	"github.com/open-apime/evomanager/internal/storage/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrIntegrationInactive é retornado por LockActiveIntegration quando a
	// integração foi desativada (ou removida) entre a leitura e a escrita.
	ErrIntegrationInactive = errors.New("integration inactive")
)

type ClientRepository interface {
	Create(ctx context.Context, client model.Client) (model.Client, error)
	GetByID(ctx context.Context, id string) (model.Client, error)
}

type GlobalIntegrationRepository interface {
	Create(ctx context.Context, gi model.GlobalIntegration) (model.GlobalIntegration, error)
	GetByType(ctx context.Context, t model.IntegrationType) (model.GlobalIntegration, error)
	List(ctx context.Context) ([]model.GlobalIntegration, error)
	Update(ctx context.Context, gi model.GlobalIntegration) (model.GlobalIntegration, error)
}

// IntegrationRepository cobre client_integrations e evolution_api_integrations.
// Escritas que envolvem mais de uma linha passam por WithTx.
type IntegrationRepository interface {
	GetClientIntegration(ctx context.Context, clientID string, t model.IntegrationType) (model.ClientIntegration, error)
	ListClientIntegrations(ctx context.Context, clientID string) ([]model.ClientIntegration, error)
	GetEvolutionIntegration(ctx context.Context, clientIntegrationID string) (model.EvolutionIntegration, error)
	UpdateContainerStatus(ctx context.Context, evolutionID string, status model.ContainerStatus, healthCheckedAt *time.Time) error
	WithTx(ctx context.Context, fn func(tx IntegrationTx) error) error
}

// IntegrationTx é a visão transacional do store. Tudo executado dentro de
// WithTx é confirmado junto ou descartado junto.
type IntegrationTx interface {
	UpsertClientIntegration(ctx context.Context, ci model.ClientIntegration) (model.ClientIntegration, error)
	UpsertEvolutionIntegration(ctx context.Context, ei model.EvolutionIntegration) (model.EvolutionIntegration, error)
	LockActiveIntegration(ctx context.Context, clientIntegrationID string) error
	CreateInstance(ctx context.Context, inst model.EvolutionInstance) (model.EvolutionInstance, error)
	DeleteInstancesByIntegration(ctx context.Context, evolutionID string) error
	DeleteEvolutionIntegration(ctx context.Context, evolutionID string) error
	DeleteClientIntegration(ctx context.Context, clientIntegrationID string) error
}

type InstanceRepository interface {
	GetByName(ctx context.Context, evolutionID, instanceName string) (model.EvolutionInstance, error)
	ListByIntegration(ctx context.Context, evolutionID string) ([]model.EvolutionInstance, error)
	UpdateStatus(ctx context.Context, id string, status model.InstanceStatus, lastConnected *time.Time) error
	UpdatePhoneNumber(ctx context.Context, id, phoneNumber string) error
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
