// Package tenant resolve o escopo Evolution de um cliente: o cliente, sua
// integração EVOLUTION_API e o container provisionado.
package tenant

import (
	"context"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type Scope struct {
	Client      model.Client
	Integration model.ClientIntegration
	Evolution   model.EvolutionIntegration
}

func (s Scope) ContainerName() string { return s.Evolution.ContainerName }

type Resolver struct {
	clients      storage.ClientRepository
	integrations storage.IntegrationRepository
}

func NewResolver(clients storage.ClientRepository, integrations storage.IntegrationRepository) *Resolver {
	return &Resolver{clients: clients, integrations: integrations}
}

func (r *Resolver) Client(ctx context.Context, clientID string) (model.Client, error) {
	if clientID == "" {
		return model.Client{}, apperr.BadRequest("clientId obrigatório")
	}
	c, err := r.clients.GetByID(ctx, clientID)
	if err != nil {
		return model.Client{}, storage.AppError("cliente "+clientID, err)
	}
	return c, nil
}

// ActiveEvolution exige integração ativa com container provisionado; a
// ausência de qualquer um dos dois é FORBIDDEN.
func (r *Resolver) ActiveEvolution(ctx context.Context, clientID string) (Scope, error) {
	scope, err := r.lookup(ctx, clientID)
	if err != nil {
		if scope.Client.ID != "" && apperr.KindOf(err) == apperr.KindNotFound {
			return Scope{}, apperr.Wrap(apperr.KindForbidden, "integração Evolution não ativa para o cliente", err)
		}
		return Scope{}, err
	}
	if !scope.Integration.IsActive {
		return Scope{}, apperr.Forbidden("integração Evolution não ativa para o cliente")
	}
	return scope, nil
}

// Container só exige que o container esteja resolvível; a ausência é
// NOT_FOUND.
func (r *Resolver) Container(ctx context.Context, clientID string) (Scope, error) {
	scope, err := r.lookup(ctx, clientID)
	if err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// lookup devolve o cliente preenchido mesmo quando a integração falta, para
// que o chamador saiba qual parte não existe.
func (r *Resolver) lookup(ctx context.Context, clientID string) (Scope, error) {
	c, err := r.Client(ctx, clientID)
	if err != nil {
		return Scope{}, err
	}
	scope := Scope{Client: c}

	ci, err := r.integrations.GetClientIntegration(ctx, clientID, model.IntegrationTypeEvolutionAPI)
	if err != nil {
		return scope, storage.AppError("integração Evolution do cliente "+clientID, err)
	}
	scope.Integration = ci

	if ci.Evolution == nil || ci.Evolution.ContainerName == "" {
		return scope, apperr.Wrap(apperr.KindNotFound, "container Evolution não configurado", storage.ErrNotFound)
	}
	scope.Evolution = *ci.Evolution
	return scope, nil
}
