package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type fakeClients struct {
	clients map[string]model.Client
}

func (f *fakeClients) Create(ctx context.Context, c model.Client) (model.Client, error) {
	f.clients[c.ID] = c
	return c, nil
}

func (f *fakeClients) GetByID(ctx context.Context, id string) (model.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return model.Client{}, storage.ErrNotFound
	}
	return c, nil
}

type fakeIntegrations struct {
	storage.IntegrationRepository
	byClient map[string]model.ClientIntegration
}

func (f *fakeIntegrations) GetClientIntegration(ctx context.Context, clientID string, t model.IntegrationType) (model.ClientIntegration, error) {
	ci, ok := f.byClient[clientID]
	if !ok {
		return model.ClientIntegration{}, storage.ErrNotFound
	}
	return ci, nil
}

func newResolver() *Resolver {
	clients := &fakeClients{clients: map[string]model.Client{
		"ativo":      {ID: "ativo"},
		"inativo":    {ID: "inativo"},
		"sem-deploy": {ID: "sem-deploy"},
		"sem-integ":  {ID: "sem-integ"},
	}}
	integrations := &fakeIntegrations{byClient: map[string]model.ClientIntegration{
		"ativo":      {ID: "ci1", IsActive: true, Evolution: &model.EvolutionIntegration{ID: "e1", ContainerName: "evo-ativo"}},
		"inativo":    {ID: "ci2", IsActive: false, Evolution: &model.EvolutionIntegration{ID: "e2", ContainerName: "evo-inativo"}},
		"sem-deploy": {ID: "ci3", IsActive: true},
	}}
	return NewResolver(clients, integrations)
}

func TestActiveEvolution(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	scope, err := r.ActiveEvolution(ctx, "ativo")
	require.NoError(t, err)
	assert.Equal(t, "evo-ativo", scope.ContainerName())

	cases := map[string]apperr.Kind{
		"inexistente": apperr.KindNotFound,
		"inativo":     apperr.KindForbidden,
		"sem-deploy":  apperr.KindForbidden,
		"sem-integ":   apperr.KindForbidden,
		"":            apperr.KindBadRequest,
	}
	for clientID, kind := range cases {
		_, err := r.ActiveEvolution(ctx, clientID)
		assert.Equal(t, kind, apperr.KindOf(err), clientID)
	}
}

func TestContainer(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	scope, err := r.Container(ctx, "inativo")
	require.NoError(t, err)
	assert.Equal(t, "evo-inativo", scope.ContainerName())

	_, err = r.Container(ctx, "sem-deploy")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = r.Container(ctx, "sem-integ")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
