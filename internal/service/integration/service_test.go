package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/gateway"
	lockmem "github.com/open-apime/evomanager/internal/pkg/locker/memory"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type fakeGateway struct {
	deploy     func(ctx context.Context, clientID string) (gateway.Deployment, error)
	actionErr  error
	actions    []string
	containers []gateway.Container
}

func (f *fakeGateway) DeployClientContainer(ctx context.Context, clientID string) (gateway.Deployment, error) {
	return f.deploy(ctx, clientID)
}

func (f *fakeGateway) ContainerAction(ctx context.Context, containerName, action string) error {
	f.actions = append(f.actions, containerName+":"+action)
	return f.actionErr
}

func (f *fakeGateway) ListContainers(ctx context.Context) ([]gateway.Container, error) {
	return f.containers, nil
}

func (f *fakeGateway) HealthCheck(ctx context.Context) (gateway.Health, error) {
	return gateway.Health{OK: true}, nil
}

func deployed(ctx context.Context, clientID string) (gateway.Deployment, error) {
	return gateway.Deployment{
		ContainerName:   "evo-" + clientID,
		HostPort:        8081,
		EvolutionAPIURL: "http://evo-" + clientID + ":8080",
		ManagerURL:      "http://evo-" + clientID + ":8080/manager",
	}, nil
}

type fakeResolver struct {
	store *fakeStore
}

func (f fakeResolver) Client(ctx context.Context, clientID string) (model.Client, error) {
	if clientID != "c1" {
		return model.Client{}, apperr.NotFound("cliente " + clientID)
	}
	return model.Client{ID: clientID}, nil
}

func (f fakeResolver) Container(ctx context.Context, clientID string) (tenant.Scope, error) {
	ci, ok := f.store.rows[clientID]
	if !ok || ci.Evolution == nil {
		return tenant.Scope{}, apperr.NotFound("container")
	}
	return tenant.Scope{Client: model.Client{ID: clientID}, Integration: ci, Evolution: *ci.Evolution}, nil
}

type fakeCatalog struct {
	storage.GlobalIntegrationRepository
	inactive bool
}

func (f fakeCatalog) GetByType(ctx context.Context, t model.IntegrationType) (model.GlobalIntegration, error) {
	if t != model.IntegrationTypeEvolutionAPI {
		return model.GlobalIntegration{}, storage.ErrNotFound
	}
	return model.GlobalIntegration{Type: t, Name: "Evolution API", Description: "WhatsApp", IsActive: !f.inactive}, nil
}

// fakeStore guarda uma integração por cliente e registra a ordem das
// operações de cada transação.
type fakeStore struct {
	storage.IntegrationRepository

	rows     map[string]model.ClientIntegration
	failTx   error
	txCalls  int
	ops      []string
	statuses []model.ContainerStatus
	health   *time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]model.ClientIntegration{}}
}

func (s *fakeStore) GetClientIntegration(ctx context.Context, clientID string, t model.IntegrationType) (model.ClientIntegration, error) {
	ci, ok := s.rows[clientID]
	if !ok {
		return model.ClientIntegration{}, storage.ErrNotFound
	}
	return ci, nil
}

func (s *fakeStore) ListClientIntegrations(ctx context.Context, clientID string) ([]model.ClientIntegration, error) {
	var out []model.ClientIntegration
	if ci, ok := s.rows[clientID]; ok {
		out = append(out, ci)
	}
	return out, nil
}

func (s *fakeStore) UpdateContainerStatus(ctx context.Context, evolutionID string, status model.ContainerStatus, checkedAt *time.Time) error {
	s.statuses = append(s.statuses, status)
	s.health = checkedAt
	return nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx storage.IntegrationTx) error) error {
	s.txCalls++
	if s.failTx != nil {
		return s.failTx
	}
	tx := &fakeTx{store: s, pending: map[string]model.ClientIntegration{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, ci := range tx.pending {
		s.rows[id] = ci
	}
	for _, id := range tx.deleted {
		delete(s.rows, id)
	}
	return nil
}

type fakeTx struct {
	storage.IntegrationTx
	store   *fakeStore
	pending map[string]model.ClientIntegration
	deleted []string
}

func (t *fakeTx) UpsertClientIntegration(ctx context.Context, ci model.ClientIntegration) (model.ClientIntegration, error) {
	t.store.ops = append(t.store.ops, "upsert_client_integration")
	ci.ID = "ci-" + ci.ClientID
	t.pending[ci.ClientID] = ci
	return ci, nil
}

func (t *fakeTx) UpsertEvolutionIntegration(ctx context.Context, ei model.EvolutionIntegration) (model.EvolutionIntegration, error) {
	t.store.ops = append(t.store.ops, "upsert_evolution_integration")
	ei.ID = "evo-" + ei.ClientIntegrationID
	for id, ci := range t.pending {
		if ci.ID == ei.ClientIntegrationID {
			ci.Evolution = &ei
			t.pending[id] = ci
		}
	}
	return ei, nil
}

func (t *fakeTx) DeleteInstancesByIntegration(ctx context.Context, evolutionID string) error {
	t.store.ops = append(t.store.ops, "delete_instances")
	return nil
}

func (t *fakeTx) DeleteEvolutionIntegration(ctx context.Context, evolutionID string) error {
	t.store.ops = append(t.store.ops, "delete_evolution_integration")
	return nil
}

func (t *fakeTx) DeleteClientIntegration(ctx context.Context, id string) error {
	t.store.ops = append(t.store.ops, "delete_client_integration")
	for clientID, ci := range t.store.rows {
		if ci.ID == id {
			t.deleted = append(t.deleted, clientID)
		}
	}
	return nil
}

func newTestService(gw *fakeGateway, store *fakeStore, catalog fakeCatalog) *Service {
	return NewService(fakeResolver{store: store}, catalog, store, gw, lockmem.NewLocker(), time.Minute, nil, zap.NewNop())
}

func TestActivateProvisionsContainer(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{deploy: deployed}
	s := newTestService(gw, store, fakeCatalog{})

	ci, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	require.NoError(t, err)
	assert.True(t, ci.IsActive)
	assert.Equal(t, "Evolution API", ci.Name)
	require.NotNil(t, ci.Evolution)

	ei := store.rows["c1"].Evolution
	require.NotNil(t, ei)
	assert.Equal(t, "evo-c1", ei.ContainerName)
	assert.Equal(t, 8081, ei.HostPort)
	assert.Equal(t, "http://evo-c1:8080", ei.EvolutionAPIURL)
	assert.Equal(t, "http://evo-c1:8080/manager", ei.ManagerURL)
	assert.Equal(t, model.ContainerStatusRunning, ei.ContainerStatus)
	assert.NotNil(t, ei.LastDeployedAt)
	assert.Empty(t, gw.actions)
}

func TestActivateDeployFailureTouchesNoRows(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{deploy: func(ctx context.Context, clientID string) (gateway.Deployment, error) {
		return gateway.Deployment{}, apperr.Timeout("gateway", context.DeadlineExceeded)
	}}
	s := newTestService(gw, store, fakeCatalog{})

	_, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.True(t, apperr.IsTimeout(err))
	assert.Zero(t, store.txCalls)

	_, err = store.GetClientIntegration(context.Background(), "c1", model.IntegrationTypeEvolutionAPI)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActivateStoreFailureStopsContainerOnce(t *testing.T) {
	store := newFakeStore()
	dbErr := errors.New("database is locked")
	store.failTx = dbErr
	gw := &fakeGateway{deploy: deployed, actionErr: errors.New("stop falhou")}
	s := newTestService(gw, store, fakeCatalog{})

	_, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, []string{"evo-c1:stop"}, gw.actions)
}

func TestActivateUnknownClientOrType(t *testing.T) {
	gw := &fakeGateway{deploy: deployed}
	s := newTestService(gw, newFakeStore(), fakeCatalog{})

	_, err := s.Activate(context.Background(), "nope", model.IntegrationTypeEvolutionAPI, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = s.Activate(context.Background(), "c1", "CRM", nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	s = newTestService(gw, newFakeStore(), fakeCatalog{inactive: true})
	_, err = s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestActivateConcurrentIsConflict(t *testing.T) {
	store := newFakeStore()
	lk := lockmem.NewLocker()
	held, err := lk.Acquire(context.Background(), lockKey("c1", model.IntegrationTypeEvolutionAPI), time.Minute)
	require.NoError(t, err)
	defer held.Release(context.Background())

	gw := &fakeGateway{deploy: deployed}
	s := NewService(fakeResolver{store: store}, fakeCatalog{}, store, gw, lk, time.Minute, nil, zap.NewNop())

	_, err = s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestDeactivateDeletesInOrder(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{deploy: deployed}
	s := newTestService(gw, store, fakeCatalog{})
	_, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	require.NoError(t, err)
	store.ops = nil

	res, err := s.Deactivate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"delete_instances", "delete_evolution_integration", "delete_client_integration"}, store.ops)
	assert.Empty(t, store.rows)
}

func TestDeactivateSucceedsWhenStopFails(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{deploy: deployed}
	s := newTestService(gw, store, fakeCatalog{})
	_, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	require.NoError(t, err)

	gw.actionErr = apperr.Unavailable("gateway fora", errors.New("refused"))
	res, err := s.Deactivate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"evo-c1:stop"}, gw.actions)
	assert.Empty(t, store.rows)
}

func TestDeactivateMissingIntegration(t *testing.T) {
	s := newTestService(&fakeGateway{}, newFakeStore(), fakeCatalog{})
	_, err := s.Deactivate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestContainerActionPersistsStatus(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{deploy: deployed}
	s := newTestService(gw, store, fakeCatalog{})
	_, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	require.NoError(t, err)

	res, err := s.ContainerAction(context.Background(), "c1", "STOP")
	require.NoError(t, err)
	assert.Equal(t, model.ContainerStatusStopped, res.Status)
	assert.Equal(t, []string{"evo-c1:stop"}, gw.actions)
	assert.Equal(t, []model.ContainerStatus{model.ContainerStatusStopped}, store.statuses)

	_, err = s.ContainerAction(context.Background(), "c1", "destroy")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestCheckHealth(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{deploy: deployed, containers: []gateway.Container{
		{Name: "evo-c2", Status: "running"},
		{Name: "evo-c1", Status: "exited"},
	}}
	s := newTestService(gw, store, fakeCatalog{})
	_, err := s.Activate(context.Background(), "c1", model.IntegrationTypeEvolutionAPI, nil)
	require.NoError(t, err)

	res, err := s.CheckHealth(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, res.GatewayOK)
	assert.Equal(t, model.ContainerStatusStopped, res.Status)
	assert.NotNil(t, store.health)

	gw.containers = nil
	res, err = s.CheckHealth(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.ContainerStatusError, res.Status)
}

func TestListReturnsEmptySlice(t *testing.T) {
	s := newTestService(&fakeGateway{}, newFakeStore(), fakeCatalog{})
	list, err := s.List(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
