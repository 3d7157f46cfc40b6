package webhookconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/storage/model"
	"github.com/open-apime/evomanager/internal/webhook/delivery"
)

type fakeGateway struct {
	find func(ctx context.Context, container, name string) (*gateway.WebhookConfig, error)
	set  func(ctx context.Context, container, name string, cfg gateway.WebhookConfig) (gateway.WebhookConfig, error)
}

func (f *fakeGateway) InstanceWebhook(ctx context.Context, container, name string) (*gateway.WebhookConfig, error) {
	return f.find(ctx, container, name)
}

func (f *fakeGateway) SetWebhook(ctx context.Context, container, name string, cfg gateway.WebhookConfig) (gateway.WebhookConfig, error) {
	return f.set(ctx, container, name, cfg)
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Container(ctx context.Context, clientID string) (tenant.Scope, error) {
	if f.err != nil {
		return tenant.Scope{}, f.err
	}
	return tenant.Scope{Evolution: model.EvolutionIntegration{ContainerName: "evo-" + clientID}}, nil
}

type fakeProber struct {
	calls int
}

func (f *fakeProber) Probe(ctx context.Context, url string) delivery.Result {
	f.calls++
	return delivery.Result{OK: true, Status: 200, Ms: 3}
}

func TestCallbackURL(t *testing.T) {
	s := NewService(nil, nil, nil, "https://app.exemplo.com/", zap.NewNop())
	assert.Equal(t,
		"https://app.exemplo.com/api/webhook/evolution/c1/minha%20loja",
		s.CallbackURL("c1", "minha loja"),
	)
}

func TestGetSwallowsGatewayFailure(t *testing.T) {
	gw := &fakeGateway{find: func(ctx context.Context, container, name string) (*gateway.WebhookConfig, error) {
		return nil, apperr.Unavailable("gateway fora", errors.New("refused"))
	}}
	s := NewService(gw, fakeResolver{}, nil, "http://x", zap.NewNop())

	wc, err := s.Get(context.Background(), "c1", "vendas")
	require.NoError(t, err)
	assert.Nil(t, wc)
}

func TestGetPropagatesScopeError(t *testing.T) {
	s := NewService(&fakeGateway{}, fakeResolver{err: apperr.NotFound("container")}, nil, "http://x", zap.NewNop())
	_, err := s.Get(context.Background(), "c1", "vendas")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSetReplacesRegistration(t *testing.T) {
	var sent gateway.WebhookConfig
	gw := &fakeGateway{set: func(ctx context.Context, container, name string, cfg gateway.WebhookConfig) (gateway.WebhookConfig, error) {
		assert.Equal(t, "evo-c1", container)
		sent = cfg
		return cfg, nil
	}}
	s := NewService(gw, fakeResolver{}, nil, "http://x", zap.NewNop())

	got, err := s.Set(context.Background(), "c1", "vendas", "https://hook.exemplo.com/in", []string{"connection.update", "CONNECTION_UPDATE", " messages.upsert "})
	require.NoError(t, err)
	assert.Equal(t, []string{"CONNECTION_UPDATE", "MESSAGES_UPSERT"}, sent.Events)
	assert.True(t, got.Enabled)
}

func TestSetValidation(t *testing.T) {
	s := NewService(&fakeGateway{}, fakeResolver{}, nil, "http://x", zap.NewNop())
	ctx := context.Background()

	_, err := s.Set(ctx, "c1", "vendas", "ftp://nope", []string{"X"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = s.Set(ctx, "c1", "vendas", "https://ok.com", nil)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	s = NewService(&fakeGateway{}, fakeResolver{err: apperr.NotFound("container")}, nil, "http://x", zap.NewNop())
	_, err = s.Set(ctx, "c1", "vendas", "https://ok.com", []string{"X"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestConfigureDefault(t *testing.T) {
	gw := &fakeGateway{set: func(ctx context.Context, container, name string, cfg gateway.WebhookConfig) (gateway.WebhookConfig, error) {
		assert.Equal(t, "evo-c1", container)
		assert.Equal(t, "http://api/api/webhook/evolution/c1/vendas", cfg.URL)
		assert.Equal(t, DefaultEvents, cfg.Events)
		return cfg, nil
	}}
	s := NewService(gw, nil, nil, "http://api", zap.NewNop())
	_, err := s.ConfigureDefault(context.Background(), "c1", "evo-c1", "vendas")
	require.NoError(t, err)
}

func TestTestDoesNotProbeInvalidURL(t *testing.T) {
	p := &fakeProber{}
	s := NewService(nil, nil, p, "http://x", zap.NewNop())

	res := s.Test(context.Background(), "não é url")
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 0, p.calls)

	res = s.Test(context.Background(), "https://hook.exemplo.com")
	assert.True(t, res.OK)
	assert.Equal(t, 1, p.calls)
}
