package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:  srv.URL,
		APIKey:   "chave",
		Timeout:  2 * time.Second,
		RetryMax: 2,
	}, zap.NewNop(), nil)
}

func TestDeployClientContainer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/containers", r.URL.Path)
		assert.Equal(t, "chave", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["clientId"])

		w.Write([]byte(`{"container":{"containerName":"evo-c1","hostPort":8081,"evolutionApiUrl":"http://evo-c1:8080","managerUrl":"http://evo-c1:8080/manager"}}`))
	})

	d, err := c.DeployClientContainer(t.Context(), "c1")
	require.NoError(t, err)
	assert.Equal(t, Deployment{
		ContainerName:   "evo-c1",
		HostPort:        8081,
		EvolutionAPIURL: "http://evo-c1:8080",
		ManagerURL:      "http://evo-c1:8080/manager",
	}, d)
}

func TestDeployWithoutContainerNameIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})

	_, err := c.DeployClientContainer(t.Context(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, apperr.KindExternalUnavailable, apperr.KindOf(err))
}

func TestReadsAreRetriedWritesAreNot(t *testing.T) {
	var gets, posts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if atomic.AddInt32(&gets, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"ok":true}`))
			return
		}
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	h, err := c.HealthCheck(t.Context())
	require.NoError(t, err)
	assert.True(t, h.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&gets))

	err = c.ContainerAction(t.Context(), "evo-c1", ActionStop)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExternalUnavailable, apperr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))
}

func TestTimeoutIsDistinctKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zap.NewNop(), nil)

	_, err := c.DeployClientContainer(t.Context(), "c1")
	require.Error(t, err)
	assert.True(t, apperr.IsTimeout(err))
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, zap.NewNop(), nil)
	err := c.ContainerAction(t.Context(), "evo", ActionStart)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExternalUnavailable, apperr.KindOf(err))
}

func TestContainerActionRejectsUnknownAction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("não deveria chamar o backend")
	})
	err := c.ContainerAction(t.Context(), "evo", "destroy")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestDeleteInstanceNotFoundIsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/clients/c1/instances/minha%20loja", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
	})
	assert.NoError(t, c.DeleteInstance(t.Context(), "c1", "minha loja"))
}

func TestCreateInstanceStatusShapes(t *testing.T) {
	bodies := []string{
		`{"status":"connecting"}`,
		`{"instance":{"instanceName":"vendas","status":"connecting"}}`,
		`{"instance":{"state":"connecting"}}`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/clients/c1/instances", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, body)
		})
		ci, err := c.CreateInstance(t.Context(), "c1", "vendas")
		require.NoError(t, err, body)
		assert.Equal(t, "vendas", ci.InstanceName, body)
		assert.Equal(t, "connecting", ci.Status, body)
	}
}

func TestConnectionState(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/evo-c1/evolution/instance/connectionState/vendas", r.URL.Path)
		w.Write([]byte(`{"instance":{"instanceName":"vendas","state":"open"}}`))
	})
	cs, err := c.ConnectionState(t.Context(), "evo-c1", "vendas")
	require.NoError(t, err)
	assert.Equal(t, ConnectionState{InstanceName: "vendas", State: StateOpen}, cs)
}

func TestInstanceInfo(t *testing.T) {
	t.Run("encontrada", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "vendas", r.URL.Query().Get("instanceName"))
			w.Write([]byte(`[{"instance":{"instanceName":"vendas","owner":"5511999990000@s.whatsapp.net","status":"open"}}]`))
		})
		info, err := c.InstanceInfo(t.Context(), "evo-c1", "vendas")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "5511999990000@s.whatsapp.net", info.Owner)
	})

	t.Run("404 vira nil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		info, err := c.InstanceInfo(t.Context(), "evo-c1", "vendas")
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("lista vazia vira nil", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})
		info, err := c.InstanceInfo(t.Context(), "evo-c1", "vendas")
		require.NoError(t, err)
		assert.Nil(t, info)
	})
}

func TestInstanceQR(t *testing.T) {
	t.Run("imagem pronta", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"pairingCode":null,"code":"2@abc","base64":"data:image/png;base64,AAAA"}`))
		})
		qr, err := c.InstanceQR(t.Context(), "evo-c1", "vendas")
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,AAAA", qr)
	})

	t.Run("só o código", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":"2@abc,def,ghi"}`))
		})
		qr, err := c.InstanceQR(t.Context(), "evo-c1", "vendas")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
	})

	t.Run("sem QR", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"instance":{"state":"open"}}`))
		})
		qr, err := c.InstanceQR(t.Context(), "evo-c1", "vendas")
		require.NoError(t, err)
		assert.Empty(t, qr)
	})
}

func TestSetWebhookBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/evo-c1/evolution/webhook/set/vendas", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		wh := body["webhook"]
		assert.Equal(t, true, wh["enabled"])
		assert.Equal(t, "http://app/cb", wh["url"])
		assert.Equal(t, false, wh["byEvents"])
		assert.Equal(t, false, wh["base64"])

		w.Write([]byte(`{"status":"SUCCESS"}`))
	})

	cfg := WebhookConfig{URL: "http://app/cb", Events: []string{"CONNECTION_UPDATE"}, Enabled: true}
	got, err := c.SetWebhook(t.Context(), "evo-c1", "vendas", cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestInstanceWebhookNullIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})
	wc, err := c.InstanceWebhook(t.Context(), "evo-c1", "vendas")
	require.NoError(t, err)
	assert.Nil(t, wc)
}

func TestSetBackendOverrides(t *testing.T) {
	var key atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key.Store(r.Header.Get("apikey"))
		w.Write([]byte(`{"status":"ok"}`))
	})
	c.SetBackend("", "outra")

	_, err := c.HealthCheck(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "outra", key.Load())
	assert.Equal(t, "outra", c.APIKey())
}

func TestSetBackendClearsKey(t *testing.T) {
	var key atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key.Store(r.Header.Values("apikey"))
		w.Write([]byte(`{"status":"ok"}`))
	})
	require.NotEmpty(t, c.APIKey())
	c.SetBackend("", "")

	_, err := c.HealthCheck(t.Context())
	require.NoError(t, err)
	assert.Empty(t, key.Load())
	assert.Empty(t, c.APIKey())
}
