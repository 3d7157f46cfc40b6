package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeConnectionStateShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		state string
		ok    bool
	}{
		{"aninhado", `{"instance":{"instanceName":"x","state":"open"}}`, StateOpen, true},
		{"plano", `{"state":"connecting"}`, StateConnecting, true},
		{"status v2", `{"instance":{"connectionStatus":"close"}}`, StateClose, true},
		{"estado desconhecido", `{"state":"refused"}`, StateClose, true},
		{"connected não é open", `{"instance":{"state":"connected"}}`, StateClose, true},
		{"sem estado", `{"instance":{"instanceName":"x"}}`, "", false},
		{"não é objeto", `"open"`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cs, ok := decodeConnectionState([]byte(tc.body), "x")
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.state, cs.State)
				assert.Equal(t, "x", cs.InstanceName)
			}
		})
	}
}

func TestNormalizeState(t *testing.T) {
	assert.Equal(t, StateOpen, NormalizeState("open"))
	assert.Equal(t, StateConnecting, NormalizeState("connecting"))
	assert.Equal(t, StateClose, NormalizeState("OPEN"))
	assert.Equal(t, StateClose, NormalizeState("connected"))
	assert.Equal(t, StateClose, NormalizeState(" connecting "))
	assert.Equal(t, StateClose, NormalizeState(""))
	assert.Equal(t, StateClose, NormalizeState("disconnected"))
}

func TestDecodeInstanceInfoV2(t *testing.T) {
	info, ok := decodeInstanceInfo([]byte(`[{"name":"outra"},{"name":"x","ownerJid":"551100@s.whatsapp.net","connectionStatus":"open"}]`), "x")
	assert.True(t, ok)
	if assert.NotNil(t, info) {
		assert.Equal(t, "551100@s.whatsapp.net", info.Owner)
		assert.Equal(t, "open", info.Status)
	}
}

func TestDecodeContainersShapes(t *testing.T) {
	list, ok := decodeContainers([]byte(`[{"name":"a","status":"running"}]`))
	assert.True(t, ok)
	assert.Len(t, list, 1)

	list, ok = decodeContainers([]byte(`{"containers":[{"containerName":"b","state":"exited","clientId":"c1"}]}`))
	assert.True(t, ok)
	assert.Equal(t, []Container{{Name: "b", ClientID: "c1", Status: "exited"}}, list)
}

func TestDecodeHealth(t *testing.T) {
	h, ok := decodeHealth([]byte(`{"ok":false}`))
	assert.True(t, ok)
	assert.False(t, h.OK)

	h, ok = decodeHealth([]byte(`{"status":"healthy"}`))
	assert.True(t, ok)
	assert.True(t, h.OK)

	_, ok = decodeHealth([]byte(`{}`))
	assert.False(t, ok)
}

func TestDecodeWebhook(t *testing.T) {
	wc, ok := decodeWebhook([]byte(`{"webhook":{"url":"http://a","events":["X"],"enabled":false}}`))
	assert.True(t, ok)
	assert.Equal(t, &WebhookConfig{URL: "http://a", Events: []string{"X"}, Enabled: false}, wc)

	wc, ok = decodeWebhook([]byte(`{"url":"http://b"}`))
	assert.True(t, ok)
	assert.Equal(t, &WebhookConfig{URL: "http://b", Events: []string{}, Enabled: true}, wc)

	wc, ok = decodeWebhook([]byte(`{"enabled":false}`))
	assert.True(t, ok)
	assert.Nil(t, wc)
}
