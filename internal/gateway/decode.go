package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// O backend mudou o formato das respostas entre versões do Evolution. Toda
// variação conhecida é resolvida aqui; os serviços só veem os tipos canônicos.

type object map[string]json.RawMessage

func parseObject(body []byte) (object, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}
	var obj object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// nested devolve o primeiro campo-objeto encontrado entre keys.
func (o object) nested(keys ...string) (object, bool) {
	for _, k := range keys {
		raw, ok := o[k]
		if !ok {
			continue
		}
		if inner, ok := parseObject(raw); ok {
			return inner, true
		}
	}
	return nil, false
}

func (o object) str(keys ...string) string {
	for _, k := range keys {
		raw, ok := o[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func (o object) integer(keys ...string) int {
	for _, k := range keys {
		raw, ok := o[k]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			var parsed int
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func (o object) boolean(key string) (bool, bool) {
	raw, ok := o[key]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

func (o object) timestamp(keys ...string) *time.Time {
	s := o.str(keys...)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func (o object) strings(key string) []string {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// parseList aceita um array puro ou um objeto que embrulha o array em uma
// das keys.
func parseList(body []byte, keys ...string) ([]object, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}
	if body[0] == '[' {
		var list []object
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, false
		}
		return list, true
	}
	obj, ok := parseObject(body)
	if !ok {
		return nil, false
	}
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			return parseList(raw)
		}
	}
	return nil, false
}

// NormalizeState reduz o estado reportado a open, connecting ou close. Só
// "open" e "connecting" exatos são reconhecidos; qualquer outro valor é close.
func NormalizeState(s string) string {
	switch s {
	case StateOpen:
		return StateOpen
	case StateConnecting:
		return StateConnecting
	default:
		return StateClose
	}
}

func decodeDeployment(body []byte) (Deployment, bool) {
	obj, ok := parseObject(body)
	if !ok {
		return Deployment{}, false
	}
	if inner, ok := obj.nested("container", "data"); ok {
		obj = inner
	}
	d := Deployment{
		ContainerName:   obj.str("containerName", "name"),
		HostPort:        obj.integer("hostPort", "port"),
		EvolutionAPIURL: obj.str("evolutionApiUrl", "apiUrl"),
		ManagerURL:      obj.str("managerUrl"),
	}
	return d, d.ContainerName != ""
}

func decodeContainers(body []byte) ([]Container, bool) {
	list, ok := parseList(body, "containers", "data")
	if !ok {
		return nil, false
	}
	out := make([]Container, 0, len(list))
	for _, obj := range list {
		c := Container{
			Name:     obj.str("name", "containerName"),
			ClientID: obj.str("clientId"),
			Status:   obj.str("status", "state"),
			HostPort: obj.integer("hostPort", "port"),
		}
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out, true
}

func decodeHealth(body []byte) (Health, bool) {
	obj, ok := parseObject(body)
	if !ok {
		return Health{}, false
	}
	h := Health{Status: obj.str("status")}
	if v, ok := obj.boolean("ok"); ok {
		h.OK = v
		return h, true
	}
	if h.Status == "" {
		return Health{}, false
	}
	switch strings.ToLower(h.Status) {
	case "ok", "healthy", "up":
		h.OK = true
	}
	return h, true
}

func decodeCreatedInstance(body []byte, requested string) (CreatedInstance, bool) {
	obj, ok := parseObject(body)
	if !ok {
		return CreatedInstance{}, false
	}
	ci := CreatedInstance{
		InstanceName:  obj.str("instanceName"),
		Status:        obj.str("status", "state"),
		LastConnected: obj.timestamp("lastConnected"),
	}
	if inner, ok := obj.nested("instance"); ok {
		if ci.InstanceName == "" {
			ci.InstanceName = inner.str("instanceName", "name")
		}
		if ci.Status == "" {
			ci.Status = inner.str("status", "state")
		}
		if ci.LastConnected == nil {
			ci.LastConnected = inner.timestamp("lastConnected")
		}
	}
	if ci.InstanceName == "" {
		ci.InstanceName = requested
	}
	return ci, true
}

// decodeConnectionState aceita {instance:{instanceName,state}}, {state} e
// {instance:{status}}. Sem nenhum campo de estado a resposta é inválida.
func decodeConnectionState(body []byte, requested string) (ConnectionState, bool) {
	obj, ok := parseObject(body)
	if !ok {
		return ConnectionState{}, false
	}
	cs := ConnectionState{InstanceName: obj.str("instanceName")}
	raw := obj.str("state")
	if inner, ok := obj.nested("instance"); ok {
		if cs.InstanceName == "" {
			cs.InstanceName = inner.str("instanceName", "name")
		}
		if raw == "" {
			raw = inner.str("state", "status", "connectionStatus")
		}
	}
	if raw == "" {
		return ConnectionState{}, false
	}
	if cs.InstanceName == "" {
		cs.InstanceName = requested
	}
	cs.State = NormalizeState(raw)
	return cs, true
}

// decodeInstanceInfo devolve nil quando não há instância. Cobre a forma v1
// ([{instance:{instanceName,owner,status}}]) e a v2
// ([{name,ownerJid,connectionStatus}]).
func decodeInstanceInfo(body []byte, requested string) (*InstanceInfo, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}

	var list []object
	if trimmed[0] == '[' {
		var ok bool
		list, ok = parseList(trimmed)
		if !ok {
			return nil, false
		}
	} else {
		obj, ok := parseObject(trimmed)
		if !ok {
			return nil, false
		}
		list = []object{obj}
	}

	for _, obj := range list {
		if inner, ok := obj.nested("instance"); ok {
			obj = inner
		}
		info := InstanceInfo{
			InstanceName:  obj.str("instanceName", "name"),
			Status:        obj.str("status", "connectionStatus", "state"),
			Owner:         obj.str("owner", "ownerJid"),
			ProfileName:   obj.str("profileName"),
			LastConnected: obj.timestamp("lastConnected", "updatedAt"),
		}
		if info.InstanceName == "" {
			continue
		}
		if requested == "" || info.InstanceName == requested {
			return &info, true
		}
	}
	return nil, true
}

// qrPayload separa a imagem pronta (base64) do código de pareamento bruto.
type qrPayload struct {
	Image string
	Code  string
}

func decodeQR(body []byte) (qrPayload, bool) {
	obj, ok := parseObject(body)
	if !ok {
		return qrPayload{}, false
	}
	if inner, ok := obj.nested("qrcode"); ok {
		obj = inner
	}
	return qrPayload{
		Image: obj.str("base64"),
		Code:  obj.str("code"),
	}, true
}

// decodeWebhook aceita a forma plana e {webhook:{...}}; null vira nil.
func decodeWebhook(body []byte) (*WebhookConfig, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}
	obj, ok := parseObject(trimmed)
	if !ok {
		return nil, false
	}
	if inner, ok := obj.nested("webhook"); ok {
		obj = inner
	}
	url := obj.str("url")
	if url == "" {
		return nil, true
	}
	wc := &WebhookConfig{URL: url, Events: obj.strings("events")}
	if enabled, ok := obj.boolean("enabled"); ok {
		wc.Enabled = enabled
	} else {
		wc.Enabled = true
	}
	if wc.Events == nil {
		wc.Events = []string{}
	}
	return wc, true
}
