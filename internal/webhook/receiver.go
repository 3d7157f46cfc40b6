// Package webhook recebe os callbacks do Evolution registrados pelo
// gerenciador de webhooks e aplica as mudanças de estado no store local.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/metrics"
	"github.com/open-apime/evomanager/internal/pkg/queue"
)

// Eventos do Evolution que alteram o store.
const (
	EventConnectionUpdate = "CONNECTION_UPDATE"
	EventQRCodeUpdated    = "QRCODE_UPDATED"
	EventMessagesUpsert   = "MESSAGES_UPSERT"
	EventSendMessage      = "SEND_MESSAGE"
)

// EventType converte "connection.update" e variantes para CONNECTION_UPDATE.
func EventType(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// KeySource fornece a API key do backend Evolution em uso. O gateway
// client implementa.
type KeySource interface {
	APIKey() string
}

type Receiver struct {
	queue   queue.Queue
	keys    KeySource
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

func NewReceiver(q queue.Queue, keys KeySource, m *metrics.Collector, log *zap.Logger) *Receiver {
	return &Receiver{queue: q, keys: keys, metrics: m, log: log, now: time.Now}
}

// Handle autentica o callback, valida o corpo e enfileira o evento. A
// apikey vem do cabeçalho ou, na falta dele, do campo apikey do payload, e
// precisa ser a chave configurada do backend. A instância vem da URL
// registrada, não do corpo.
func (r *Receiver) Handle(ctx context.Context, clientID, instanceName, apiKey string, body []byte) (queue.Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return queue.Event{}, apperr.BadRequest("payload de webhook inválido")
	}

	name, _ := raw["event"].(string)
	eventType := EventType(name)
	if eventType == "" {
		return queue.Event{}, apperr.BadRequest("campo event ausente")
	}

	if apiKey == "" {
		apiKey, _ = raw["apikey"].(string)
	}
	if !r.authorized(apiKey) {
		r.metrics.WebhookEvent(eventType, "forbidden")
		r.log.Warn("webhook: callback com apikey inválida",
			zap.String("client_id", clientID),
			zap.String("instance", instanceName),
			zap.String("type", eventType),
			zap.Bool("apikey_present", apiKey != ""),
		)
		return queue.Event{}, apperr.Forbidden("apikey inválida")
	}

	// A chave não deve circular pela fila.
	delete(raw, "apikey")

	event := queue.Event{
		ID:           uuid.New().String(),
		ClientID:     clientID,
		InstanceName: instanceName,
		Type:         eventType,
		Payload:      raw,
		CreatedAt:    r.now().UTC(),
	}

	if err := r.queue.Enqueue(ctx, event); err != nil {
		r.metrics.WebhookEvent(eventType, "enqueue_error")
		r.log.Error("webhook: erro ao enfileirar evento",
			zap.String("client_id", clientID),
			zap.String("instance", instanceName),
			zap.String("type", eventType),
			zap.Error(err),
		)
		return queue.Event{}, apperr.Internal("enfileirar evento", err)
	}

	r.metrics.WebhookEvent(eventType, "received")
	r.log.Debug("webhook: evento enfileirado",
		zap.String("event_id", event.ID),
		zap.String("instance", instanceName),
		zap.String("type", eventType),
	)
	return event, nil
}

// authorized compara em tempo constante. Sem chave configurada nenhum
// callback é aceito.
func (r *Receiver) authorized(got string) bool {
	if r.keys == nil {
		return false
	}
	want := r.keys.APIKey()
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
