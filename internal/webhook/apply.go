package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/pkg/queue"
	"github.com/open-apime/evomanager/internal/service/connection"
	"github.com/open-apime/evomanager/internal/service/instance"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

// Resultados de Apply, usados como rótulo de métrica.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeIgnored = "ignored"
	OutcomeDropped = "dropped"
)

type Resolver interface {
	Container(ctx context.Context, clientID string) (tenant.Scope, error)
}

// Applier traduz eventos do Evolution em escritas no store.
type Applier struct {
	resolver  Resolver
	instances storage.InstanceRepository
	log       *zap.Logger
	now       func() time.Time
}

func NewApplier(resolver Resolver, instances storage.InstanceRepository, log *zap.Logger) *Applier {
	return &Applier{resolver: resolver, instances: instances, log: log, now: time.Now}
}

func (a *Applier) Apply(ctx context.Context, event queue.Event) (string, error) {
	switch event.Type {
	case EventConnectionUpdate, EventQRCodeUpdated, EventMessagesUpsert, EventSendMessage:
	default:
		return OutcomeIgnored, nil
	}

	scope, err := a.resolver.Container(ctx, event.ClientID)
	if err != nil {
		return OutcomeDropped, fmt.Errorf("resolver cliente %s: %w", event.ClientID, err)
	}
	inst, err := a.instances.GetByName(ctx, scope.Evolution.ID, event.InstanceName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OutcomeDropped, fmt.Errorf("instância %s desconhecida: %w", event.InstanceName, err)
		}
		return OutcomeDropped, err
	}

	data, _ := event.Payload["data"].(map[string]any)

	switch event.Type {
	case EventConnectionUpdate:
		state, _ := data["state"].(string)
		if state == "" {
			return OutcomeIgnored, nil
		}
		return a.connectionUpdate(ctx, inst, state, ownerJID(event.Payload, data))
	case EventQRCodeUpdated:
		if inst.Status == model.InstanceStatusConnecting {
			return OutcomeNoop, nil
		}
		if err := a.instances.UpdateStatus(ctx, inst.ID, model.InstanceStatusConnecting, nil); err != nil {
			return OutcomeDropped, err
		}
		return OutcomeApplied, nil
	default:
		if err := a.instances.TouchLastMessage(ctx, inst.ID, event.CreatedAt); err != nil {
			return OutcomeDropped, err
		}
		return OutcomeApplied, nil
	}
}

func (a *Applier) connectionUpdate(ctx context.Context, inst model.EvolutionInstance, state, owner string) (string, error) {
	status := instance.MapStatus(state)
	outcome := OutcomeNoop

	if status != inst.Status {
		var lastConnected *time.Time
		if status == model.InstanceStatusConnected {
			now := a.now().UTC()
			lastConnected = &now
		}
		if err := a.instances.UpdateStatus(ctx, inst.ID, status, lastConnected); err != nil {
			return OutcomeDropped, err
		}
		a.log.Info("webhook: status da instância atualizado",
			zap.String("instance", inst.InstanceName),
			zap.String("status", string(status)),
		)
		outcome = OutcomeApplied
	}

	if status == model.InstanceStatusConnected {
		if phone := connection.PhoneFromJID(owner); phone != "" && phone != inst.PhoneNumber {
			if err := a.instances.UpdatePhoneNumber(ctx, inst.ID, phone); err != nil {
				return OutcomeDropped, err
			}
			outcome = OutcomeApplied
		}
	}
	return outcome, nil
}

// ownerJID procura o JID da sessão: data.wuid no CONNECTION_UPDATE, ou o
// sender do envelope.
func ownerJID(payload, data map[string]any) string {
	if wuid, ok := data["wuid"].(string); ok && wuid != "" {
		return wuid
	}
	sender, _ := payload["sender"].(string)
	return sender
}
