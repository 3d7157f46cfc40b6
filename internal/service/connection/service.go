// Package connection reconcilia o estado de conexão das instâncias com o
// gateway. As consultas GetStatus e GetCurrentQR escrevem no store local
// quando observam uma mudança confirmada.
package connection

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/open-apime/evomanager/internal/gateway"
	"github.com/open-apime/evomanager/internal/metrics"
	"github.com/open-apime/evomanager/internal/service/tenant"
	"github.com/open-apime/evomanager/internal/storage"
	"github.com/open-apime/evomanager/internal/storage/model"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

type Gateway interface {
	InfoFetcher
	ConnectionState(ctx context.Context, containerName, instanceName string) (gateway.ConnectionState, error)
	InstanceQR(ctx context.Context, containerName, instanceName string) (string, error)
}

type Resolver interface {
	Container(ctx context.Context, clientID string) (tenant.Scope, error)
}

type StatusResult struct {
	ConnectionStatus Status    `json:"connectionStatus"`
	Timestamp        time.Time `json:"timestamp"`
}

type QRResult struct {
	QRCode      *string   `json:"qrCode"`
	IsConnected bool      `json:"isConnected"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

type Service struct {
	resolver  Resolver
	gateway   Gateway
	instances storage.InstanceRepository
	policy    CorrectionPolicy
	metrics   *metrics.Collector
	log       *zap.Logger
	group     singleflight.Group
	now       func() time.Time
}

func NewService(resolver Resolver, gw Gateway, instances storage.InstanceRepository, policy CorrectionPolicy, m *metrics.Collector, log *zap.Logger) *Service {
	if policy == nil {
		policy = NoCorrection
	}
	return &Service{
		resolver:  resolver,
		gateway:   gw,
		instances: instances,
		policy:    policy,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// MapState converte o estado canônico do gateway. Qualquer valor fora de
// open/connecting vira disconnected.
func MapState(state string) Status {
	switch gateway.NormalizeState(state) {
	case gateway.StateOpen:
		return StatusConnected
	case gateway.StateConnecting:
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// PhoneFromJID extrai o número do JID do dono da sessão
// ("5511999999999@s.whatsapp.net"). Devolve "" quando não reconhece.
func PhoneFromJID(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ""
	}
	if !strings.Contains(owner, "@") {
		owner += "@" + types.DefaultUserServer
	}
	jid, err := types.ParseJID(owner)
	if err != nil {
		return ""
	}
	return jid.User
}

// GetStatus consulta o gateway e devolve o status corrigido. Falhas do
// gateway viram disconnected; só erros de escopo (cliente, integração ou
// container inexistentes) são retornados.
//
// Efeito colateral: quando o status é connected e o registro local discorda,
// o registro passa a CONNECTED com lastConnected=agora.
func (s *Service) GetStatus(ctx context.Context, clientID, instanceName string) (StatusResult, error) {
	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return StatusResult{}, err
	}
	status := s.reconcile(ctx, scope, instanceName)
	return StatusResult{ConnectionStatus: status, Timestamp: s.now().UTC()}, nil
}

// GetCurrentQR devolve um QR novo quando a instância não está conectada.
// Efeito colateral: conectada, sincroniza CONNECTED; QR emitido, marca
// CONNECTING se ainda não estiver.
func (s *Service) GetCurrentQR(ctx context.Context, clientID, instanceName string) (QRResult, error) {
	scope, err := s.resolver.Container(ctx, clientID)
	if err != nil {
		return QRResult{}, err
	}

	if s.reconcile(ctx, scope, instanceName) == StatusConnected {
		return QRResult{IsConnected: true, Timestamp: s.now().UTC()}, nil
	}

	qr, err := s.gateway.InstanceQR(ctx, scope.ContainerName(), instanceName)
	if err != nil {
		s.log.Warn("falha ao obter QR code",
			zap.String("client_id", clientID),
			zap.String("instance", instanceName),
			zap.Error(err),
		)
		return QRResult{Timestamp: s.now().UTC(), Error: err.Error()}, nil
	}
	if qr == "" {
		return QRResult{Timestamp: s.now().UTC()}, nil
	}

	s.markConnecting(ctx, scope, instanceName)
	return QRResult{QRCode: &qr, Timestamp: s.now().UTC()}, nil
}

// Tempo máximo da consulta compartilhada entre pollers. Cada chamada ao
// gateway ainda tem o timeout próprio do client.
const reconcileTimeout = 30 * time.Second

// reconcile agrupa consultas simultâneas da mesma instância numa única ida
// ao gateway. A consulta compartilhada não herda o cancelamento de quem
// chegou primeiro; cada chamador desiste só pelo próprio ctx.
func (s *Service) reconcile(ctx context.Context, scope tenant.Scope, instanceName string) Status {
	key := scope.Client.ID + "\x00" + instanceName
	ch := s.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
		defer cancel()

		c := s.check(shared, scope, instanceName)
		if c.Status == StatusConnected {
			s.markConnected(shared, scope, instanceName, c.Info)
		}
		return c.Status, nil
	})

	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		return StatusDisconnected
	}
}

func (s *Service) check(ctx context.Context, scope tenant.Scope, instanceName string) Correction {
	state := gateway.StateClose
	cs, err := s.gateway.ConnectionState(ctx, scope.ContainerName(), instanceName)
	if err != nil {
		s.log.Warn("falha ao consultar estado da conexão; assumindo desconectado",
			zap.String("client_id", scope.Client.ID),
			zap.String("instance", instanceName),
			zap.Error(err),
		)
	} else {
		state = cs.State
	}

	status := MapState(state)
	c := s.policy(ctx, s.gateway, scope.ContainerName(), instanceName, status)
	if c.Status != status {
		s.metrics.StatusCorrection(c.Reason)
		s.log.Debug("status corrigido",
			zap.String("instance", instanceName),
			zap.String("from", string(status)),
			zap.String("to", string(c.Status)),
			zap.String("reason", c.Reason),
		)
	}
	return c
}

func (s *Service) localInstance(ctx context.Context, scope tenant.Scope, instanceName string) (model.EvolutionInstance, bool) {
	inst, err := s.instances.GetByName(ctx, scope.Evolution.ID, instanceName)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("falha ao ler instância local",
				zap.String("instance", instanceName),
				zap.Error(err),
			)
		}
		return model.EvolutionInstance{}, false
	}
	return inst, true
}

func (s *Service) markConnected(ctx context.Context, scope tenant.Scope, instanceName string, info *gateway.InstanceInfo) {
	inst, ok := s.localInstance(ctx, scope, instanceName)
	if !ok || inst.Status == model.InstanceStatusConnected {
		return
	}

	now := s.now().UTC()
	if err := s.instances.UpdateStatus(ctx, inst.ID, model.InstanceStatusConnected, &now); err != nil {
		s.log.Warn("falha ao sincronizar status CONNECTED",
			zap.String("instance", instanceName),
			zap.Error(err),
		)
		return
	}
	s.log.Info("instância conectada",
		zap.String("client_id", scope.Client.ID),
		zap.String("instance", instanceName),
	)

	if info == nil {
		info, _ = s.gateway.InstanceInfo(ctx, scope.ContainerName(), instanceName)
	}
	if info == nil {
		return
	}
	if phone := PhoneFromJID(info.Owner); phone != "" && phone != inst.PhoneNumber {
		if err := s.instances.UpdatePhoneNumber(ctx, inst.ID, phone); err != nil {
			s.log.Warn("falha ao salvar número da instância", zap.String("instance", instanceName), zap.Error(err))
		}
	}
}

func (s *Service) markConnecting(ctx context.Context, scope tenant.Scope, instanceName string) {
	inst, ok := s.localInstance(ctx, scope, instanceName)
	if !ok || inst.Status == model.InstanceStatusConnecting {
		return
	}
	if err := s.instances.UpdateStatus(ctx, inst.ID, model.InstanceStatusConnecting, nil); err != nil {
		s.log.Warn("falha ao sincronizar status CONNECTING",
			zap.String("instance", instanceName),
			zap.Error(err),
		)
	}
}
