package connection

import (
	"context"

	"github.com/open-apime/evomanager/internal/gateway"
)

type InfoFetcher interface {
	InstanceInfo(ctx context.Context, containerName, instanceName string) (*gateway.InstanceInfo, error)
}

// Correction é o resultado de uma política. Reason só é preenchido quando o
// status foi alterado.
type Correction struct {
	Status Status
	Info   *gateway.InstanceInfo
	Reason string
}

// CorrectionPolicy revisa o status mapeado a partir do estado do gateway.
// É uma heurística, não uma garantia: pode ser trocada ou desligada sem
// afetar o resto do reconciliador.
type CorrectionPolicy func(ctx context.Context, fetcher InfoFetcher, containerName, instanceName string, status Status) Correction

// NoCorrection devolve o status sem alteração.
func NoCorrection(_ context.Context, _ InfoFetcher, _, _ string, status Status) Correction {
	return Correction{Status: status}
}

// ConnectingWithInstanceInfo trata "connecting" como conectado quando o
// gateway já devolve um registro de instância preenchido. O Evolution às
// vezes mantém o flag em connecting depois que o pareamento terminou.
func ConnectingWithInstanceInfo(ctx context.Context, fetcher InfoFetcher, containerName, instanceName string, status Status) Correction {
	if status != StatusConnecting {
		return Correction{Status: status}
	}
	info, err := fetcher.InstanceInfo(ctx, containerName, instanceName)
	if err != nil || info == nil || info.InstanceName == "" {
		return Correction{Status: status}
	}
	return Correction{Status: StatusConnected, Info: info, Reason: "connecting_with_instance_info"}
}

// PolicyFor escolhe a política a partir da configuração.
func PolicyFor(heuristicEnabled bool) CorrectionPolicy {
	if heuristicEnabled {
		return ConnectingWithInstanceInfo
	}
	return NoCorrection
}
