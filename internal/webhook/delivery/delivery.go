// Package delivery dispara POSTs sintéticos para verificar se uma URL de
// webhook está acessível antes de registrá-la no Evolution.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/config"
)

// Result é o diagnóstico de uma sondagem. Status é zero quando não houve
// resposta HTTP.
type Result struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Ms     int64  `json:"ms"`
	Error  string `json:"error,omitempty"`
}

// ErrBlockedAddress indica um destino em rede interna (loopback, privada,
// link-local, metadata de nuvem) recusado pelo prober.
var ErrBlockedAddress = errors.New("endereço de destino não permitido")

type Prober struct {
	client    *http.Client
	log       *zap.Logger
	userAgent string
}

// NewProber cria o prober. Com allowPrivate=false a conexão só é aberta
// para IPs públicos; a checagem roda depois da resolução DNS, no dial.
func NewProber(log *zap.Logger, timeout time.Duration, allowPrivate bool) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	if !allowPrivate {
		dialer.Control = publicOnly
	}
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			// Sem proxy: o destino discado precisa ser o da URL.
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConns:        4,
				IdleConnTimeout:     30 * time.Second,
			},
			// Redirecionamento não conta como entrega.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log:       log,
		userAgent: "evomanager/" + config.Version,
	}
}

type probePayload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		Message string `json:"message"`
	} `json:"data"`
}

// Probe nunca devolve erro: falhas vão para Result.Error. Nenhuma tentativa
// é repetida, a latência medida é a de uma única requisição.
func (p *Prober) Probe(ctx context.Context, url string) Result {
	var body probePayload
	body.Event = "webhook.test"
	body.Timestamp = time.Now().UTC()
	body.Data.Message = "teste de conectividade do webhook"

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Error: fmt.Sprintf("serializar payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Error: fmt.Sprintf("requisição inválida: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		p.log.Info("delivery: sondagem falhou", zap.String("webhook", url), zap.Error(err))
		return Result{Ms: elapsed, Error: err.Error()}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	res := Result{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Ms:     elapsed,
	}
	if !res.OK {
		res.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	p.log.Debug("delivery: sondagem concluída",
		zap.String("webhook", url),
		zap.Int("status", resp.StatusCode),
		zap.Int64("ms", elapsed),
	)
	return res
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast())
}
