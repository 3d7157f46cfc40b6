package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/open-apime/evomanager/internal/apperr"
)

var (
	// ErrNotFound é devolvido quando o backend responde 404.
	ErrNotFound = errors.New("gateway: recurso não encontrado")
	// ErrMalformed indica uma resposta que não casa com nenhum formato conhecido.
	ErrMalformed = errors.New("gateway: resposta em formato inesperado")
)

// StatusError carrega a resposta não-2xx do backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// transportError classifica falhas antes de haver resposta HTTP.
func transportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("gateway "+op+": tempo limite excedido", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Timeout("gateway "+op+": tempo limite excedido", err)
	}
	return apperr.Unavailable("gateway "+op+": backend indisponível", err)
}

func statusError(op string, status int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	se := &StatusError{Op: op, StatusCode: status, Body: string(body)}

	switch {
	case status == http.StatusNotFound:
		return apperr.Wrap(apperr.KindNotFound, "gateway "+op+": não encontrado", fmt.Errorf("%w: %w", ErrNotFound, se))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.Wrap(apperr.KindBadRequest, "gateway "+op+": requisição recusada", se)
	case status == http.StatusConflict:
		return apperr.Wrap(apperr.KindConflict, "gateway "+op+": conflito", se)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return apperr.Timeout("gateway "+op+": tempo limite no backend", se)
	default:
		return apperr.Unavailable("gateway "+op+": falha no backend", se)
	}
}

func malformed(op string, err error) error {
	if err == nil {
		err = ErrMalformed
	} else {
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return apperr.Unavailable("gateway "+op+": resposta inválida", err)
}
