package storage

import (
	"errors"

	"github.com/open-apime/evomanager/internal/apperr"
)

// AppError traduz as sentinelas do store para a taxonomia dos serviços.
// Erros sem sentinela viram INTERNAL.
func AppError(msg string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, msg, err)
	case errors.Is(err, ErrConflict):
		return apperr.Wrap(apperr.KindConflict, msg, err)
	case errors.Is(err, ErrIntegrationInactive):
		return apperr.Wrap(apperr.KindForbidden, msg, err)
	default:
		return apperr.Internal(msg, err)
	}
}
