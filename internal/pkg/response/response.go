// Package response padroniza o envelope JSON da API: {"data": ...} em caso
// de sucesso e {"error": {"code", "message"}} em caso de erro.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-apime/evomanager/internal/apperr"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func Error(c *gin.Context, status int, err error) {
	ErrorWithMessage(c, status, err.Error())
}

func ErrorWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorBody{Code: codeFor(status), Message: message}})
}

// AppError escreve o erro de um serviço com o status HTTP do seu Kind.
// Mensagens de erros INTERNAL não expõem a causa.
func AppError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	message := err.Error()
	if kind == apperr.KindInternal {
		message = "erro interno"
		var e *apperr.Error
		if errors.As(err, &e) && e.Message != "" {
			message = e.Message
		}
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorBody{Code: string(kind), Message: message}})
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindExternalUnavailable:
		return http.StatusBadGateway
	case apperr.KindExternalTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperr.KindBadRequest)
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return string(apperr.KindForbidden)
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusConflict:
		return string(apperr.KindConflict)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadGateway:
		return string(apperr.KindExternalUnavailable)
	case http.StatusGatewayTimeout:
		return string(apperr.KindExternalTimeout)
	default:
		return string(apperr.KindInternal)
	}
}
