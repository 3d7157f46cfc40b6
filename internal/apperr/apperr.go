// Package apperr define a taxonomia de erros exposta pelos serviços.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindForbidden           Kind = "FORBIDDEN"
	KindConflict            Kind = "CONFLICT"
	KindBadRequest          Kind = "BAD_REQUEST"
	KindExternalUnavailable Kind = "EXTERNAL_UNAVAILABLE"
	KindExternalTimeout     Kind = "EXTERNAL_TIMEOUT"
	KindInternal            Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error   { return New(KindNotFound, message) }
func Forbidden(message string) *Error  { return New(KindForbidden, message) }
func Conflict(message string) *Error   { return New(KindConflict, message) }
func BadRequest(message string) *Error { return New(KindBadRequest, message) }

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

func Unavailable(message string, err error) *Error {
	return Wrap(KindExternalUnavailable, message, err)
}

func Timeout(message string, err error) *Error {
	return Wrap(KindExternalTimeout, message, err)
}

// KindOf retorna o Kind do primeiro *Error na cadeia; erros sem tipo são INTERNAL.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reporta se algum *Error da cadeia tem o kind informado.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

func IsTimeout(err error) bool {
	return Is(err, KindExternalTimeout)
}

// IsExternal indica falha do gateway (indisponível ou timeout).
func IsExternal(err error) bool {
	return Is(err, KindExternalUnavailable) || Is(err, KindExternalTimeout)
}
