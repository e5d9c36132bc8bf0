package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	BadRequest Code = "BAD_REQUEST"
	NotFound   Code = "NOT_FOUND"
	Conflict   Code = "CONFLICT"
	Internal   Code = "INTERNAL"
)

type AppError struct {
	code    Code
	message string
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *AppError) Error() string   { return e.message }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code Code) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.code == code
}
