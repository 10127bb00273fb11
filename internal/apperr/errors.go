package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodePreconditionFailed Code = "PRECONDITION_FAILED"
	CodeForbidden          Code = "AUTHORIZATION_ERROR"
	CodeConflict           Code = "CONFLICT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnavailable        Code = "UPSTREAM_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// AppError carries the error kind plus a machine-readable reason naming the
// violated rule, e.g. "already_confirmed" or "dispute_already_open".
type AppError struct {
	Code       Code
	Reason     string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s(%s): %s (caused by: %v)", e.Code, e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s(%s): %s", e.Code, e.Reason, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code Code, reason, message string) *AppError {
	return &AppError{
		Code:       code,
		Reason:     reason,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code Code, reason, message string) *AppError {
	return &AppError{
		Code:       code,
		Reason:     reason,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func Validation(reason, message string) *AppError {
	return New(CodeValidation, reason, message)
}

func Precondition(reason, message string) *AppError {
	return New(CodePreconditionFailed, reason, message)
}

func Forbidden(reason, message string) *AppError {
	return New(CodeForbidden, reason, message)
}

func Conflict(reason, message string) *AppError {
	return New(CodeConflict, reason, message)
}

func NotFound(reason, message string) *AppError {
	return New(CodeNotFound, reason, message)
}

func Internal(err error, message string) *AppError {
	return Wrap(err, CodeInternal, "internal", message)
}

func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As unwraps err into an *AppError. Unknown errors become CodeInternal.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, "internal error")
}

func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func ReasonOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

func IsValidation(err error) bool   { return CodeOf(err) == CodeValidation }
func IsPrecondition(err error) bool { return CodeOf(err) == CodePreconditionFailed }
func IsForbidden(err error) bool    { return CodeOf(err) == CodeForbidden }
func IsConflict(err error) bool     { return CodeOf(err) == CodeConflict }
func IsNotFound(err error) bool     { return CodeOf(err) == CodeNotFound }
