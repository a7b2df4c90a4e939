package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Business codes. Ranges: 2xxx request, 3xxx resource state, 5xxx server.
const (
	CodeSuccess = 0

	CodeParamMissing = 2001
	CodeParamInvalid = 2002
	CodeParamIllegal = 2003

	CodeNotFound      = 3001
	CodeAlreadyExists = 3002
	CodeStateConflict = 3003 // job or state entry is not in the status the operation needs

	CodeInternalError = 5001
	CodeDatabaseError = 5002
)

// AppError is a service outcome carrying the HTTP status and business code
// it maps to. Err is logged, never sent to the client.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code=%d, message=%s, err=%v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

// Unwrap exposes the internal error to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(httpStatus, code int, message string, err error) *AppError {
	return &AppError{HTTPStatus: httpStatus, Code: code, Message: message, Err: err}
}

// AsAppError returns the AppError in err's chain, or an internal error with
// fallback as its message
func AsAppError(err error, fallback string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalError(fallback, err)
}

// IsCode reports whether err carries the given business code
func IsCode(err error, code int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func newErr(status, code int, message, fallback string, err error) *AppError {
	if message == "" {
		message = fallback
	}
	return NewAppError(status, code, message, err)
}

// ErrParamMissing 400, required input absent
func ErrParamMissing(message string) *AppError {
	return newErr(http.StatusBadRequest, CodeParamMissing, message, "parameter missing", nil)
}

// ErrParamInvalid 400, input malformed
func ErrParamInvalid(message string) *AppError {
	return newErr(http.StatusBadRequest, CodeParamInvalid, message, "parameter format error", nil)
}

// ErrParamIllegal 400, input well-formed but out of range
func ErrParamIllegal(message string) *AppError {
	return newErr(http.StatusBadRequest, CodeParamIllegal, message, "parameter value illegal", nil)
}

// ErrNotFound 404
func ErrNotFound(message string) *AppError {
	return newErr(http.StatusNotFound, CodeNotFound, message, "resource not found", nil)
}

// ErrAlreadyExists 409, unique identity taken
func ErrAlreadyExists(message string) *AppError {
	return newErr(http.StatusConflict, CodeAlreadyExists, message, "resource already exists", nil)
}

// ErrStateConflict 409, e.g. starting a job that is no longer pending
func ErrStateConflict(message string) *AppError {
	return newErr(http.StatusConflict, CodeStateConflict, message, "current state does not allow operation", nil)
}

// ErrInternalError 500
func ErrInternalError(message string, err error) *AppError {
	return newErr(http.StatusInternalServerError, CodeInternalError, message, "internal error", err)
}

// ErrDatabaseError 500, store failure
func ErrDatabaseError(message string, err error) *AppError {
	return newErr(http.StatusInternalServerError, CodeDatabaseError, message, "database error", err)
}
