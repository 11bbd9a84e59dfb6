package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)

// Payment domain errors
var (
	ErrProjectNotFound        = errors.New("project not found")
	ErrAmbiguousProject       = errors.New("project reference is ambiguous")
	ErrAccessDenied           = errors.New("access denied")
	ErrDuplicateActiveRequest = errors.New("an active request already exists for this stage")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStorage                = errors.New("file storage failed")
	ErrFileTooLarge           = errors.New("file too large")
	ErrUnsupportedMedia       = errors.New("unsupported media type")
	ErrGateway                = errors.New("payment gateway failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ValidationErrorf builds an AppError wrapping ErrValidation.
func ValidationErrorf(format string, args ...interface{}) error {
	return NewAppError("VALIDATION_ERROR", fmt.Sprintf(format, args...), ErrValidation)
}

// AccessDeniedf builds an AppError wrapping ErrAccessDenied.
func AccessDeniedf(format string, args ...interface{}) error {
	return NewAppError("ACCESS_DENIED", fmt.Sprintf(format, args...), ErrAccessDenied)
}

// InvalidTransitionf builds an AppError wrapping ErrInvalidTransition.
func InvalidTransitionf(format string, args ...interface{}) error {
	return NewAppError("INVALID_TRANSITION", fmt.Sprintf(format, args...), ErrInvalidTransition)
}

type errorMapping struct {
	target error
	code   string
	status int
}

// Checked in order; the first sentinel found in the chain wins.
var errorMappings = []errorMapping{
	{ErrProjectNotFound, "PROJECT_NOT_FOUND", http.StatusNotFound},
	{ErrAmbiguousProject, "AMBIGUOUS_PROJECT", http.StatusConflict},
	{ErrAccessDenied, "ACCESS_DENIED", http.StatusForbidden},
	{ErrDuplicateActiveRequest, "DUPLICATE_ACTIVE_REQUEST", http.StatusConflict},
	{ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
	{ErrFileTooLarge, "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge},
	{ErrUnsupportedMedia, "UNSUPPORTED_MEDIA_TYPE", http.StatusUnsupportedMediaType},
	{ErrStorage, "STORAGE_ERROR", http.StatusBadGateway},
	{ErrGateway, "GATEWAY_ERROR", http.StatusBadGateway},
	{ErrValidation, "VALIDATION_ERROR", http.StatusUnprocessableEntity},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorCode maps an error to a stable machine readable code.
func ErrorCode(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.code
		}
	}
	return "INTERNAL_ERROR"
}

// PublicMessage returns the message safe to show to API clients.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.target.Error()
		}
	}
	return "internal error"
}
