package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Code classifies a failure for transport-level translation.
type Code string

// Failure codes surfaced to clients.
const (
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
	CodeForbidden         Code = "forbidden"
	CodeConflict          Code = "conflict"
	CodeInvalidArgument   Code = "invalid_argument"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeUnavailable       Code = "unavailable"
	CodeGone              Code = "gone"
	CodeInternal          Code = "internal"
)

// Error is a typed failure carrying a client-safe message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a typed error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a typed error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the failure code from err, defaulting to internal.
func CodeOf(err error) Code {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return "internal error"
}

// HTTPStatus maps a failure code to an HTTP status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeConflict:
		return fiber.StatusConflict
	case CodeInvalidArgument:
		return fiber.StatusBadRequest
	case CodeInsufficientFunds:
		return fiber.StatusPaymentRequired
	case CodeUnavailable:
		return fiber.StatusBadRequest
	case CodeGone:
		return fiber.StatusGone
	default:
		return fiber.StatusInternalServerError
	}
}
