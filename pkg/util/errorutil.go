package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the engine. DomainError values wrap these so callers can
// match with errors.Is regardless of the message attached.
var (
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrStaffNotFound          = errors.New("staff member not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrItemNotFound           = errors.New("marketplace item not found")
	ErrAchievementNotFound    = errors.New("achievement not found")
	ErrInsufficientPoints     = errors.New("insufficient points")
	ErrPriceMismatch          = errors.New("price mismatch")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrForbidden              = errors.New("forbidden")
	ErrValidation             = errors.New("validation failed")
	ErrDuplicateKey           = errors.New("idempotency key already applied")
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return &DomainError{
		Code:       "VALIDATION_FAILED",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
		Err:        ErrValidation,
	}
}

func NewInvalidTransition(from, to string) error {
	return &DomainError{
		Code:       "INVALID_TRANSITION",
		Message:    "status not reachable",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"from": from, "to": to},
		Err:        ErrInvalidTransition,
	}
}

// NewNotFound builds a NOT_FOUND error wrapping the given sentinel.
func NewNotFound(sentinel error, resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
		Err:        sentinel,
	}
}

func NewInsufficientPoints(balance, cost int) error {
	return &DomainError{
		Code:       "INSUFFICIENT_POINTS",
		Message:    "not enough points",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"balance": balance, "cost": cost},
		Err:        ErrInsufficientPoints,
	}
}

func NewPriceMismatch(expected, actual int) error {
	return &DomainError{
		Code:       "PRICE_MISMATCH",
		Message:    "item price changed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"expected_cost": expected, "points_cost": actual},
		Err:        ErrPriceMismatch,
	}
}

func NewConcurrentModification(resource string, err error) error {
	return &DomainError{
		Code:       "CONCURRENT_MODIFICATION",
		Message:    fmt.Sprintf("%s was modified concurrently", resource),
		HTTPStatus: http.StatusConflict,
		Err:        errors.Join(ErrConcurrentModification, err),
	}
}

func NewForbidden(message string) error {
	return &DomainError{
		Code:       "FORBIDDEN",
		Message:    message,
		HTTPStatus: http.StatusForbidden,
		Err:        ErrForbidden,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
