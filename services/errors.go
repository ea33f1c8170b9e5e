package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound             ErrorType = "not_found"
	ErrorTypeValidation           ErrorType = "validation"
	ErrorTypeUnauthorized         ErrorType = "unauthorized"
	ErrorTypeForbidden            ErrorType = "forbidden"
	ErrorTypeDuplicate            ErrorType = "duplicate_application"
	ErrorTypeQuotaExceeded        ErrorType = "quota_exceeded"
	ErrorTypeInvalidTransition    ErrorType = "invalid_transition"
	ErrorTypeInternal             ErrorType = "internal"
	ErrorTypeNotificationDelivery ErrorType = "notification_delivery"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Newf returns a fresh error of the same type with a specific message.
// Use it on the package sentinels instead of WithDetail.
func (e *DomainError) Newf(format string, args ...interface{}) *DomainError {
	return NewDomainError(e.Type, fmt.Sprintf(format, args...), nil)
}

// WithDetail adds a detail to the error. Call it on fresh errors, never on the package sentinels.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	ErrApplicationNotFound = NewDomainError(ErrorTypeNotFound, "application not found", nil)
	ErrCVNotFound          = NewDomainError(ErrorTypeNotFound, "no CV attached to application", nil)

	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidQuotaCap = NewDomainError(ErrorTypeValidation, "max applications per student must be at least 1", nil)

	ErrForbidden = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	ErrDuplicateApplication = NewDomainError(ErrorTypeDuplicate, "student already applied to this internship", nil)
	ErrQuotaExceeded        = NewDomainError(ErrorTypeQuotaExceeded, "application limit reached", nil)
	ErrInvalidTransition    = NewDomainError(ErrorTypeInvalidTransition, "application is not pending", nil)

	ErrNotificationDelivery = NewDomainError(ErrorTypeNotificationDelivery, "notification delivery failed", nil)
)

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool { return isType(err, ErrorTypeUnauthorized) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return isType(err, ErrorTypeForbidden) }

// IsDuplicateError checks if an error is a duplicate application error
func IsDuplicateError(err error) bool { return isType(err, ErrorTypeDuplicate) }

// IsQuotaExceededError checks if an error is a quota error
func IsQuotaExceededError(err error) bool { return isType(err, ErrorTypeQuotaExceeded) }

// IsInvalidTransitionError checks if an error is an invalid transition error
func IsInvalidTransitionError(err error) bool { return isType(err, ErrorTypeInvalidTransition) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// NewValidationError builds a validation error naming the offending fields
func NewValidationError(message string, fields map[string]string) *DomainError {
	e := NewDomainError(ErrorTypeValidation, message, nil)
	if len(fields) > 0 {
		e.WithDetail("fields", fields)
	}
	return e
}
