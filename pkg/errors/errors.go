package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeSchema indicates the uploaded dataset is missing required columns
	ErrorTypeSchema ErrorType = "SCHEMA"

	// ErrorTypeEmptyInput indicates no transaction rows survived cleaning
	ErrorTypeEmptyInput ErrorType = "EMPTY_INPUT"

	// ErrorTypeModelUnavailable indicates the scaler/cluster artifacts could not be loaded
	ErrorTypeModelUnavailable ErrorType = "MODEL_UNAVAILABLE"

	// ErrorTypeDelivery indicates a single message delivery failed
	ErrorTypeDelivery ErrorType = "DELIVERY"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewSchemaError creates an error for a dataset violating the required-column contract
func NewSchemaError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeSchema,
		Message: message,
	}
}

// NewEmptyInputError creates an error for a cleaned dataset with zero rows
func NewEmptyInputError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeEmptyInput,
		Message: message,
	}
}

// NewModelUnavailableError creates an error for missing or unloadable model artifacts
func NewModelUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeModelUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewDeliveryError creates an error for a failed per-recipient delivery
func NewDeliveryError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDelivery,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}
