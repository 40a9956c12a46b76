package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the kind of a valuation error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeMissingRiskFactor is returned when a scenario lacks a key an instrument needs
	ErrorTypeMissingRiskFactor
	// ErrorTypeUnsupportedOperation is returned for operations that are not modelled
	ErrorTypeUnsupportedOperation
	// ErrorTypeInvalidOptionParameters is returned for non-positive option inputs
	ErrorTypeInvalidOptionParameters
	// ErrorTypeMissingScenarioKeys is returned when a generator selects keys absent from its mean
	ErrorTypeMissingScenarioKeys
	// ErrorTypeSerializationMismatch is returned when a persisted node has the wrong asset_type
	ErrorTypeSerializationMismatch
	// ErrorTypeInvalidArgument represents an invalid argument error
	ErrorTypeInvalidArgument
	// ErrorTypeNotFound represents a not found error
	ErrorTypeNotFound
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

var typeNames = map[ErrorType]string{
	ErrorTypeUnknown:                 "unknown",
	ErrorTypeMissingRiskFactor:       "missing_risk_factor",
	ErrorTypeUnsupportedOperation:    "unsupported_operation",
	ErrorTypeInvalidOptionParameters: "invalid_option_parameters",
	ErrorTypeMissingScenarioKeys:     "missing_scenario_keys",
	ErrorTypeSerializationMismatch:   "serialization_mismatch",
	ErrorTypeInvalidArgument:         "invalid_argument",
	ErrorTypeNotFound:                "not_found",
	ErrorTypeInternal:                "internal",
}

func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("error_type(%d)", uint(t))
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new error with the given message
func New(message string) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: message,
	}
}

// Newf creates a new typed error with the given format and arguments
func Newf(errType ErrorType, format string, args ...interface{}) error {
	return &AppError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a message, keeping the type of the wrapped error
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithType returns err classified as errType
func WithType(err error, errType ErrorType) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errType,
		Message: err.Error(),
		Err:     err,
	}
}

// TypeOf returns the type of the outermost AppError in err's chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// Is reports whether err or any of the errors in its chain is target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// MissingRiskFactor creates an error for a risk factor absent from a scenario
func MissingRiskFactor(key string) error {
	return &AppError{
		Type:    ErrorTypeMissingRiskFactor,
		Message: fmt.Sprintf("missing risk factor %q", key),
	}
}

// UnsupportedOperation creates a new UnsupportedOperation error
func UnsupportedOperation(message string) error {
	return &AppError{
		Type:    ErrorTypeUnsupportedOperation,
		Message: message,
	}
}

// InvalidOptionParameters creates a new InvalidOptionParameters error
func InvalidOptionParameters(message string) error {
	return &AppError{
		Type:    ErrorTypeInvalidOptionParameters,
		Message: message,
	}
}

// MissingScenarioKeys creates an error naming keys absent from a mean scenario
func MissingScenarioKeys(keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &AppError{
		Type:    ErrorTypeMissingScenarioKeys,
		Message: "missing keys in mean scenario: " + strings.Join(sorted, ", "),
	}
}

// SerializationMismatch creates an error for an unexpected asset_type tag
func SerializationMismatch(expected, actual string) error {
	return &AppError{
		Type:    ErrorTypeSerializationMismatch,
		Message: fmt.Sprintf("asset_type mismatch: expected %q, got %q", expected, actual),
	}
}

// InvalidArgument creates a new InvalidArgument error
func InvalidArgument(message string) error {
	return &AppError{
		Type:    ErrorTypeInvalidArgument,
		Message: message,
	}
}

// NotFound creates a new NotFound error
func NotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// Internal creates a new Internal error
func Internal(message string) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}
