// Package errors provides the structured error type used across the build
// pipeline.
//
// Every failure carries a category (I/O, validation, external process,
// network, configuration), a stable code, the path it concerns and the
// underlying cause. Errors are never swallowed or retried by tasks; they
// travel unchanged up to the command boundary, which renders them and exits
// with status 1.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeProcess    ErrorType = "process"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeCreateDirectory  = "ERR_CREATE_DIRECTORY"
	ErrCodeDeleteDirectory  = "ERR_DELETE_DIRECTORY"
	ErrCodeCopyFile         = "ERR_COPY_FILE"
	ErrCodeReadFile         = "ERR_READ_FILE"
	ErrCodeWriteFile        = "ERR_WRITE_FILE"
	ErrCodePermissions      = "ERR_PERMISSIONS"
	ErrCodeLock             = "ERR_LOCK"
	ErrCodeEmptyInclusions  = "ERR_EMPTY_INCLUSIONS"
	ErrCodeCustomStub       = "ERR_CUSTOM_STUB"
	ErrCodeNoEdition        = "ERR_NO_EDITION"
	ErrCodePackFailed       = "ERR_PACK_FAILED"
	ErrCodeDownloadFailed   = "ERR_DOWNLOAD_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeInvalidCommand   = "ERR_INVALID_COMMAND"
	ErrCodeHeaderMismatch   = "ERR_HEADER_MISMATCH"
	ErrCodePayloadMissing   = "ERR_PAYLOAD_MISSING"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// Error is a structured error with context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Path    string
	Cause   error
	Context map[string]interface{}
	// Remediation is printed after the message by the command boundary.
	Remediation string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path+":")
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same type and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath sets the path the error concerns.
func (e *Error) WithPath(path string) *Error {
	e.Path = path

	return e
}

// WithRemediation attaches guidance for fixing the failure.
func (e *Error) WithRemediation(text string) *Error {
	e.Remediation = text

	return e
}

// NewIOError creates an I/O error naming the path and failed operation.
func NewIOError(code, path, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeIO,
		Code:    code,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewProcessError creates an external-process error.
func NewProcessError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeProcess,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeNetwork,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the category of err, or "" when err is not an *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}

	return ""
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsIO checks if an error is an I/O failure.
func IsIO(err error) bool {
	return TypeOf(err) == ErrorTypeIO
}

// RemediationOf returns the remediation text attached anywhere in err's chain.
func RemediationOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Remediation
	}

	return ""
}

// FieldValidationError reports a single invalid configuration field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s' (%v): %s", fve.FieldName, fve.FieldValue, fve.ErrorMessage)
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// ValidationErrorCollection gathers field errors so a configuration reports
// every problem at once.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	return fmt.Sprintf("validation failed with %d errors", len(vec.Errors))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) {
	vec.Errors = append(vec.Errors, NewFieldValidationError(field, value, message, suggestions...))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToError converts the collection to a single configuration error, or nil.
func (vec *ValidationErrorCollection) ToError() error {
	if !vec.HasErrors() {
		return nil
	}

	messages := make([]string, 0, len(vec.Errors))
	context := make(map[string]interface{})
	var help []string

	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
		context[err.FieldName] = err.FieldValue
		help = append(help, err.HelpText...)
	}

	return &Error{
		Type:        ErrorTypeConfig,
		Code:        ErrCodeValidationFailed,
		Message:     strings.Join(messages, "; "),
		Context:     context,
		Remediation: strings.Join(help, "\n"),
	}
}
