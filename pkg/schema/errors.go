package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeMissingDeclaration = "MISSING_DECLARATION"
	ErrCodeSchemaViolation    = "SCHEMA_VIOLATION"
	ErrCodeConfigurationShape = "CONFIGURATION_SHAPE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeStore              = "STORE_ERROR"
	ErrCodeVault              = "VAULT_ERROR"
)

// APIError is the structured error type for all admission operations.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Path    string         `json:"path,omitempty"`
	Cause   error          `json:"-"`
}

func (e *APIError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewError creates a new APIError.
func NewError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// NewErrorf creates a new APIError with a formatted message.
func NewErrorf(code, format string, args ...any) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPath attaches a JSON-pointer-style instance path to the error.
func (e *APIError) WithPath(path string) *APIError {
	e.Path = path
	return e
}

// WithCause attaches an underlying cause.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	e.Details = details
	return e
}
