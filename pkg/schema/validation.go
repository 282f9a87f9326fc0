package schema

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single validation problem with location context.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates issues from the admission pipeline.
// Admission surfaces only the first error per request, but warnings
// accumulate alongside it.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// First returns the first error-severity issue, or nil when valid.
func (r *ValidationResult) First() *ValidationIssue {
	if len(r.Errors) == 0 {
		return nil
	}
	return &r.Errors[0]
}

// ToError converts the result to an APIError if invalid, nil if valid.
// Only the first error is surfaced; one actionable message per request.
func (r *ValidationResult) ToError() error {
	first := r.First()
	if first == nil {
		return nil
	}

	return NewError(first.Code, first.Message).
		WithPath(first.Path).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
		})
}
