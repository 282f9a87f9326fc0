package validation

import "github.com/rsundqvist/prefect/pkg/schema"

// Validator checks map-shaped payload fields against their declared schemas
// before a payload is accepted. Uses JSON Schema Draft 2020-12.
type Validator interface {
	ValidateOverrides(overrides map[string]any, variables schema.VariableSchema) error
	ValidateParameters(parameters map[string]any, parameterSchema map[string]any) error
}
