package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rsundqvist/prefect/pkg/schema"
)

// JSONSchemaValidator implements the Validator interface using JSON Schema
// Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	// mu guards the cache for dynamic schema compilation.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// ValidateOverrides validates a map of override values against a variable
// schema. A property listed in required is exempted from that requirement
// when its fragment carries a default; the relaxation happens on a private
// copy so the caller's schema is never mutated. A nil schema means no
// variable contract is declared and succeeds trivially.
func (v *JSONSchemaValidator) ValidateOverrides(overrides map[string]any, variables schema.VariableSchema) error {
	if variables == nil {
		return nil
	}

	adjusted, err := relaxRequiredWithDefaults(variables)
	if err != nil {
		return schema.NewError(schema.ErrCodeSchemaViolation, "invalid variables schema").WithCause(err)
	}

	compiled, err := v.getOrCompile(adjusted)
	if err != nil {
		return schema.NewError(schema.ErrCodeSchemaViolation, "invalid variables schema").WithCause(err)
	}

	if overrides == nil {
		overrides = map[string]any{}
	}
	doc, err := toJSONValue(overrides)
	if err != nil {
		return schema.NewError(schema.ErrCodeSchemaViolation, "failed to serialize overrides").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toViolationError(err)
	}
	return nil
}

// ValidateParameters validates a parameters map against an OpenAPI-style
// parameter schema. Fail-open: a nil schema, a schema without a usable
// properties shape, or a schema that does not compile all accept the
// parameters as-is. Parameter schemas are optional metadata, not a hard
// contract.
func (v *JSONSchemaValidator) ValidateParameters(parameters map[string]any, parameterSchema map[string]any) error {
	if parameterSchema == nil {
		return nil
	}
	if _, ok := parameterSchema["properties"].(map[string]any); !ok {
		return nil
	}

	raw, err := json.Marshal(parameterSchema)
	if err != nil {
		return nil
	}
	compiled, err := v.getOrCompile(raw)
	if err != nil {
		return nil
	}

	if parameters == nil {
		parameters = map[string]any{}
	}
	doc, err := toJSONValue(parameters)
	if err != nil {
		return schema.NewError(schema.ErrCodeSchemaViolation, "failed to serialize parameters").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toViolationError(err)
	}
	return nil
}

// relaxRequiredWithDefaults deep-copies the variable schema via a JSON
// round-trip and removes every property from required whose fragment
// carries a default key.
func relaxRequiredWithDefaults(variables schema.VariableSchema) ([]byte, error) {
	raw, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("marshal variables schema: %w", err)
	}
	var copied map[string]any
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, fmt.Errorf("unmarshal variables schema: %w", err)
	}

	required, _ := copied["required"].([]any)
	properties, _ := copied["properties"].(map[string]any)
	if required != nil && properties != nil {
		kept := required[:0]
		for _, name := range required {
			key, _ := name.(string)
			if fragment, ok := properties[key].(map[string]any); ok {
				if _, hasDefault := fragment["default"]; hasDefault {
					continue
				}
			}
			kept = append(kept, name)
		}
		copied["required"] = kept
	}

	return json.Marshal(copied)
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each dynamic schema gets a unique URL to avoid collisions in the compiler.
	url := fmt.Sprintf("prefect://admission-schema/%d", len(v.cache))

	// Use a fresh compiler per dynamic schema to avoid resource collision.
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toViolationError converts a jsonschema.ValidationError into an APIError
// carrying the first-encountered violation with its JSON-pointer path.
// Validation stops at the first violation; callers get one actionable
// message per request.
func toViolationError(err error) *schema.APIError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeSchemaViolation, err.Error())
	}

	path, msg := firstViolation(verr)
	return schema.NewError(schema.ErrCodeSchemaViolation, msg).WithPath(path)
}

// firstViolation descends the ValidationError tree to its first leaf and
// returns the instance location as a JSON-pointer-style path plus message.
func firstViolation(verr *jsonschema.ValidationError) (string, string) {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	path := "/"
	if len(verr.InstanceLocation) > 0 {
		path = "/" + strings.Join(verr.InstanceLocation, "/")
	}
	return path, verr.Error()
}
