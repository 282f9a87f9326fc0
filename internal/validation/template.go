package validation

import (
	"sort"
	"strings"

	"github.com/rsundqvist/prefect/internal/templating"
	"github.com/rsundqvist/prefect/pkg/schema"
)

// TemplateChecker verifies that every placeholder referenced by a job
// configuration template is declared in the accompanying variable schema.
type TemplateChecker struct {
	extract templating.ExtractFunc
}

// NewTemplateChecker creates a TemplateChecker. A nil extract falls back to
// the default {{ name }} grammar.
func NewTemplateChecker(extract templating.ExtractFunc) *TemplateChecker {
	if extract == nil {
		extract = templating.ExtractNames
	}
	return &TemplateChecker{extract: extract}
}

// ValidateBaseJobTemplate checks a work pool's base job template. An empty
// template is accepted; a non-empty one must carry both a job_configuration
// and a variables section, and every placeholder the configuration uses must
// be declared.
func (c *TemplateChecker) ValidateBaseJobTemplate(tpl schema.BaseJobTemplate) error {
	if len(tpl) == 0 {
		return nil
	}

	jobConfig, _ := tpl["job_configuration"].(map[string]any)
	variables, _ := tpl["variables"].(map[string]any)
	if len(jobConfig) == 0 || len(variables) == 0 {
		return schema.NewError(schema.ErrCodeConfigurationShape,
			"the base_job_template must contain both a job_configuration key and a variables key")
	}

	return c.CheckTemplateVariables(jobConfig, variables)
}

// CheckTemplateVariables extracts every placeholder referenced anywhere in
// the job configuration (including nested maps and list elements) and checks
// the set against the variable schema's properties. The referenced set must
// be a subset of the declared set; a configuration that references nothing
// passes regardless of what the schema declares.
func (c *TemplateChecker) CheckTemplateVariables(jobConfig map[string]any, variables schema.VariableSchema) error {
	referenced := make(map[string]struct{})
	for _, value := range jobConfig {
		for _, name := range c.extract(templating.SerializeValue(value)) {
			referenced[name] = struct{}{}
		}
	}

	declared := declaredNames(variables)

	var missing []string
	for name := range referenced {
		if _, ok := declared[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return missingDeclarationError(missing)
	}

	return nil
}

// ReviewBaseJobTemplate collects every problem with the template instead of
// stopping at the first, plus warnings for declared-but-unreferenced
// properties. Used by dry-run validation surfaces; admission proper uses
// ValidateBaseJobTemplate.
func (c *TemplateChecker) ReviewBaseJobTemplate(tpl schema.BaseJobTemplate) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if len(tpl) == 0 {
		return result
	}

	jobConfig, _ := tpl["job_configuration"].(map[string]any)
	variables, _ := tpl["variables"].(map[string]any)
	if len(jobConfig) == 0 {
		result.AddError("/job_configuration", schema.ErrCodeConfigurationShape,
			"the base_job_template must contain a job_configuration key")
	}
	if len(variables) == 0 {
		result.AddError("/variables", schema.ErrCodeConfigurationShape,
			"the base_job_template must contain a variables key")
	}
	if !result.Valid() {
		return result
	}

	referenced := make(map[string]struct{})
	for _, value := range jobConfig {
		for _, name := range c.extract(templating.SerializeValue(value)) {
			referenced[name] = struct{}{}
		}
	}
	declared := declaredNames(variables)

	for _, name := range sortedNames(referenced) {
		if _, ok := declared[name]; !ok {
			result.AddError("/variables/properties/"+name, schema.ErrCodeMissingDeclaration,
				"job configuration references undeclared variable "+name)
		}
	}
	for _, name := range sortedNames(declared) {
		if _, ok := referenced[name]; !ok {
			result.AddWarning("/variables/properties/"+name, schema.ErrCodeValidation,
				"declared variable "+name+" is never referenced by the job configuration")
		}
	}
	return result
}

// declaredNames returns the set of property names declared by the variable schema.
func declaredNames(variables schema.VariableSchema) map[string]struct{} {
	declared := make(map[string]struct{})
	if variables == nil {
		return declared
	}
	properties, _ := variables["properties"].(map[string]any)
	for name := range properties {
		declared[name] = struct{}{}
	}
	return declared
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// missingDeclarationError builds the rejection for undeclared placeholders.
// The missing set is sorted so messages are deterministic.
func missingDeclarationError(missing []string) *schema.APIError {
	msg := "the variables specified in the job configuration template must be present as properties in the variables schema" +
		"; your job configuration uses the following undeclared variable(s): " + strings.Join(missing, ", ")
	return schema.NewError(schema.ErrCodeMissingDeclaration, msg).
		WithDetails(map[string]any{"missing_variables": missing})
}
