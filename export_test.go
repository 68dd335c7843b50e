package rivet

import "reflect"

// Test-only exports for internal functions.
var (
	ParseTemplate      = parseTemplate
	ParseConverterArgs = parseConverterArgs

	ClassifyParams = classifyParams
	TagOptions     = tagOptions
	TagContains    = tagContains

	ResolveResponses  = resolveResponses
	MatchResponse     = matchResponse
	UnionAlternatives = unionAlternatives

	TypeToSchema        = typeToSchema
	StructToSchema      = structToSchema
	JSONFieldName       = jsonFieldName
	ApplyConstraintTags = applyConstraintTags

	ErrorResponseSchema = errorResponseSchema
	ErrorSchemaName     = errorSchemaName

	ValidateConstraints = validateConstraints
	GenerateOperationID = generateOperationID
	SplitDoc            = splitDoc
	JoinPaths           = joinPaths
)

// TestTemplate exposes parsed template details for external tests.
type TestTemplate struct {
	tmpl *pathTemplate
}

// MustParseTemplate parses a rule or panics.
func MustParseTemplate(rule string) *TestTemplate {
	tmpl, err := parseTemplate(rule)
	if err != nil {
		panic(err)
	}
	return &TestTemplate{tmpl: tmpl}
}

// Vars returns the placeholder names in order.
func (t *TestTemplate) Vars() []string { return t.tmpl.vars }

// DisplayPath returns the normalized {name} form.
func (t *TestTemplate) DisplayPath() string { return t.tmpl.displayPath() }

// MuxPattern returns the dispatch pattern.
func (t *TestTemplate) MuxPattern() string { return t.tmpl.muxPattern() }

// CheckVar validates a raw value against a placeholder's converter.
func (t *TestTemplate) CheckVar(name, raw string) error {
	return t.tmpl.segment(name).check(raw)
}

// VarSchema returns the schema fragment for a placeholder.
func (t *TestTemplate) VarSchema(name string) JSONSchema {
	return t.tmpl.segment(name).schema()
}

// ClassifyFor classifies a request type against a template rule.
func ClassifyFor(reqType reflect.Type, rule string) ([]Param, error) {
	tmpl, err := parseTemplate(rule)
	if err != nil {
		return nil, err
	}
	return classifyParams(reqType, tmpl)
}

// TestSchemaRegistry wraps schemaRegistry for external tests.
type TestSchemaRegistry struct {
	reg  *schemaRegistry
	Defs map[string]JSONSchema
}

// NewSchemaRegistry creates a TestSchemaRegistry for testing.
func NewSchemaRegistry() *TestSchemaRegistry {
	r := newSchemaRegistry()
	return &TestSchemaRegistry{reg: r, Defs: r.defs}
}

// SchemaFor delegates to the internal registry.
func (t *TestSchemaRegistry) SchemaFor(typ reflect.Type) JSONSchema {
	return t.reg.schemaFor(typ)
}
