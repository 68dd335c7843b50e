package rivet

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// refPrefix is where deduplicated schema definitions live in the document.
const refPrefix = "#/components/schemas/"

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty"`
	Format      string                `json:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Description string                `json:"description,omitempty"`
	Enum        []string              `json:"enum,omitempty"`
	Default     any                   `json:"default,omitempty"`
	Ref         string                `json:"$ref,omitempty"`

	// Constraints mirrored from struct tags and path converters.
	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	MinItems  *int     `json:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty"`

	ContentEncoding string `json:"contentEncoding,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty"`
}

// schemaRegistry builds the deduplicated definitions table for one document
// build. Named object types are deduplicated by type identity, never by
// structural equality: two distinct declared types with identical fields
// get two distinct entries with disambiguated names. The registry lives for
// a single Spec call — the table is rebuilt from scratch every time.
type schemaRegistry struct {
	defs  map[string]JSONSchema
	names map[reflect.Type]string
	owner map[string]reflect.Type
}

func newSchemaRegistry() *schemaRegistry {
	reg := &schemaRegistry{
		defs:  make(map[string]JSONSchema),
		names: make(map[reflect.Type]string),
		owner: make(map[string]reflect.Type),
	}
	// The error response schema owns its slot up front; a user type with
	// the same short name is disambiguated away from it.
	reg.owner[errorSchemaName] = reflect.TypeFor[ProblemDetail]()
	return reg
}

// schemaFor converts a type to a schema, registering named struct types in
// the definitions table and returning a $ref for them. Primitives and
// anonymous structs are always inlined.
func (reg *schemaRegistry) schemaFor(t reflect.Type) JSONSchema {
	if t.Kind() == reflect.Pointer {
		return reg.schemaFor(t.Elem())
	}

	if s, ok := wellKnownSchema(t); ok {
		return s
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", ContentEncoding: "base64"}
		}
		items := reg.schemaFor(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		val := reg.schemaFor(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &val}
	case reflect.Struct:
		if t.Name() == "" {
			return reg.structSchema(t)
		}
		return reg.refFor(t)
	default:
		return typeToSchema(t)
	}
}

// refFor registers a named struct type and returns a reference to it.
func (reg *schemaRegistry) refFor(t reflect.Type) JSONSchema {
	if name, ok := reg.names[t]; ok {
		return JSONSchema{Ref: refPrefix + name}
	}

	name := reg.uniqueName(t)
	reg.names[t] = name
	reg.owner[name] = t
	// Reserve the slot before descending so self-referential types
	// resolve to a ref instead of recursing forever.
	reg.defs[name] = JSONSchema{}
	reg.defs[name] = reg.structSchema(t)

	return JSONSchema{Ref: refPrefix + name}
}

// uniqueName picks a globally unique definition name for a type: the short
// type name, then a package-qualified form, then a numeric suffix. The
// resolution is deterministic for a fixed registration order.
func (reg *schemaRegistry) uniqueName(t reflect.Type) string {
	name := t.Name()
	if owner, taken := reg.owner[name]; !taken || owner == t {
		return name
	}

	if pkg := packageTail(t.PkgPath()); pkg != "" {
		qualified := pkg + "_" + name
		if _, taken := reg.owner[qualified]; !taken {
			return qualified
		}
	}

	for i := 2; ; i++ {
		candidate := name + strconv.Itoa(i)
		if _, taken := reg.owner[candidate]; !taken {
			return candidate
		}
	}
}

func packageTail(pkgPath string) string {
	if pkgPath == "" {
		return ""
	}
	tail := pkgPath[strings.LastIndexByte(pkgPath, '/')+1:]
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, tail)
}

// structSchema builds an object schema, resolving nested named types
// through the registry.
func (reg *schemaRegistry) structSchema(t reflect.Type) JSONSchema {
	return buildStructSchema(t, reg.schemaFor)
}

// typeToSchema converts a type to a fully inlined schema, without a
// definitions table. Used for standalone fragments (response headers,
// webhooks) and tests.
func typeToSchema(t reflect.Type) JSONSchema {
	if t.Kind() == reflect.Pointer {
		return typeToSchema(t.Elem())
	}

	if s, ok := wellKnownSchema(t); ok {
		return s
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return JSONSchema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return JSONSchema{Type: "number"}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", ContentEncoding: "base64"}
		}
		items := typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		val := typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &val}
	case reflect.Struct:
		return structToSchema(t)
	case reflect.Interface:
		return JSONSchema{}
	default:
		return JSONSchema{}
	}
}

// wellKnownSchema handles types with a fixed schema regardless of kind.
func wellKnownSchema(t reflect.Type) (JSONSchema, bool) {
	switch t {
	case reflect.TypeFor[time.Time]():
		return JSONSchema{Type: "string", Format: "date-time"}, true
	case reflect.TypeFor[time.Duration]():
		return JSONSchema{Type: "string", Format: "duration"}, true
	case reflect.TypeFor[uuid.UUID]():
		return JSONSchema{Type: "string", Format: "uuid"}, true
	case reflect.TypeFor[Void]():
		return JSONSchema{}, true
	}
	return JSONSchema{}, false
}

// structToSchema converts a struct type to an object schema with all
// nested types inlined.
func structToSchema(t reflect.Type) JSONSchema {
	return buildStructSchema(t, typeToSchema)
}

// buildStructSchema walks a struct's exported fields, skipping binding
// fields, and converts each remaining field with the given resolver.
func buildStructSchema(t reflect.Type, resolve func(reflect.Type) JSONSchema) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		// Skip param/binding fields — they're not part of the body schema.
		if isParamField(f) {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := resolve(f.Type)

		if doc := f.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}
		applyConstraintTags(f, &prop)

		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

// applyConstraintTags mirrors constraint struct tags into a schema fragment.
func applyConstraintTags(f reflect.StructField, s *JSONSchema) {
	if tag := f.Tag.Get("minimum"); tag != "" {
		if v, err := strconv.ParseFloat(tag, 64); err == nil {
			s.Minimum = &v
		}
	}
	if tag := f.Tag.Get("maximum"); tag != "" {
		if v, err := strconv.ParseFloat(tag, 64); err == nil {
			s.Maximum = &v
		}
	}
	if tag := f.Tag.Get("minLength"); tag != "" {
		if v, err := strconv.Atoi(tag); err == nil {
			s.MinLength = &v
		}
	}
	if tag := f.Tag.Get("maxLength"); tag != "" {
		if v, err := strconv.Atoi(tag); err == nil {
			s.MaxLength = &v
		}
	}
	if tag := f.Tag.Get("pattern"); tag != "" {
		s.Pattern = tag
	}
	if tag := f.Tag.Get("enum"); tag != "" {
		s.Enum = strings.Split(tag, ",")
	}
	if tag := f.Tag.Get("minItems"); tag != "" {
		if v, err := strconv.Atoi(tag); err == nil {
			s.MinItems = &v
		}
	}
	if tag := f.Tag.Get("maxItems"); tag != "" {
		if v, err := strconv.Atoi(tag); err == nil {
			s.MaxItems = &v
		}
	}
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// isParamField reports whether a struct field has parameter binding tags.
func isParamField(f reflect.StructField) bool {
	for _, tag := range locationTags {
		if _, ok := f.Tag.Lookup(tag); ok {
			return true
		}
	}
	return false
}

// errorSchemaName is the definitions-table entry for error responses.
const errorSchemaName = "ProblemDetail"

// errorResponseSchema describes the RFC 9457 problem response every
// operation can return.
func errorResponseSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]JSONSchema{
			"type":     {Type: "string"},
			"title":    {Type: "string"},
			"status":   {Type: "integer"},
			"detail":   {Type: "string"},
			"instance": {Type: "string"},
			"errors": {
				Type: "array",
				Items: &JSONSchema{
					Type: "object",
					Properties: map[string]JSONSchema{
						"field":   {Type: "string"},
						"message": {Type: "string"},
						"value":   {},
					},
				},
			},
		},
		Required: []string{"status"},
	}
}
