package rivet

import (
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Location is where a classified parameter appears in a request.
type Location string

const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InHeader Location = "header"
	InCookie Location = "cookie"
	InBody   Location = "body"
)

// locationTags are the struct tags that mark a parameter location explicitly.
var locationTags = []string{"path", "query", "header", "cookie", "body"}

// bodyFieldName marks the request-body field of a mixed request struct.
const bodyFieldName = "Body"

// wholeStructIndex marks a body parameter that binds the entire request
// struct rather than one of its fields.
const wholeStructIndex = -1

// Param is one classified handler parameter: a request struct field
// resolved to a location, wire alias, and schema metadata. Classification
// happens once at registration time and is immutable afterwards.
type Param struct {
	Name        string // field name
	Alias       string // wire name
	In          Location
	Type        reflect.Type
	Required    bool
	Default     string // raw default literal from the `default` tag
	HasDefault  bool
	Description string
	Example     string
	Deprecated  bool
	Hidden      bool // omit from the schema document, still bound at request time

	fieldIndex int
	seg        *pathSegment // converter constraints for path params
}

// classifyParams inspects the request struct type and produces one Param
// per exported field, or fails with *ConfigError.
//
// A struct carrying no binding markers at all, with no path variables to
// cover, is bound whole as the request body. Otherwise resolution runs per
// field: a name matching a path variable forces InPath; an explicit
// location tag (or the Body field) is used verbatim; the rest is inferred
// from the type shape — aggregates become the body, everything else
// (scalar sequences included) a query parameter.
func classifyParams(reqType reflect.Type, tmpl *pathTemplate) ([]Param, error) {
	t := reqType
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == reflect.TypeFor[Void]() {
		if len(tmpl.vars) > 0 {
			return nil, configErrorf("handler misses %q argument", tmpl.vars[0])
		}
		return nil, nil
	}

	if t.Kind() != reflect.Struct {
		return nil, configErrorf("request type %s must be a struct or Void", reqType)
	}

	if len(tmpl.vars) == 0 && isWholeBodyStruct(t) {
		return []Param{{
			Name:       t.Name(),
			Alias:      "body",
			In:         InBody,
			Type:       t,
			Required:   true,
			fieldIndex: wholeStructIndex,
		}}, nil
	}

	var params []Param
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		p, err := classifyField(f, i, tmpl)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	if err := checkParams(params, tmpl); err != nil {
		return nil, err
	}
	return params, nil
}

// classifyField resolves a single struct field into a Param.
func classifyField(f reflect.StructField, index int, tmpl *pathTemplate) (Param, error) {
	p := Param{
		Name:        f.Name,
		Type:        f.Type,
		Description: f.Tag.Get("doc"),
		Example:     f.Tag.Get("example"),
		fieldIndex:  index,
	}

	explicit, alias, opts := explicitLocation(f)
	if alias == "" {
		alias = defaultAlias(f)
	}
	p.Alias = alias
	p.Hidden = tagContains(opts, "hidden")
	p.Deprecated = tagContains(opts, "deprecated")

	if v, ok := f.Tag.Lookup("default"); ok {
		p.Default = v
		p.HasDefault = true
	}

	isPathVar := slices.Contains(tmpl.vars, p.Alias)

	switch {
	case isPathVar:
		if explicit != "" && explicit != InPath {
			return Param{}, configErrorf("cannot use %s for path parameter %q", explicit, p.Alias)
		}
		p.In = InPath
	case explicit != "":
		p.In = explicit
	case isComplexType(f.Type):
		p.In = InBody
	default:
		p.In = InQuery
	}

	if p.In == InPath && !isScalarType(f.Type) {
		return Param{}, configErrorf("path parameter %q must be of a scalar type", p.Alias)
	}

	if p.In == InHeader && tagContains(opts, "underscores") {
		p.Alias = strings.ReplaceAll(p.Alias, "_", "-")
	}

	switch {
	case p.In == InPath:
		p.Required = true
		p.seg = tmpl.segment(p.Alias)
	case f.Tag.Get("required") == "true":
		if p.HasDefault {
			return Param{}, configErrorf("parameter %q cannot be both required and defaulted", p.Alias)
		}
		p.Required = true
	}
	if p.In == InBody {
		p.Required = !p.HasDefault
	}

	return p, nil
}

// checkParams enforces the classification invariants: at most one body
// parameter, and every path variable covered by a path parameter.
func checkParams(params []Param, tmpl *pathTemplate) error {
	bodies := 0
	for _, p := range params {
		if p.In == InBody {
			bodies++
		}
	}
	if bodies > 1 {
		return configErrorf("multiple request body arguments")
	}

	for _, name := range tmpl.vars {
		covered := false
		for _, p := range params {
			if p.In == InPath && p.Alias == name {
				covered = true
				break
			}
		}
		if !covered {
			return configErrorf("handler misses %q argument", name)
		}
	}
	return nil
}

// isWholeBodyStruct reports whether a request struct has no binding
// markers anywhere: no location tags, no Body field, at least one exported
// field. Such a struct decodes whole from the request body.
func isWholeBodyStruct(t reflect.Type) bool {
	exported := 0
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		exported++
		if isParamField(f) || f.Name == bodyFieldName {
			return false
		}
	}
	return exported > 0
}

// isBodyMarker reports whether a field is the request body: either tagged
// `body:""` or named Body.
func isBodyMarker(f reflect.StructField) bool {
	if _, ok := f.Tag.Lookup("body"); ok {
		return true
	}
	return f.Name == bodyFieldName
}

// explicitLocation returns the location marker tag on a field, with the
// alias and tag options it carries. A field named Body is a body marker.
func explicitLocation(f reflect.StructField) (Location, string, string) {
	for _, tag := range locationTags {
		if v, ok := f.Tag.Lookup(tag); ok {
			name, opts := tagOptions(v)
			return Location(tag), name, opts
		}
	}
	if f.Name == bodyFieldName {
		return InBody, "body", ""
	}
	return "", "", ""
}

// defaultAlias is the wire name for an untagged field: the json name when
// present, the field name otherwise.
func defaultAlias(f reflect.StructField) string {
	if name := jsonFieldName(f); name != "" && name != "-" && name != f.Name {
		return name
	}
	return f.Name
}

// wellKnownScalars are struct types bound as single values.
var wellKnownScalars = []reflect.Type{
	reflect.TypeFor[time.Time](),
	reflect.TypeFor[time.Duration](),
	reflect.TypeFor[uuid.UUID](),
}

// isScalarType reports whether t binds from a single string value.
func isScalarType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if slices.Contains(wellKnownScalars, t) {
		return true
	}
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// isScalarSequence reports whether t is a slice or array of scalars, bound
// from repeated query values.
func isScalarSequence(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	return isScalarType(t.Elem())
}

// isComplexType reports whether t infers a body location: objects,
// mappings, and sequences of non-scalars.
func isComplexType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if isScalarType(t) {
		return false
	}
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Interface:
		return true
	case reflect.Slice, reflect.Array:
		return !isScalarType(t.Elem())
	default:
		return false
	}
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}
