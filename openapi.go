package rivet

import (
	"encoding/json"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI  string              `json:"openapi"`
	Info     OpenAPIInfo         `json:"info"`
	Servers  []Server            `json:"servers,omitempty"`
	Tags     []Tag               `json:"tags,omitempty"`
	Paths    map[string]PathItem `json:"paths"`
	Webhooks map[string]PathItem `json:"webhooks,omitempty"`

	Components *Components `json:"components,omitempty"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Server is an OpenAPI server entry.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Tag is an OpenAPI tag with an optional description.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Components holds the deduplicated schema definitions and the security
// schemes collected from operation policies.
type Components struct {
	Schemas         map[string]JSONSchema     `json:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty"`
}

// PathItem maps lowercase HTTP methods to operations.
type PathItem map[string]OperationObj

// Callback describes an out-of-band request the service makes against a
// caller-supplied URL expression. The body type and parameters go through
// the same schema pipeline as regular operations, so named callback types
// are deduplicated into the shared definitions table.
type Callback struct {
	URL     string
	Method  string // defaults to POST
	Summary string

	Body      reflect.Type   // optional request body type
	Params    []Param        // optional parameters
	Responses map[int]string // status code → description
}

// OperationObj describes a single API operation on a path.
type OperationObj struct {
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	OperationID string                `json:"operationId,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty"`
	Responses   OperationResp         `json:"responses"`
	Deprecated  bool                  `json:"deprecated,omitempty"`
	Security    []map[string][]string `json:"security,omitempty"`

	// Callbacks is keyed by callback name, then URL expression.
	Callbacks map[string]map[string]PathItem `json:"callbacks,omitempty"`

	// Extensions are x- keys merged into the marshaled object.
	Extensions map[string]any `json:"-"`
}

// MarshalJSON merges the x- extension keys into the operation object.
func (o OperationObj) MarshalJSON() ([]byte, error) {
	type plain OperationObj
	data, err := json.Marshal(plain(o))
	if err != nil || len(o.Extensions) == 0 {
		return data, err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for key, value := range o.Extensions {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		m[key] = raw
	}
	return json.Marshal(m)
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name"`
	In          string     `json:"in"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Deprecated  bool       `json:"deprecated,omitempty"`
	Schema      JSONSchema `json:"schema"`
	Example     string     `json:"example,omitempty"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                `json:"required"`
	Content  map[string]MediaObj `json:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema *JSONSchema `json:"schema,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description"`
	Content     map[string]MediaObj `json:"content,omitempty"`
}

// Spec builds the OpenAPI 3.1 document from the registered operations.
// The definitions table is rebuilt from scratch on every call, so the
// result always reflects the current registry, and repeated calls on an
// unchanged router produce identical documents.
func (r *Router) Spec() OpenAPISpec {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info: OpenAPIInfo{
			Title:       r.title,
			Version:     r.version,
			Description: r.description,
		},
		Servers:  r.servers,
		Paths:    make(map[string]PathItem),
		Webhooks: r.webhooks,
	}

	reg := newSchemaRegistry()
	securitySchemes := make(map[string]SecurityScheme)
	tagNames := make(map[string]bool)

	for _, op := range r.ops {
		path := op.tmpl.displayPath()
		method := strings.ToLower(op.method)

		obj := buildOperation(op, reg, securitySchemes)
		for _, tag := range obj.Tags {
			tagNames[tag] = true
		}

		if spec.Paths[path] == nil {
			spec.Paths[path] = make(PathItem)
		}
		spec.Paths[path][method] = obj
	}

	spec.Tags = buildTags(tagNames, r.tagDescs)

	if len(reg.defs) > 0 || len(securitySchemes) > 0 {
		spec.Components = &Components{}
		if len(reg.defs) > 0 {
			spec.Components.Schemas = reg.defs
		}
		if len(securitySchemes) > 0 {
			spec.Components.SecuritySchemes = securitySchemes
		}
	}

	return spec
}

// buildOperation converts one registered operation into its document form,
// registering every referenced type in the shared definitions table.
func buildOperation(op *Operation, reg *schemaRegistry, securitySchemes map[string]SecurityScheme) OperationObj {
	obj := OperationObj{
		Summary:     op.summary,
		Description: op.description,
		Deprecated:  op.deprecated,
		OperationID: op.operationID,
		Responses:   make(OperationResp),
		Extensions:  op.extensions,
	}

	if len(op.callbacks) > 0 {
		obj.Callbacks = make(map[string]map[string]PathItem, len(op.callbacks))
		names := make([]string, 0, len(op.callbacks))
		for name := range op.callbacks {
			names = append(names, name)
		}
		// Sorted so callback types enter the definitions table in a
		// stable order.
		slices.Sort(names)
		for _, name := range names {
			obj.Callbacks[name] = buildCallback(op.callbacks[name], reg)
		}
	}

	obj.Tags = slices.Clone(op.tags)
	slices.Sort(obj.Tags)
	obj.Tags = slices.Compact(obj.Tags)

	if obj.OperationID == "" {
		obj.OperationID = generateOperationID(op.method, op.tmpl.displayPath())
	}

	for i := range op.params {
		p := &op.params[i]
		if p.Hidden || p.In == InBody {
			continue
		}
		obj.Parameters = append(obj.Parameters, buildParameter(p, reg))
	}

	if body := bodyParam(op.params); body != nil {
		schema := reg.schemaFor(body.Type)
		obj.RequestBody = &RequestBody{
			Required: body.Required,
			Content:  map[string]MediaObj{"application/json": {Schema: &schema}},
		}
	}

	for _, entry := range op.responses {
		obj.Responses[strconv.Itoa(entry.Status)] = buildResponse(entry, reg)
	}
	addImpliedErrors(op, obj.Responses, reg)

	if op.auth.set && op.auth.policy != nil {
		name, scheme := op.auth.policy.Scheme()
		securitySchemes[name] = scheme
		obj.Security = []map[string][]string{{name: {}}}
	}

	return obj
}

func buildParameter(p *Param, reg *schemaRegistry) Parameter {
	var schema JSONSchema
	if p.seg != nil {
		schema = p.seg.schema()
	} else {
		schema = reg.schemaFor(p.Type)
	}
	if p.HasDefault {
		schema.Default = p.Default
	}

	return Parameter{
		Name:        p.Alias,
		In:          string(p.In),
		Description: p.Description,
		Required:    p.Required,
		Deprecated:  p.Deprecated,
		Schema:      schema,
		Example:     p.Example,
	}
}

// buildCallback converts a callback descriptor into its document form,
// resolving the body type and parameter schemas through the shared
// definitions table.
func buildCallback(cb Callback, reg *schemaRegistry) map[string]PathItem {
	cbOp := OperationObj{
		Summary:   cb.Summary,
		Responses: make(OperationResp),
	}

	for i := range cb.Params {
		p := &cb.Params[i]
		if p.Hidden || p.In == InBody {
			continue
		}
		cbOp.Parameters = append(cbOp.Parameters, buildParameter(p, reg))
	}

	if cb.Body != nil {
		schema := reg.schemaFor(cb.Body)
		cbOp.RequestBody = &RequestBody{
			Required: true,
			Content:  map[string]MediaObj{"application/json": {Schema: &schema}},
		}
	}

	codes := make([]int, 0, len(cb.Responses))
	for code := range cb.Responses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		desc := cb.Responses[code]
		if desc == "" {
			desc = http.StatusText(code)
		}
		cbOp.Responses[strconv.Itoa(code)] = ResponseObj{Description: desc}
	}
	if len(codes) == 0 {
		cbOp.Responses["200"] = ResponseObj{Description: http.StatusText(http.StatusOK)}
	}

	method := strings.ToLower(cb.Method)
	if method == "" {
		method = "post"
	}
	return map[string]PathItem{cb.URL: {method: cbOp}}
}

func bodyParam(params []Param) *Param {
	for i := range params {
		if params[i].In == InBody {
			return &params[i]
		}
	}
	return nil
}

func buildResponse(entry ResponseEntry, reg *schemaRegistry) ResponseObj {
	if entry.Type == reflect.TypeFor[Void]() || entry.Status == http.StatusNoContent {
		return ResponseObj{Description: "No Content"}
	}

	if entry.Type.Kind() == reflect.String {
		return ResponseObj{
			Description: http.StatusText(entry.Status),
			Content: map[string]MediaObj{
				"text/plain": {Schema: &JSONSchema{Type: "string"}},
			},
		}
	}

	schema := reg.schemaFor(entry.Type)
	return ResponseObj{
		Description: http.StatusText(entry.Status),
		Content:     map[string]MediaObj{"application/json": {Schema: &schema}},
	}
}

// addImpliedErrors documents the error responses the pipeline itself can
// produce: binding failures, unmatched path values, unhandled errors, and
// authentication rejections. Explicit entries for the same code win.
func addImpliedErrors(op *Operation, responses OperationResp, reg *schemaRegistry) {
	codes := []int{http.StatusBadRequest, http.StatusInternalServerError}
	if len(op.tmpl.vars) > 0 {
		codes = append(codes, http.StatusNotFound)
	}
	if op.auth.set && op.auth.policy != nil {
		codes = append(codes, http.StatusUnauthorized)
	}
	codes = append(codes, op.errorCodes...)

	for _, code := range codes {
		key := strconv.Itoa(code)
		if _, ok := responses[key]; ok {
			continue
		}
		responses[key] = ResponseObj{
			Description: http.StatusText(code),
			Content: map[string]MediaObj{
				"application/problem+json": {Schema: problemRef(reg)},
			},
		}
	}
}

// problemRef fills the reserved error schema slot and returns a reference.
func problemRef(reg *schemaRegistry) *JSONSchema {
	if _, ok := reg.defs[errorSchemaName]; !ok {
		reg.defs[errorSchemaName] = errorResponseSchema()
	}
	return &JSONSchema{Ref: refPrefix + errorSchemaName}
}

func buildTags(used map[string]bool, descs map[string]string) []Tag {
	names := make([]string, 0, len(used)+len(descs))
	for name := range used {
		names = append(names, name)
	}
	for name := range descs {
		if !used[name] {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, Tag{Name: name, Description: descs[name]})
	}
	return tags
}

// generateOperationID derives a default operationId from the method and
// the normalized path: "GET /users/{id}" becomes "getUsersId".
func generateOperationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))

	upper := false
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if upper && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upper = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	return b.String()
}
