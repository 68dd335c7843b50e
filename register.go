package rivet

import (
	"context"
	"net/http"
	"reflect"
	"slices"
	"strings"
)

// Registrar accepts new operations. Both *Router and mounted sub-routers
// implement it.
type Registrar interface {
	addOperation(op *Operation)
}

// opConfig collects registration options before they are resolved into an
// Operation.
type opConfig struct {
	summary     string
	description string
	tags        []string
	deprecated  bool
	operationID string
	status      int
	errorCodes  []int

	responses []ResponseEntry

	auth authSetting

	callbacks  map[string]Callback
	extensions map[string]any
}

// RouteOption configures an operation at registration time.
type RouteOption func(*opConfig)

// WithStatus sets the default HTTP status code for the response.
func WithStatus(code int) RouteOption {
	return func(c *opConfig) {
		c.status = code
	}
}

// WithSummary sets the OpenAPI summary for the operation.
func WithSummary(s string) RouteOption {
	return func(c *opConfig) {
		c.summary = s
	}
}

// WithDescription sets the OpenAPI description for the operation.
func WithDescription(d string) RouteOption {
	return func(c *opConfig) {
		c.description = d
	}
}

// WithDoc sets summary and description from a doc string: the first line
// becomes the summary, the remainder the description. It overrides
// WithSummary and WithDescription.
func WithDoc(doc string) RouteOption {
	return func(c *opConfig) {
		c.summary, c.description = splitDoc(doc)
	}
}

// WithTags adds OpenAPI tags to the operation.
func WithTags(tags ...string) RouteOption {
	return func(c *opConfig) {
		c.tags = append(c.tags, tags...)
	}
}

// WithDeprecated marks the operation as deprecated in the document.
func WithDeprecated() RouteOption {
	return func(c *opConfig) {
		c.deprecated = true
	}
}

// WithOperationID sets a custom OpenAPI operationId.
func WithOperationID(id string) RouteOption {
	return func(c *opConfig) {
		c.operationID = id
	}
}

// WithErrors declares additional error status codes for the document.
func WithErrors(codes ...int) RouteOption {
	return func(c *opConfig) {
		c.errorCodes = append(c.errorCodes, codes...)
	}
}

// WithResponse declares that the operation returns T with the given status
// code. Required once per alternative for union return types.
func WithResponse[T any](status int) RouteOption {
	return func(c *opConfig) {
		c.responses = append(c.responses, ResponseEntry{Status: status, Type: reflect.TypeFor[T]()})
	}
}

// WithResponses declares several status-to-type entries at once. Entries
// are recorded in ascending status order so the resulting table is
// deterministic regardless of map iteration.
func WithResponses(entries map[int]reflect.Type) RouteOption {
	return func(c *opConfig) {
		codes := make([]int, 0, len(entries))
		for code := range entries {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			c.responses = append(c.responses, ResponseEntry{Status: code, Type: entries[code]})
		}
	}
}

// WithAuth sets the authentication policy for the operation.
func WithAuth(a Authenticator) RouteOption {
	return func(c *opConfig) {
		c.auth = authSetting{set: true, policy: a}
	}
}

// WithNoAuth explicitly disables authentication for the operation, even
// when the router carries a default policy.
func WithNoAuth() RouteOption {
	return func(c *opConfig) {
		c.auth = authSetting{set: true}
	}
}

// WithCallback adds an OpenAPI callback to the operation.
func WithCallback(name string, cb Callback) RouteOption {
	return func(c *opConfig) {
		if c.callbacks == nil {
			c.callbacks = make(map[string]Callback)
		}
		c.callbacks[name] = cb
	}
}

// WithExtension adds an OpenAPI extension to the operation.
// The key must start with "x-".
func WithExtension(key string, value any) RouteOption {
	return func(c *opConfig) {
		if c.extensions == nil {
			c.extensions = make(map[string]any)
		}
		c.extensions[key] = value
	}
}

// register is the internal generic registration function. Any
// configuration mistake panics with *ConfigError or *TemplateError:
// a misconfigured operation must never serve traffic.
func register[Req, Resp any](reg Registrar, method, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	var c opConfig
	for _, opt := range opts {
		opt(&c)
	}

	tmpl, err := parseTemplate(pattern)
	if err != nil {
		panic(err)
	}

	reqType := reflect.TypeFor[Req]()
	respType := reflect.TypeFor[Resp]()

	params, err := classifyParams(reqType, tmpl)
	if err != nil {
		panic(err)
	}

	if c.status == 0 {
		if respType == reflect.TypeFor[Void]() {
			c.status = http.StatusNoContent
		} else {
			c.status = http.StatusOK
		}
	}

	var responses []ResponseEntry
	if respType == reflect.TypeFor[Void]() && len(c.responses) == 0 {
		responses = []ResponseEntry{{Status: c.status, Type: respType}}
	} else {
		responses, err = resolveResponses(c.responses, respType, c.status)
		if err != nil {
			panic(err)
		}
	}

	for key := range c.extensions {
		if !strings.HasPrefix(key, "x-") {
			panic(configErrorf("extension key %q must start with x-", key))
		}
	}

	op := &Operation{
		method:        method,
		tmpl:          tmpl,
		summary:       c.summary,
		description:   c.description,
		tags:          slices.Clone(c.tags),
		deprecated:    c.deprecated,
		operationID:   c.operationID,
		defaultStatus: c.status,
		params:        params,
		responses:     responses,
		errorCodes:    slices.Clone(c.errorCodes),
		reqType:       reqType,
		respType:      respType,
		auth:          c.auth,
		callbacks:     c.callbacks,
		extensions:    c.extensions,
		newRequest:    func() any { return new(Req) },
		invoke: func(ctx context.Context, req any) (any, error) {
			resp, err := h(ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			if resp == nil {
				return nil, nil
			}
			return resp, nil
		},
	}

	reg.addOperation(op)
}

// Get registers a GET handler.
func Get[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a POST handler.
func Post[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a PUT handler.
func Put[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a PATCH handler.
func Patch[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a DELETE handler.
func Delete[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodDelete, pattern, h, opts...)
}

// splitDoc splits a doc string into summary (first non-empty line) and
// description (the rest).
func splitDoc(doc string) (summary, description string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return "", ""
	}
	summary, description, _ = strings.Cut(doc, "\n")
	return strings.TrimSpace(summary), strings.TrimSpace(description)
}
