package rivet

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
)

// Operation is one registered route: a method, a parsed path template, the
// classified parameters, the resolved status-to-type response table, and
// the typed handler behind them. Everything here is derived once at
// registration time; serving a request never mutates the Operation.
type Operation struct {
	method        string
	tmpl          *pathTemplate
	summary       string
	description   string
	tags          []string
	deprecated    bool
	operationID   string
	defaultStatus int

	params    []Param
	responses []ResponseEntry
	// extra error codes declared for the document beyond the implied set
	errorCodes []int

	reqType  reflect.Type
	respType reflect.Type

	auth       authSetting
	callbacks  map[string]Callback
	extensions map[string]any

	newRequest func() any
	invoke     func(ctx context.Context, req any) (any, error)
}

// Method returns the HTTP method the operation is registered under.
func (op *Operation) Method() string { return op.method }

// Path returns the normalized path with every placeholder as {name}.
func (op *Operation) Path() string { return op.tmpl.displayPath() }

// muxEntry is the "METHOD /pattern" form used for ServeMux dispatch.
func (op *Operation) muxEntry() string {
	return op.method + " " + op.tmpl.muxPattern()
}

// serve runs the request pipeline: authenticate, bind, validate, invoke,
// serialize. Each stage short-circuits into a problem response.
func (op *Operation) serve(w http.ResponseWriter, r *http.Request, codecs *codecRegistry, validator Validator) {
	ctx := r.Context()

	if op.auth.set && op.auth.policy != nil {
		identity, ok := op.auth.policy.Authenticate(r)
		if !ok {
			writeProblem(w, &ProblemDetail{
				Title:  "Unauthorized",
				Status: http.StatusUnauthorized,
				Detail: "Unauthorized",
			})
			return
		}
		ctx = context.WithValue(ctx, identityKey{}, identity)
	}

	req := op.newRequest()
	if len(op.params) > 0 {
		if err := bindRequest(req, op.params, r, codecs); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := validateConstraints(req); err != nil {
		writeError(w, err)
		return
	}
	if sv, ok := req.(SelfValidator); ok {
		if err := sv.Validate(); err != nil {
			writeError(w, err)
			return
		}
	}
	if validator != nil {
		if err := validator.Validate(req); err != nil {
			writeError(w, err)
			return
		}
	}

	resp, err := op.invoke(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	op.writeResult(w, r, resp, codecs)
}

// writeResult maps the handler's return value to a status code via the
// response table and serializes it with the negotiated encoder.
func (op *Operation) writeResult(w http.ResponseWriter, r *http.Request, resp any, codecs *codecRegistry) {
	if op.respType == reflect.TypeFor[Void]() || isNilValue(resp) {
		w.WriteHeader(op.defaultStatus)
		return
	}

	value := resp
	if u, ok := unwrapUnion(resp); ok {
		if isNilValue(u) {
			writeProblem(w, &ProblemDetail{
				Title:  "Internal Server Error",
				Status: http.StatusInternalServerError,
				Detail: "empty union response",
			})
			return
		}
		value = u
	}

	entry, ok := matchResponse(op.responses, value)
	if !ok {
		writeProblem(w, &ProblemDetail{
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
			Detail: "response type does not match any declared response",
		})
		return
	}

	// Raw string responses skip serialization entirely.
	if s, ok := stringValue(value); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(entry.Status)
		_, _ = w.Write([]byte(s))
		return
	}

	enc, ok := codecs.negotiate(r.Header.Get("Accept"))
	if !ok {
		writeProblem(w, &ProblemDetail{
			Title:  "Not Acceptable",
			Status: http.StatusNotAcceptable,
			Detail: "no encoder satisfies the Accept header",
		})
		return
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(entry.Status)
	_ = enc.Encode(w, value)
}

// unwrapUnion extracts the assigned value from a union marker response.
func unwrapUnion(resp any) (any, bool) {
	v := reflect.ValueOf(resp)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	u, ok := v.Interface().(unionResponse)
	if !ok {
		return nil, false
	}
	return u.unwrap(), true
}

// stringValue reports whether the (possibly pointer-wrapped) value is a
// plain string and returns it.
func stringValue(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.String && rv.Type() == reflect.TypeFor[string]() {
		return rv.String(), true
	}
	return "", false
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// withPrefix clones the operation under a prefixed path. The original is
// untouched, so a registry mounted into several parents keeps its own
// paths. The request type is classified again against the combined
// template, because a templated prefix can introduce new path variables
// that were plain query parameters before. Panics on a malformed prefix
// or an uncoverable variable, like registration does.
func (op *Operation) withPrefix(prefix string) *Operation {
	clone := *op
	tmpl, err := parseTemplate(joinPaths(prefix, op.tmpl.raw))
	if err != nil {
		panic(err)
	}
	clone.tmpl = tmpl

	params, err := classifyParams(op.reqType, tmpl)
	if err != nil {
		panic(err)
	}
	clone.params = params
	return &clone
}

// resolveAuth returns the operation with the default policy applied when
// no policy was set at registration time. An explicitly disabled policy
// never inherits.
func (op *Operation) resolveAuth(def authSetting) *Operation {
	if op.auth.set || !def.set {
		return op
	}
	clone := *op
	clone.auth = def
	return &clone
}

func joinPaths(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if path == "" {
		return prefix
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return prefix + path
}

// problemFrom converts a handler error into an RFC 9457 problem.
func problemFrom(err error) *ProblemDetail {
	var p *ProblemDetail
	if errors.As(err, &p) {
		return p
	}
	status := ErrorStatus(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "Internal Server Error"
	}
	return &ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeProblem(w, problemFrom(err))
}

func writeProblem(w http.ResponseWriter, p *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = jsonCodec{}.Encode(w, p)
}
