package rivet

import (
	"context"
	"reflect"
)

// Void is used as a type parameter when a request has no parameters/body
// or a response has no body (results in 204 No Content).
type Void struct{}

// Handler is the core typed handler signature. The framework owns binding
// and serialization — handlers never see http.ResponseWriter or *http.Request.
type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// ResponseEntry maps one status code to the type returned with it.
type ResponseEntry struct {
	Status int
	Type   reflect.Type
}

// unionResponse is implemented by the Union2/Union3 marker types. A handler
// whose return type varies by status code declares the alternatives as type
// parameters and assigns the actual value to the Value field.
type unionResponse interface {
	alternatives() []reflect.Type
	unwrap() any
}

// Union2 declares a handler response that is one of two alternative types.
// Every alternative must be given an explicit status code via WithResponse.
type Union2[A, B any] struct {
	Value any
}

func (Union2[A, B]) alternatives() []reflect.Type {
	return []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()}
}

func (u Union2[A, B]) unwrap() any { return u.Value }

// Union3 declares a handler response that is one of three alternative types.
type Union3[A, B, C any] struct {
	Value any
}

func (Union3[A, B, C]) alternatives() []reflect.Type {
	return []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]()}
}

func (u Union3[A, B, C]) unwrap() any { return u.Value }

var unionIface = reflect.TypeFor[unionResponse]()

// unionAlternatives returns the declared alternatives when t is a union
// marker type, or nil otherwise.
func unionAlternatives(t reflect.Type) []reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || !t.Implements(unionIface) {
		return nil
	}
	u, ok := reflect.New(t).Elem().Interface().(unionResponse)
	if !ok {
		return nil
	}
	return u.alternatives()
}

// isAnyType reports whether t is the empty interface, i.e. the handler
// declared no usable return type.
func isAnyType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// resolveResponses reconciles explicit status-code entries with the
// handler's declared return type. It is pure and deterministic: the same
// inputs always yield the same ordered entry list.
//
// Without explicit entries, a concrete return type maps to the default
// status; Void maps to 204; a union or missing return type is a
// configuration error. With explicit entries, each union alternative must
// appear, and a concrete declared type must agree with any entry for
// status 200.
func resolveResponses(explicit []ResponseEntry, declared reflect.Type, defaultStatus int) ([]ResponseEntry, error) {
	seen := make(map[int]bool, len(explicit))
	for _, e := range explicit {
		if seen[e.Status] {
			return nil, configErrorf("duplicate response entry for status %d", e.Status)
		}
		seen[e.Status] = true
	}

	alts := unionAlternatives(declared)

	if len(explicit) == 0 {
		switch {
		case declared == nil || isAnyType(declared):
			return nil, configErrorf("return type not specified")
		case alts != nil:
			return nil, configErrorf("union return type requires an explicit status code for each alternative")
		default:
			return []ResponseEntry{{Status: defaultStatus, Type: declared}}, nil
		}
	}

	if alts != nil {
		for _, alt := range alts {
			found := false
			for _, e := range explicit {
				if e.Type == alt {
					found = true
					break
				}
			}
			if !found {
				return nil, configErrorf("return type %s requires an explicit status code", alt)
			}
		}
		return explicit, nil
	}

	if declared != nil && !isAnyType(declared) && declared != reflect.TypeFor[Void]() {
		for _, e := range explicit {
			if e.Status == 200 && e.Type != declared {
				return nil, configErrorf("declared return type %s does not match response type %s for status 200", declared, e.Type)
			}
		}
	}

	return explicit, nil
}

// matchResponse scans entries in declaration order and selects the first
// whose type matches the runtime type of v. Parametrized containers match
// on the outer shape only: a declared slice matches any slice value.
func matchResponse(entries []ResponseEntry, v any) (ResponseEntry, bool) {
	actual := reflect.TypeOf(v)
	if actual == nil {
		return ResponseEntry{}, false
	}
	for _, e := range entries {
		if typeMatches(e.Type, actual) {
			return e, true
		}
	}
	return ResponseEntry{}, false
}

func typeMatches(declared, actual reflect.Type) bool {
	for declared.Kind() == reflect.Pointer {
		declared = declared.Elem()
	}
	for actual.Kind() == reflect.Pointer {
		actual = actual.Elem()
	}
	if declared == actual {
		return true
	}
	//exhaustive:ignore
	switch declared.Kind() {
	case reflect.Slice, reflect.Array:
		return actual.Kind() == reflect.Slice || actual.Kind() == reflect.Array
	case reflect.Map:
		return actual.Kind() == reflect.Map
	case reflect.Interface:
		return actual.Implements(declared) || reflect.PointerTo(actual).Implements(declared)
	default:
		return false
	}
}
