package rivet

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// bindRequest populates the request struct from the incoming request,
// walking the classified parameters in declaration order. Coercion
// failures are collected with location-prefixed field paths and returned
// as a single 400 problem; nothing is retried or merged.
func bindRequest(target any, params []Param, r *http.Request, codecs *codecRegistry) error {
	v := reflect.ValueOf(target).Elem()

	var errs []ValidationError
	for i := range params {
		p := &params[i]
		field := v
		if p.fieldIndex != wholeStructIndex {
			field = v.Field(p.fieldIndex)
		}

		switch p.In {
		case InPath:
			bindPath(field, p, r, &errs)
		case InQuery:
			bindQuery(field, p, r, &errs)
		case InHeader:
			bindSingle(field, p, r.Header.Get(p.Alias), &errs)
		case InCookie:
			var raw string
			if c, err := r.Cookie(p.Alias); err == nil {
				raw = c.Value
			}
			bindSingle(field, p, raw, &errs)
		case InBody:
			bindBody(field, p, r, codecs, &errs)
		}
	}

	if len(errs) > 0 {
		return validationProblem(errs)
	}
	return nil
}

func bindPath(field reflect.Value, p *Param, r *http.Request, errs *[]ValidationError) {
	raw := r.PathValue(p.Alias)
	if p.seg != nil {
		if err := p.seg.check(raw); err != nil {
			*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: err.Error(), Value: raw})
			return
		}
	}
	if err := setFieldValue(field, raw); err != nil {
		*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: err.Error(), Value: raw})
	}
}

func bindQuery(field reflect.Value, p *Param, r *http.Request, errs *[]ValidationError) {
	query := r.URL.Query()

	// Scalar sequences bind every repeated occurrence of the key. An
	// absent key falls back to the comma-separated default, if any.
	if isScalarSequence(p.Type) {
		values, ok := query[p.Alias]
		if !ok {
			switch {
			case p.HasDefault:
				values = strings.Split(p.Default, ",")
			case p.Required:
				*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: "required query parameter missing"})
				return
			default:
				return
			}
		}
		dest := field
		if p.Type.Kind() == reflect.Slice {
			dest = reflect.MakeSlice(p.Type, len(values), len(values))
		} else if len(values) > dest.Len() {
			*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: fmt.Sprintf("at most %d values allowed", dest.Len())})
			return
		}
		for i, raw := range values {
			if err := setFieldValue(dest.Index(i), raw); err != nil {
				*errs = append(*errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", p.fieldPath(), i),
					Message: err.Error(),
					Value:   raw,
				})
				return
			}
		}
		if p.Type.Kind() == reflect.Slice {
			field.Set(dest)
		}
		return
	}

	if !query.Has(p.Alias) {
		applyMissing(field, p, errs)
		return
	}
	if err := setFieldValue(field, query.Get(p.Alias)); err != nil {
		*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: err.Error(), Value: query.Get(p.Alias)})
	}
}

// bindSingle handles header and cookie values.
func bindSingle(field reflect.Value, p *Param, raw string, errs *[]ValidationError) {
	if raw == "" {
		applyMissing(field, p, errs)
		return
	}
	if err := setFieldValue(field, raw); err != nil {
		*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: err.Error(), Value: raw})
	}
}

// applyMissing handles an absent value: default, required error, or skip.
func applyMissing(field reflect.Value, p *Param, errs *[]ValidationError) {
	if p.HasDefault {
		if err := setFieldValue(field, p.Default); err != nil {
			*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: "invalid default: " + err.Error(), Value: p.Default})
		}
		return
	}
	if p.Required {
		*errs = append(*errs, ValidationError{Field: p.fieldPath(), Message: fmt.Sprintf("required %s parameter missing", p.In)})
	}
}

func bindBody(field reflect.Value, p *Param, r *http.Request, codecs *codecRegistry, errs *[]ValidationError) {
	if r.Body == nil || r.ContentLength == 0 {
		if p.Required {
			*errs = append(*errs, ValidationError{Field: "body", Message: "request body required"})
		}
		return
	}

	dec, ok := codecs.decoderFor(r.Header.Get("Content-Type"))
	if !ok {
		*errs = append(*errs, ValidationError{Field: "body", Message: "unsupported content type", Value: r.Header.Get("Content-Type")})
		return
	}

	if err := dec.Decode(r.Body, field.Addr().Interface()); err != nil {
		*errs = append(*errs, ValidationError{Field: "body", Message: err.Error()})
	}
}

// fieldPath is the location-prefixed identifier used in validation errors.
func (p *Param) fieldPath() string {
	return string(p.In) + "." + p.Alias
}

// setFieldValue sets a reflect.Value from a string, supporting the scalar
// types accepted by the classifier.
func setFieldValue(field reflect.Value, value string) error {
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return setFieldValue(field.Elem(), value)
	}

	switch field.Type() {
	case reflect.TypeFor[time.Duration]():
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	case reflect.TypeFor[time.Time]():
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(ts))
		return nil
	case reflect.TypeFor[uuid.UUID]():
		id, err := uuid.Parse(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(id))
		return nil
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type: %s", field.Type())
	}
	return nil
}
