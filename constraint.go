package rivet

import (
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
)

// validateConstraints checks all constraint tags on the struct fields and
// returns a ProblemDetail with all violations if any are found. Field
// paths are location-prefixed to match binding errors.
func validateConstraints(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	var errs []ValidationError
	collectConstraintErrors(rv, "", &errs)

	if len(errs) > 0 {
		return &ProblemDetail{
			Type:   "about:blank",
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("%d constraint violation(s)", len(errs)),
			Errors: errs,
		}
	}

	return nil
}

func collectConstraintErrors(rv reflect.Value, prefix string, errs *[]ValidationError) {
	t := rv.Type()

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		fv := rv.Field(i)

		path := constraintPath(f, prefix)
		if path == "" {
			continue
		}

		// Body markers recurse with their own prefix.
		if prefix == "" && isBodyMarker(f) && f.Type.Kind() == reflect.Struct {
			collectConstraintErrors(fv, "body", errs)
			continue
		}

		checkFieldConstraints(f, fv, path, errs)

		if fv.Kind() == reflect.Struct && !isParamField(f) && !isScalarType(f.Type) {
			collectConstraintErrors(fv, path, errs)
		}
	}
}

// constraintPath is the error path for a field: location-prefixed for
// top-level param fields, dotted json names below.
func constraintPath(f reflect.StructField, prefix string) string {
	if prefix != "" {
		name := jsonFieldName(f)
		if name == "-" {
			return ""
		}
		return prefix + "." + name
	}

	for _, tag := range locationTags {
		if v, ok := f.Tag.Lookup(tag); ok {
			name, _ := tagOptions(v)
			if name == "" {
				name = defaultAlias(f)
			}
			return tag + "." + name
		}
	}

	name := defaultAlias(f)
	if name == "-" {
		return ""
	}
	if isComplexType(f.Type) {
		return "body"
	}
	return "query." + name
}

func checkFieldConstraints(f reflect.StructField, fv reflect.Value, path string, errs *[]ValidationError) {
	// minLength / maxLength / pattern — strings.
	if fv.Kind() == reflect.String {
		val := fv.String()
		if tag := f.Tag.Get("minLength"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && len(val) < n {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must be at least %d characters", n),
					Value:   val,
				})
			}
		}
		if tag := f.Tag.Get("maxLength"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && len(val) > n {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must be at most %d characters", n),
					Value:   val,
				})
			}
		}
		if tag := f.Tag.Get("pattern"); tag != "" {
			if matched, err := regexp.MatchString(tag, val); err == nil && !matched {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must match pattern %s", tag),
					Value:   val,
				})
			}
		}
	}

	// minimum / maximum — numeric types.
	if isNumericKind(fv.Kind()) {
		floatVal := toFloat64(fv)
		if tag := f.Tag.Get("minimum"); tag != "" {
			if lower, err := strconv.ParseFloat(tag, 64); err == nil && floatVal < lower {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must be at least %s", tag),
					Value:   floatVal,
				})
			}
		}
		if tag := f.Tag.Get("maximum"); tag != "" {
			if upper, err := strconv.ParseFloat(tag, 64); err == nil && floatVal > upper {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must be at most %s", tag),
					Value:   floatVal,
				})
			}
		}
	}

	// enum — strings.
	if fv.Kind() == reflect.String {
		if tag := f.Tag.Get("enum"); tag != "" {
			val := fv.String()
			if !tagContains(tag, val) {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must be one of [%s]", tag),
					Value:   val,
				})
			}
		}
	}

	// minItems / maxItems — slices.
	if fv.Kind() == reflect.Slice {
		length := fv.Len()
		if tag := f.Tag.Get("minItems"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length < n {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must have at least %d items", n),
					Value:   length,
				})
			}
		}
		if tag := f.Tag.Get("maxItems"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length > n {
				*errs = append(*errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("must have at most %d items", n),
					Value:   length,
				})
			}
		}
	}
}

func isNumericKind(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default: // float32, float64
		return v.Float()
	}
}
