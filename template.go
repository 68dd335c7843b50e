package rivet

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// converter identifies the typed-placeholder kind of a path segment.
type converter int

const (
	convDefault converter = iota // generic token
	convInt
	convFloat
	convUUID
	convPath // multi-segment
	convString
	convAny // enumerated token
)

// placeholderRe matches one literal run followed by a <converter(args):name>
// or <name> placeholder, anchored at the current scan position.
var placeholderRe = regexp.MustCompile(
	`^(?P<static>[^<]*)` +
		`<` +
		`(?:(?P<converter>[a-zA-Z_][a-zA-Z0-9_]*)(?:\((?P<args>.*?)\))?:)?` +
		`(?P<variable>[a-zA-Z_][a-zA-Z0-9_]*)` +
		`>`,
)

// pathSegment is either a literal string or a typed placeholder.
type pathSegment struct {
	literal string // non-empty for literal segments
	name    string // variable name for placeholders
	conv    converter

	// converter arguments
	min, max               *int     // int
	length, minLen, maxLen *int     // string
	enum                   []string // any
}

func (s *pathSegment) isVar() bool { return s.literal == "" }

// check validates a matched path value against the segment's converter.
func (s *pathSegment) check(raw string) error {
	switch s.conv {
	case convInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("not a valid integer")
		}
		if s.min != nil && n < *s.min {
			return fmt.Errorf("must be at least %d", *s.min)
		}
		if s.max != nil && n > *s.max {
			return fmt.Errorf("must be at most %d", *s.max)
		}
	case convFloat:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("not a valid number")
		}
	case convUUID:
		if _, err := uuid.Parse(raw); err != nil {
			return fmt.Errorf("not a valid uuid")
		}
	case convString:
		if s.length != nil && len(raw) != *s.length {
			return fmt.Errorf("must be exactly %d characters", *s.length)
		}
		if s.minLen != nil && len(raw) < *s.minLen {
			return fmt.Errorf("must be at least %d characters", *s.minLen)
		}
		if s.maxLen != nil && len(raw) > *s.maxLen {
			return fmt.Errorf("must be at most %d characters", *s.maxLen)
		}
	case convAny:
		if !slices.Contains(s.enum, raw) {
			return fmt.Errorf("must be one of [%s]", strings.Join(s.enum, ", "))
		}
	case convDefault, convPath:
		// Any non-empty match is valid; the mux never matches empty.
	}
	return nil
}

// schema returns the OpenAPI schema fragment for the placeholder.
func (s *pathSegment) schema() JSONSchema {
	switch s.conv {
	case convInt:
		sc := JSONSchema{Type: "integer"}
		if s.min != nil {
			m := float64(*s.min)
			sc.Minimum = &m
		}
		if s.max != nil {
			m := float64(*s.max)
			sc.Maximum = &m
		}
		return sc
	case convFloat:
		return JSONSchema{Type: "number", Format: "float"}
	case convUUID:
		return JSONSchema{Type: "string", Format: "uuid"}
	case convPath:
		return JSONSchema{Type: "string", Format: "path"}
	case convString:
		sc := JSONSchema{Type: "string"}
		if s.length != nil {
			sc.MinLength = s.length
			sc.MaxLength = s.length
		}
		if s.minLen != nil {
			sc.MinLength = s.minLen
		}
		if s.maxLen != nil {
			sc.MaxLength = s.maxLen
		}
		return sc
	case convAny:
		return JSONSchema{Type: "string", Enum: s.enum}
	case convDefault:
		return JSONSchema{Type: "string"}
	}
	return JSONSchema{Type: "string"}
}

// pathTemplate is an ordered sequence of literal and placeholder segments
// parsed from a route pattern.
type pathTemplate struct {
	raw      string
	segments []*pathSegment
	vars     []string // placeholder names in order
}

// parseTemplate tokenizes a route pattern. It fails with *TemplateError on
// unbalanced angle brackets, repeated variable names, unknown converters,
// and malformed converter arguments.
func parseTemplate(rule string) (*pathTemplate, error) {
	t := &pathTemplate{raw: rule}
	pos := 0

	for pos < len(rule) {
		m := placeholderRe.FindStringSubmatch(rule[pos:])
		if m == nil {
			break
		}
		static, convName, args, variable := m[1], m[2], m[3], m[4]

		if static != "" {
			t.segments = append(t.segments, &pathSegment{literal: static})
		}
		if slices.Contains(t.vars, variable) {
			return nil, &TemplateError{Template: rule, Reason: fmt.Sprintf("variable name %q used twice", variable)}
		}

		seg, err := newPlaceholder(convName, args, variable)
		if err != nil {
			return nil, &TemplateError{Template: rule, Reason: err.Error()}
		}
		t.segments = append(t.segments, seg)
		t.vars = append(t.vars, variable)
		pos += len(m[0])
	}

	if pos < len(rule) {
		remaining := rule[pos:]
		if strings.ContainsAny(remaining, "<>") {
			return nil, &TemplateError{Template: rule, Reason: "unbalanced placeholder delimiters"}
		}
		t.segments = append(t.segments, &pathSegment{literal: remaining})
	}

	return t, nil
}

// newPlaceholder builds a placeholder segment from its converter name,
// raw argument string, and variable name.
func newPlaceholder(convName, args, variable string) (*pathSegment, error) {
	seg := &pathSegment{name: variable}

	switch convName {
	case "", "default":
		seg.conv = convDefault
	case "int":
		seg.conv = convInt
	case "float":
		seg.conv = convFloat
	case "uuid":
		seg.conv = convUUID
	case "path":
		seg.conv = convPath
	case "string":
		seg.conv = convString
	case "any":
		seg.conv = convAny
	default:
		return nil, fmt.Errorf("unknown converter %q", convName)
	}

	if args == "" {
		if seg.conv == convAny {
			return nil, fmt.Errorf("converter any requires at least one value")
		}
		return seg, nil
	}

	positional, keyword, err := parseConverterArgs(args)
	if err != nil {
		return nil, err
	}

	switch seg.conv {
	case convInt:
		if len(positional) > 0 {
			return nil, fmt.Errorf("converter int takes only keyword arguments")
		}
		for key, val := range keyword {
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("converter int argument %s: %q is not an integer", key, val)
			}
			switch key {
			case "min":
				seg.min = &n
			case "max":
				seg.max = &n
			default:
				return nil, fmt.Errorf("converter int does not accept argument %q", key)
			}
		}
	case convString:
		if len(positional) > 0 {
			return nil, fmt.Errorf("converter string takes only keyword arguments")
		}
		for key, val := range keyword {
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("converter string argument %s: %q is not an integer", key, val)
			}
			switch key {
			case "length":
				seg.length = &n
			case "minLength":
				seg.minLen = &n
			case "maxLength":
				seg.maxLen = &n
			default:
				return nil, fmt.Errorf("converter string does not accept argument %q", key)
			}
		}
	case convAny:
		if len(keyword) > 0 {
			return nil, fmt.Errorf("converter any takes only positional arguments")
		}
		if len(positional) == 0 {
			return nil, fmt.Errorf("converter any requires at least one value")
		}
		seg.enum = positional
	case convDefault, convFloat, convUUID, convPath:
		return nil, fmt.Errorf("converter does not accept arguments")
	}

	return seg, nil
}

// parseConverterArgs splits "a,b,min=1,max=5" into positional values and
// keyword pairs. Values may be single- or double-quoted.
func parseConverterArgs(args string) ([]string, map[string]string, error) {
	var positional []string
	keyword := make(map[string]string)

	for part := range strings.SplitSeq(args, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, nil, fmt.Errorf("empty converter argument")
		}
		if key, val, ok := strings.Cut(part, "="); ok {
			keyword[strings.TrimSpace(key)] = unquoteArg(strings.TrimSpace(val))
			continue
		}
		if len(keyword) > 0 {
			return nil, nil, fmt.Errorf("positional converter argument after keyword argument")
		}
		positional = append(positional, unquoteArg(part))
	}

	return positional, keyword, nil
}

func unquoteArg(v string) string {
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// displayPath is the normalized form used in the OpenAPI document: every
// placeholder becomes {name}, independent of converter syntax.
func (t *pathTemplate) displayPath() string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.isVar() {
			b.WriteString("{" + seg.name + "}")
			continue
		}
		b.WriteString(seg.literal)
	}
	return b.String()
}

// muxPattern is the http.ServeMux dispatch pattern for the template. The
// path converter maps to a trailing remainder wildcard.
func (t *pathTemplate) muxPattern() string {
	var b strings.Builder
	for _, seg := range t.segments {
		if !seg.isVar() {
			b.WriteString(seg.literal)
			continue
		}
		if seg.conv == convPath {
			b.WriteString("{" + seg.name + "...}")
			continue
		}
		b.WriteString("{" + seg.name + "}")
	}
	return b.String()
}

// segment returns the placeholder segment with the given variable name.
func (t *pathTemplate) segment(name string) *pathSegment {
	for _, seg := range t.segments {
		if seg.isVar() && seg.name == name {
			return seg
		}
	}
	return nil
}
