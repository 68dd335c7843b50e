package rivet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorivet/rivet"
)

func TestParseTemplate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rule    string
		vars    []string
		display string
		mux     string
	}{
		"no placeholders": {
			rule:    "/items",
			vars:    nil,
			display: "/items",
			mux:     "/items",
		},
		"bare variable": {
			rule:    "/items/<id>",
			vars:    []string{"id"},
			display: "/items/{id}",
			mux:     "/items/{id}",
		},
		"typed variable": {
			rule:    "/items/<int:id>",
			vars:    []string{"id"},
			display: "/items/{id}",
			mux:     "/items/{id}",
		},
		"converter with arguments": {
			rule:    "/item/<int(min=1,max=5):id>",
			vars:    []string{"id"},
			display: "/item/{id}",
			mux:     "/item/{id}",
		},
		"path converter": {
			rule:    "/files/<path:rest>",
			vars:    []string{"rest"},
			display: "/files/{rest}",
			mux:     "/files/{rest...}",
		},
		"multiple variables": {
			rule:    "/users/<int:uid>/posts/<int:pid>",
			vars:    []string{"uid", "pid"},
			display: "/users/{uid}/posts/{pid}",
			mux:     "/users/{uid}/posts/{pid}",
		},
		"trailing literal": {
			rule:    "/users/<int:uid>/posts",
			vars:    []string{"uid"},
			display: "/users/{uid}/posts",
			mux:     "/users/{uid}/posts",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tmpl := rivet.MustParseTemplate(tc.rule)
			assert.Equal(t, tc.vars, tmpl.Vars())
			assert.Equal(t, tc.display, tmpl.DisplayPath())
			assert.Equal(t, tc.mux, tmpl.MuxPattern())
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rule   string
		reason string
	}{
		"duplicate variable": {
			rule:   "/a/<id>/b/<id>",
			reason: `variable name "id" used twice`,
		},
		"unbalanced brackets": {
			rule:   "/a/<id",
			reason: "unbalanced placeholder delimiters",
		},
		"stray closing bracket": {
			rule:   "/a/id>",
			reason: "unbalanced placeholder delimiters",
		},
		"unknown converter": {
			rule:   "/a/<regex:id>",
			reason: `unknown converter "regex"`,
		},
		"bad int argument": {
			rule:   "/a/<int(min=x):id>",
			reason: "not an integer",
		},
		"int positional argument": {
			rule:   "/a/<int(5):id>",
			reason: "only keyword arguments",
		},
		"empty any": {
			rule:   "/a/<any():id>",
			reason: "at least one value",
		},
		"float with arguments": {
			rule:   "/a/<float(min=1):id>",
			reason: "does not accept arguments",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := rivet.ParseTemplate(tc.rule)
			require.Error(t, err)

			var terr *rivet.TemplateError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tc.rule, terr.Template)
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestTemplateCheckValues(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rule    string
		varName string
		value   string
		wantErr string
	}{
		"int ok":          {rule: "/i/<int(min=1,max=5):id>", varName: "id", value: "3"},
		"int below min":   {rule: "/i/<int(min=1,max=5):id>", varName: "id", value: "0", wantErr: "at least 1"},
		"int above max":   {rule: "/i/<int(min=1,max=5):id>", varName: "id", value: "6", wantErr: "at most 5"},
		"int not numeric": {rule: "/i/<int:id>", varName: "id", value: "abc", wantErr: "not a valid integer"},
		"float ok":        {rule: "/f/<float:v>", varName: "v", value: "1.5"},
		"float bad":       {rule: "/f/<float:v>", varName: "v", value: "nope", wantErr: "not a valid number"},
		"uuid ok":         {rule: "/u/<uuid:v>", varName: "v", value: "d9b2d63d-a233-4123-847a-7e69a0c4a1f9"},
		"uuid bad":        {rule: "/u/<uuid:v>", varName: "v", value: "not-a-uuid", wantErr: "not a valid uuid"},
		"string length":   {rule: "/s/<string(length=2):v>", varName: "v", value: "abc", wantErr: "exactly 2"},
		"enum ok":         {rule: "/e/<any(a,b):v>", varName: "v", value: "a"},
		"enum miss":       {rule: "/e/<any(a,b):v>", varName: "v", value: "c", wantErr: "one of"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tmpl := rivet.MustParseTemplate(tc.rule)
			err := tmpl.CheckVar(tc.varName, tc.value)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTemplateVarSchema(t *testing.T) {
	t.Parallel()

	one, five := 1.0, 5.0
	two := 2

	tests := map[string]struct {
		rule    string
		varName string
		expect  rivet.JSONSchema
	}{
		"default": {
			rule: "/<v>", varName: "v",
			expect: rivet.JSONSchema{Type: "string"},
		},
		"bounded int": {
			rule: "/<int(min=1,max=5):v>", varName: "v",
			expect: rivet.JSONSchema{Type: "integer", Minimum: &one, Maximum: &five},
		},
		"float": {
			rule: "/<float:v>", varName: "v",
			expect: rivet.JSONSchema{Type: "number", Format: "float"},
		},
		"uuid": {
			rule: "/<uuid:v>", varName: "v",
			expect: rivet.JSONSchema{Type: "string", Format: "uuid"},
		},
		"sized string": {
			rule: "/<string(length=2):v>", varName: "v",
			expect: rivet.JSONSchema{Type: "string", MinLength: &two, MaxLength: &two},
		},
		"enum": {
			rule: "/<any(a,b):v>", varName: "v",
			expect: rivet.JSONSchema{Type: "string", Enum: []string{"a", "b"}},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tmpl := rivet.MustParseTemplate(tc.rule)
			assert.Equal(t, tc.expect, tmpl.VarSchema(tc.varName))
		})
	}
}

func TestParseConverterArgs(t *testing.T) {
	t.Parallel()

	positional, keyword, err := rivet.ParseConverterArgs(`a,'b c',min=1,max="5"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c"}, positional)
	assert.Equal(t, map[string]string{"min": "1", "max": "5"}, keyword)

	_, _, err = rivet.ParseConverterArgs("min=1,extra")
	require.Error(t, err)
}
