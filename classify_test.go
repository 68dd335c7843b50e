package rivet_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorivet/rivet"
)

func paramByName(t *testing.T, params []rivet.Param, name string) rivet.Param {
	t.Helper()
	for _, p := range params {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no param named %q", name)
	return rivet.Param{}
}

func TestClassifyInference(t *testing.T) {
	t.Parallel()

	type filters struct {
		Status string `json:"status"`
	}
	type request struct {
		ID     int       `json:"id"`
		Q      []int     `json:"q"`
		Since  time.Time `json:"since"`
		Filter filters   `json:"filter"`
	}

	params, err := rivet.ClassifyFor(reflect.TypeFor[request](), "/items/<int:id>")
	require.NoError(t, err)
	require.Len(t, params, 4)

	// Name matching a template variable forces the path location.
	id := paramByName(t, params, "ID")
	assert.Equal(t, rivet.InPath, id.In)
	assert.True(t, id.Required)

	// A scalar sequence is a repeated query parameter, not a body.
	q := paramByName(t, params, "Q")
	assert.Equal(t, rivet.InQuery, q.In)

	// Well-known scalar structs bind as single query values.
	since := paramByName(t, params, "Since")
	assert.Equal(t, rivet.InQuery, since.In)

	// Aggregates become the request body.
	filter := paramByName(t, params, "Filter")
	assert.Equal(t, rivet.InBody, filter.In)
	assert.True(t, filter.Required)
}

func TestClassifyExplicitTags(t *testing.T) {
	t.Parallel()

	type request struct {
		Token   string `header:"X-Token"`
		Session string `cookie:"session"`
		Page    int    `query:"page" default:"1"`
		Legacy  string `query:"old_name,deprecated"`
		Debug   string `query:"debug,hidden"`
		TraceID string `header:"trace_id,underscores"`
		Body    struct {
			Name string `json:"name"`
		}
	}

	params, err := rivet.ClassifyFor(reflect.TypeFor[request](), "/items")
	require.NoError(t, err)

	assert.Equal(t, rivet.InHeader, paramByName(t, params, "Token").In)
	assert.Equal(t, "X-Token", paramByName(t, params, "Token").Alias)
	assert.Equal(t, rivet.InCookie, paramByName(t, params, "Session").In)

	page := paramByName(t, params, "Page")
	assert.Equal(t, rivet.InQuery, page.In)
	assert.True(t, page.HasDefault)
	assert.Equal(t, "1", page.Default)
	assert.False(t, page.Required)

	assert.True(t, paramByName(t, params, "Legacy").Deprecated)
	assert.True(t, paramByName(t, params, "Debug").Hidden)

	// The underscores option maps header names to dash form.
	assert.Equal(t, "trace-id", paramByName(t, params, "TraceID").Alias)

	body := paramByName(t, params, "Body")
	assert.Equal(t, rivet.InBody, body.In)
}

func TestClassifyWholeStructBody(t *testing.T) {
	t.Parallel()

	type create struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	// No binding markers and no path variables: the struct itself is the
	// request body.
	params, err := rivet.ClassifyFor(reflect.TypeFor[create](), "/pets")
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, rivet.InBody, params[0].In)
	assert.Equal(t, "body", params[0].Alias)
	assert.Equal(t, reflect.TypeFor[create](), params[0].Type)
	assert.True(t, params[0].Required)

	// A template variable switches back to per-field inference.
	type update struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	params, err = rivet.ClassifyFor(reflect.TypeFor[update](), "/pets/<int:id>")
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, rivet.InPath, paramByName(t, params, "ID").In)
	assert.Equal(t, rivet.InQuery, paramByName(t, params, "Name").In)

	// So does a single binding tag anywhere in the struct.
	type mixed struct {
		Page int    `query:"page"`
		Name string `json:"name"`
	}
	params, err = rivet.ClassifyFor(reflect.TypeFor[mixed](), "/pets")
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, rivet.InQuery, paramByName(t, params, "Page").In)
	assert.Equal(t, rivet.InQuery, paramByName(t, params, "Name").In)
}

func TestClassifyBodyTag(t *testing.T) {
	t.Parallel()

	type request struct {
		Page    int `query:"page"`
		Payload struct {
			Name string `json:"name"`
		} `body:""`
	}

	params, err := rivet.ClassifyFor(reflect.TypeFor[request](), "/items")
	require.NoError(t, err)

	payload := paramByName(t, params, "Payload")
	assert.Equal(t, rivet.InBody, payload.In)
	assert.True(t, payload.Required)
}

func TestClassifyUUIDPathParam(t *testing.T) {
	t.Parallel()

	type request struct {
		ID uuid.UUID `path:"id"`
	}

	params, err := rivet.ClassifyFor(reflect.TypeFor[request](), "/items/<uuid:id>")
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, rivet.InPath, params[0].In)
}

func TestClassifyVoid(t *testing.T) {
	t.Parallel()

	params, err := rivet.ClassifyFor(reflect.TypeFor[rivet.Void](), "/items")
	require.NoError(t, err)
	assert.Empty(t, params)

	// Void cannot satisfy a template variable.
	_, err = rivet.ClassifyFor(reflect.TypeFor[rivet.Void](), "/items/<int:id>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `misses "id" argument`)
}

func TestClassifyErrors(t *testing.T) {
	t.Parallel()

	type conflictingLocation struct {
		ID int `query:"id"`
	}
	type missingPathArg struct {
		Name string `json:"name"`
	}
	type twoBodies struct {
		Page int             `query:"page"`
		A    struct{ X int } `json:"a"`
		B    struct{ Y int } `json:"b"`
	}
	type nonScalarPath struct {
		ID []string `path:"id"`
	}
	type requiredWithDefault struct {
		Page int `query:"page" required:"true" default:"1"`
	}

	tests := map[string]struct {
		reqType reflect.Type
		rule    string
		reason  string
	}{
		"explicit tag fighting a path variable": {
			reqType: reflect.TypeFor[conflictingLocation](),
			rule:    "/items/<int:id>",
			reason:  "cannot use query for path parameter",
		},
		"uncovered template variable": {
			reqType: reflect.TypeFor[missingPathArg](),
			rule:    "/items/<int:id>",
			reason:  `misses "id" argument`,
		},
		"multiple bodies": {
			reqType: reflect.TypeFor[twoBodies](),
			rule:    "/items",
			reason:  "multiple request body arguments",
		},
		"non-scalar path param": {
			reqType: reflect.TypeFor[nonScalarPath](),
			rule:    "/items/<id>",
			reason:  "must be of a scalar type",
		},
		"required with default": {
			reqType: reflect.TypeFor[requiredWithDefault](),
			rule:    "/items",
			reason:  "both required and defaulted",
		},
		"non-struct request": {
			reqType: reflect.TypeFor[int](),
			rule:    "/items",
			reason:  "must be a struct or Void",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := rivet.ClassifyFor(tc.reqType, tc.rule)
			require.Error(t, err)

			var cerr *rivet.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestTagHelpers(t *testing.T) {
	t.Parallel()

	name, opts := rivet.TagOptions("page,hidden,deprecated")
	assert.Equal(t, "page", name)
	assert.True(t, rivet.TagContains(opts, "hidden"))
	assert.True(t, rivet.TagContains(opts, "deprecated"))
	assert.False(t, rivet.TagContains(opts, "underscores"))
}
