package rivet_test

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorivet/rivet"
)

type pet struct {
	Name string `json:"name"`
}

type petList struct {
	Pets []pet `json:"pets"`
}

func TestResolveResponsesImplicit(t *testing.T) {
	t.Parallel()

	entries, err := rivet.ResolveResponses(nil, reflect.TypeFor[pet](), http.StatusOK)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusOK, entries[0].Status)
	assert.Equal(t, reflect.TypeFor[pet](), entries[0].Type)

	// The default status is whatever registration decided.
	entries, err = rivet.ResolveResponses(nil, reflect.TypeFor[pet](), http.StatusCreated)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, entries[0].Status)
}

func TestResolveResponsesErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing return type", func(t *testing.T) {
		t.Parallel()
		_, err := rivet.ResolveResponses(nil, reflect.TypeFor[any](), http.StatusOK)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "return type not specified")
	})

	t.Run("union without entries", func(t *testing.T) {
		t.Parallel()
		_, err := rivet.ResolveResponses(nil, reflect.TypeFor[rivet.Union2[pet, petList]](), http.StatusOK)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "explicit status code")
	})

	t.Run("union with uncovered alternative", func(t *testing.T) {
		t.Parallel()
		explicit := []rivet.ResponseEntry{{Status: 200, Type: reflect.TypeFor[pet]()}}
		_, err := rivet.ResolveResponses(explicit, reflect.TypeFor[rivet.Union2[pet, petList]](), http.StatusOK)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires an explicit status code")
	})

	t.Run("duplicate status", func(t *testing.T) {
		t.Parallel()
		explicit := []rivet.ResponseEntry{
			{Status: 200, Type: reflect.TypeFor[pet]()},
			{Status: 200, Type: reflect.TypeFor[petList]()},
		}
		_, err := rivet.ResolveResponses(explicit, reflect.TypeFor[pet](), http.StatusOK)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate response entry")
	})

	t.Run("conflicting 200 entry", func(t *testing.T) {
		t.Parallel()
		explicit := []rivet.ResponseEntry{{Status: 200, Type: reflect.TypeFor[petList]()}}
		_, err := rivet.ResolveResponses(explicit, reflect.TypeFor[pet](), http.StatusOK)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match response type")
	})
}

func TestResolveResponsesUnion(t *testing.T) {
	t.Parallel()

	explicit := []rivet.ResponseEntry{
		{Status: 200, Type: reflect.TypeFor[pet]()},
		{Status: 404, Type: reflect.TypeFor[petList]()},
	}

	entries, err := rivet.ResolveResponses(explicit, reflect.TypeFor[rivet.Union2[pet, petList]](), http.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, explicit, entries)
}

func TestUnionAlternatives(t *testing.T) {
	t.Parallel()

	alts := rivet.UnionAlternatives(reflect.TypeFor[rivet.Union2[pet, petList]]())
	require.Len(t, alts, 2)
	assert.Equal(t, reflect.TypeFor[pet](), alts[0])
	assert.Equal(t, reflect.TypeFor[petList](), alts[1])

	alts = rivet.UnionAlternatives(reflect.TypeFor[rivet.Union3[pet, petList, string]]())
	assert.Len(t, alts, 3)

	assert.Nil(t, rivet.UnionAlternatives(reflect.TypeFor[pet]()))
	assert.Nil(t, rivet.UnionAlternatives(reflect.TypeFor[string]()))
}

func TestMatchResponse(t *testing.T) {
	t.Parallel()

	entries := []rivet.ResponseEntry{
		{Status: 200, Type: reflect.TypeFor[pet]()},
		{Status: 206, Type: reflect.TypeFor[[]pet]()},
		{Status: 400, Type: reflect.TypeFor[map[string]string]()},
	}

	tests := map[string]struct {
		value      any
		wantStatus int
		wantOK     bool
	}{
		"exact struct":            {value: pet{Name: "rex"}, wantStatus: 200, wantOK: true},
		"pointer to struct":       {value: &pet{Name: "rex"}, wantStatus: 200, wantOK: true},
		"slice matches container": {value: []petList{}, wantStatus: 206, wantOK: true},
		"map matches container":   {value: map[string]int{}, wantStatus: 400, wantOK: true},
		"unmatched type":          {value: 42, wantOK: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			entry, ok := rivet.MatchResponse(entries, tc.value)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantStatus, entry.Status)
			}
		})
	}
}

func TestMatchResponseDeclarationOrder(t *testing.T) {
	t.Parallel()

	// Two container entries: the first declared wins.
	entries := []rivet.ResponseEntry{
		{Status: 200, Type: reflect.TypeFor[[]pet]()},
		{Status: 206, Type: reflect.TypeFor[[]petList]()},
	}

	entry, ok := rivet.MatchResponse(entries, []petList{})
	require.True(t, ok)
	assert.Equal(t, 200, entry.Status)
}
