package rivet_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorivet/rivet"
)

func TestValidateConstraints(t *testing.T) {
	t.Parallel()

	type body struct {
		Name  string   `json:"name" minLength:"2" maxLength:"5"`
		Level string   `json:"level" enum:"low,high"`
		Tags  []string `json:"tags" maxItems:"2"`
	}
	type request struct {
		Page int `query:"page" minimum:"1" maximum:"10"`
		Body body
	}

	t.Run("valid passes", func(t *testing.T) {
		t.Parallel()
		req := &request{Page: 3}
		req.Body.Name = "abc"
		req.Body.Level = "low"
		assert.NoError(t, rivet.ValidateConstraints(req))
	})

	t.Run("violations are collected with prefixed paths", func(t *testing.T) {
		t.Parallel()

		req := &request{Page: 0}
		req.Body.Name = "x"
		req.Body.Level = "medium"
		req.Body.Tags = []string{"a", "b", "c"}

		err := rivet.ValidateConstraints(req)
		require.Error(t, err)

		var problem *rivet.ProblemDetail
		require.ErrorAs(t, err, &problem)
		assert.Equal(t, http.StatusBadRequest, problem.Status)
		require.Len(t, problem.Errors, 4)

		fields := make([]string, 0, len(problem.Errors))
		for _, ve := range problem.Errors {
			fields = append(fields, ve.Field)
		}
		assert.Contains(t, fields, "query.page")
		assert.Contains(t, fields, "body.name")
		assert.Contains(t, fields, "body.level")
		assert.Contains(t, fields, "body.tags")
	})

	t.Run("pattern mismatch", func(t *testing.T) {
		t.Parallel()

		type patterned struct {
			Code string `query:"code" pattern:"^[A-Z]{3}$"`
		}
		err := rivet.ValidateConstraints(&patterned{Code: "abc"})
		require.Error(t, err)

		var problem *rivet.ProblemDetail
		require.ErrorAs(t, err, &problem)
		assert.Contains(t, problem.Errors[0].Message, "pattern")
	})

	t.Run("non-struct is a no-op", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, rivet.ValidateConstraints(42))
		assert.NoError(t, rivet.ValidateConstraints(nil))
	})
}
