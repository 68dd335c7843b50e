package rivet_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorivet/rivet"
)

func TestServeDocs(t *testing.T) {
	t.Parallel()

	r := rivet.New(rivet.WithTitle("Docs Demo"))
	r.ServeDocs("/docs", rivet.WithDocsSpecURL("/spec.json"))

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Docs Demo")
	assert.Contains(t, rec.Body.String(), "/spec.json")
}
