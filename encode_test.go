package rivet_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/gorivet/rivet"
)

type greeting struct {
	Hello string `json:"hello" yaml:"hello" msgpack:"hello"`
}

func greetingRouter() *rivet.Router {
	r := rivet.New()
	rivet.Get(r, "/greet", func(_ context.Context, _ *rivet.Void) (*greeting, error) {
		return &greeting{Hello: "world"}, nil
	})
	return r
}

func TestContentNegotiation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(greetingRouter())
	t.Cleanup(srv.Close)

	get := func(accept string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/greet", nil)
		require.NoError(t, err)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("default is JSON", func(t *testing.T) {
		resp := get("")
		defer resp.Body.Close()
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("wildcard is JSON", func(t *testing.T) {
		resp := get("*/*")
		defer resp.Body.Close()
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("yaml", func(t *testing.T) {
		resp := get("application/yaml")
		defer resp.Body.Close()
		require.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

		var g greeting
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, yaml.Unmarshal(data, &g))
		assert.Equal(t, "world", g.Hello)
	})

	t.Run("msgpack", func(t *testing.T) {
		resp := get("application/msgpack")
		defer resp.Body.Close()
		require.Equal(t, "application/msgpack", resp.Header.Get("Content-Type"))

		var g greeting
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, msgpack.Unmarshal(data, &g))
		assert.Equal(t, "world", g.Hello)
	})

	t.Run("xml", func(t *testing.T) {
		resp := get("application/xml")
		defer resp.Body.Close()
		assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	})

	t.Run("quality ordering", func(t *testing.T) {
		resp := get("application/yaml;q=0.5, application/json;q=0.9")
		defer resp.Body.Close()
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("no match is 406", func(t *testing.T) {
		resp := get("image/png")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
	})
}

func TestRequestBodyDecoding(t *testing.T) {
	t.Parallel()

	type createReq struct {
		Body greeting
	}

	r := rivet.New()
	rivet.Post(r, "/greet", func(_ context.Context, in *createReq) (*greeting, error) {
		return &in.Body, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	post := func(contentType, payload string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/greet", strings.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", contentType)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("json body", func(t *testing.T) {
		resp := post("application/json", `{"hello":"json"}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("yaml body", func(t *testing.T) {
		resp := post("application/yaml", "hello: yaml\n")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		resp := post("application/x-unknown", "whatever")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

type csvEncoder struct{}

func (csvEncoder) ContentType() string { return "text/csv" }

func (csvEncoder) Encode(w io.Writer, _ any) error {
	_, err := io.WriteString(w, "hello\nworld\n")
	return err
}

func TestCustomEncoder(t *testing.T) {
	t.Parallel()

	r := rivet.New(rivet.WithEncoder(csvEncoder{}))
	rivet.Get(r, "/greet", func(_ context.Context, _ *rivet.Void) (*greeting, error) {
		return &greeting{Hello: "world"}, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/greet", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/csv")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(data))
}
