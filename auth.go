package rivet

import (
	"context"
	"net/http"
	"strings"
)

// Authenticator is the authentication capability attached to an operation.
// Authenticate inspects the current request and returns the caller's
// identity, or ok=false when the request carries no valid credentials. The
// framework never inspects credentials itself.
type Authenticator interface {
	Authenticate(r *http.Request) (identity any, ok bool)
	// Scheme describes the policy for the OpenAPI security schemes table.
	Scheme() (name string, scheme SecurityScheme)
}

// SecurityScheme is an OpenAPI security scheme object.
type SecurityScheme struct {
	Type         string `json:"type,omitempty"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty"`
	Name         string `json:"name,omitempty"`
	In           string `json:"in,omitempty"`
	Description  string `json:"description,omitempty"`
}

// authSetting is the tri-state authentication policy of an operation or
// router: unspecified, explicitly disabled, or a concrete policy. The
// distinction matters at mount time — only unspecified policies inherit
// the parent default.
type authSetting struct {
	set    bool
	policy Authenticator // nil with set=true means explicitly disabled
}

type identityKey struct{}

// Identity returns the identity produced by the operation's Authenticator
// for the current request, or nil when the route is unauthenticated.
func Identity(ctx context.Context) any {
	return ctx.Value(identityKey{})
}

// BearerAuth returns an Authenticator that reads an RFC 6750 bearer token
// from the Authorization header and delegates token validation to fn.
func BearerAuth(fn func(token string) (any, bool)) Authenticator {
	return &bearerAuth{fn: fn}
}

type bearerAuth struct {
	fn func(string) (any, bool)
}

func (a *bearerAuth) Authenticate(r *http.Request) (any, bool) {
	value := r.Header.Get("Authorization")
	if value == "" {
		return nil, false
	}
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, false
	}
	return a.fn(token)
}

func (a *bearerAuth) Scheme() (string, SecurityScheme) {
	return "bearerTokenAuth", SecurityScheme{Type: "http", Scheme: "bearer"}
}

// APIKeyAuth returns an Authenticator that reads an API key from the named
// header and delegates validation to fn.
func APIKeyAuth(header string, fn func(key string) (any, bool)) Authenticator {
	return &apiKeyAuth{header: header, fn: fn}
}

type apiKeyAuth struct {
	header string
	fn     func(string) (any, bool)
}

func (a *apiKeyAuth) Authenticate(r *http.Request) (any, bool) {
	key := r.Header.Get(a.header)
	if key == "" {
		return nil, false
	}
	return a.fn(key)
}

func (a *apiKeyAuth) Scheme() (string, SecurityScheme) {
	return "apiKeyAuth", SecurityScheme{Type: "apiKey", Name: a.header, In: "header"}
}
