package rivet

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Router is the operation registry. It owns the dispatch mux, the
// middleware chain, and everything the document builder needs. It
// implements http.Handler.
type Router struct {
	mux        *http.ServeMux
	middleware []Middleware
	ops        []*Operation

	title       string
	version     string
	description string

	servers  []Server
	tagDescs map[string]string
	webhooks map[string]PathItem

	defaultAuth authSetting
	validator   Validator
	codecs      *codecRegistry

	mu sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*routerConfig)

type routerConfig struct {
	title       string
	version     string
	description string
	servers     []Server
	tagDescs    map[string]string
	webhooks    map[string]PathItem
	defaultAuth authSetting
	validator   Validator
	encoders    []Encoder
	decoders    []Decoder
}

// WithTitle sets the API title for the document.
func WithTitle(title string) RouterOption {
	return func(c *routerConfig) {
		c.title = title
	}
}

// WithVersion sets the API version for the document.
func WithVersion(version string) RouterOption {
	return func(c *routerConfig) {
		c.version = version
	}
}

// WithAPIDescription sets the API description for the document.
func WithAPIDescription(d string) RouterOption {
	return func(c *routerConfig) {
		c.description = d
	}
}

// WithServers sets the OpenAPI servers array.
func WithServers(servers ...Server) RouterOption {
	return func(c *routerConfig) {
		c.servers = servers
	}
}

// WithTagDescriptions sets tag descriptions for the document.
func WithTagDescriptions(descs map[string]string) RouterOption {
	return func(c *routerConfig) {
		c.tagDescs = descs
	}
}

// WithWebhook registers a webhook path item for the document.
func WithWebhook(name string, item PathItem) RouterOption {
	return func(c *routerConfig) {
		if c.webhooks == nil {
			c.webhooks = make(map[string]PathItem)
		}
		c.webhooks[name] = item
	}
}

// WithDefaultAuth sets the default authentication policy. Operations
// registered without an explicit policy inherit it; WithNoAuth opts out.
func WithDefaultAuth(a Authenticator) RouterOption {
	return func(c *routerConfig) {
		c.defaultAuth = authSetting{set: true, policy: a}
	}
}

// WithValidator sets a global request validator.
func WithValidator(v Validator) RouterOption {
	return func(c *routerConfig) {
		c.validator = v
	}
}

// WithEncoder registers an additional response encoder.
func WithEncoder(enc Encoder) RouterOption {
	return func(c *routerConfig) {
		c.encoders = append(c.encoders, enc)
	}
}

// WithDecoder registers an additional request body decoder.
func WithDecoder(dec Decoder) RouterOption {
	return func(c *routerConfig) {
		c.decoders = append(c.decoders, dec)
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	var c routerConfig
	for _, opt := range opts {
		opt(&c)
	}

	return &Router{
		mux:         http.NewServeMux(),
		title:       c.title,
		version:     c.version,
		description: c.description,
		servers:     c.servers,
		tagDescs:    c.tagDescs,
		webhooks:    c.webhooks,
		defaultAuth: c.defaultAuth,
		validator:   c.validator,
		codecs:      newCodecRegistry(c.encoders, c.decoders),
	}
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// addOperation resolves the default auth policy, wires the operation into
// the dispatch mux, and records it for document generation. Registering
// two operations under the same method and pattern panics, which is the
// ServeMux behavior surfacing a configuration mistake.
func (r *Router) addOperation(op *Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op = op.resolveAuth(r.defaultAuth)
	r.mux.Handle(op.muxEntry(), http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		op.serve(w, req, r.codecs, r.validator)
	}))
	r.ops = append(r.ops, op)
}

// Mount registers every operation of child under the given path prefix.
// The child router is never mutated: its operations are cloned with the
// prefixed template, and operations without an authentication policy
// inherit this router's default. Mounting the same child twice under
// different prefixes yields independent operations.
func (r *Router) Mount(prefix string, child *Router) {
	child.mu.Lock()
	ops := slices.Clone(child.ops)
	child.mu.Unlock()

	for _, op := range ops {
		r.addOperation(op.withPrefix(prefix))
	}
}

// Handle registers a plain http.Handler on the dispatch mux, outside the
// operation pipeline and the document. The pattern uses ServeMux syntax,
// e.g. "GET /metrics".
func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

// Operations returns a snapshot of all registered operations.
func (r *Router) Operations() []*Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ops)
}
