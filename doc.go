// Package rivet derives a complete, machine-checkable API contract from
// typed handler signatures. Handlers are plain functions with no HTTP
// awareness:
//
//	type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)
//
// The framework classifies every request field into a location (path, query,
// header, cookie, or body), resolves the handler's return type into a
// status-code → type mapping, binds and validates incoming requests, and
// synthesizes an OpenAPI 3.1 document describing all of it.
//
// Routes use typed path templates:
//
//	r := rivet.New(rivet.WithTitle("Items API"), rivet.WithVersion("1.0.0"))
//	rivet.Get(r, "/items/<int(min=1):id>", getItem)
//	rivet.Post(r, "/items", createItem, rivet.WithStatus(http.StatusCreated))
//
// Placeholders follow the `<converter(args):name>` syntax with int, float,
// uuid, path, string, and any converters; `<name>` alone is a generic string
// token. Converter arguments become both runtime checks and schema
// constraints.
//
// Request types use struct tags for explicit parameter locations and a Body
// field (or an untagged aggregate field) for request bodies; untagged
// scalar fields become query parameters:
//
//	type UpdateReq struct {
//	    ID    int  `path:"id"`
//	    Force bool `query:"force"`
//	    Body  struct {
//	        Name string `json:"name" required:"true"`
//	    }
//	}
//
// A request struct with no binding tags at all (and no path variables to
// cover) binds whole as the request body.
//
// Misconfiguration (duplicate path variables, multiple bodies, ambiguous
// return types) panics at registration time with *ConfigError or
// *TemplateError, so a broken contract never serves traffic.
//
// Routers can be mounted into one another under a prefix with a default
// authentication policy; the child router is never mutated. The OpenAPI
// document is rebuilt from scratch on every call to Spec.
package rivet
