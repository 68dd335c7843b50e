// Command sample demonstrates the rivet framework with a small inventory
// API covering typed path templates, mounted sub-routers, authentication,
// union responses, and the generated OpenAPI document.
//
// Run:
//
//	go run ./cmd/sample
//
// Generate the OpenAPI document:
//
//	go run ./cmd/sample -spec                 — print JSON to stdout
//	go run ./cmd/sample -spec -o openapi.json — write to file
//	go run ./cmd/sample -spec -yaml           — print YAML
//
// Then explore:
//
//	GET  http://localhost:8080/openapi.json         — OpenAPI document
//	GET  http://localhost:8080/docs                 — docs UI
//	GET  http://localhost:8080/metrics              — Prometheus metrics
//	GET  http://localhost:8080/v1/health            — health check
//	GET  http://localhost:8080/v1/items             — list items
//	POST http://localhost:8080/v1/items             — create item (auth)
//	GET  http://localhost:8080/v1/items/{id}        — get item
//	DELETE http://localhost:8080/v1/items/{id}      — delete item (auth)
//	GET  http://localhost:8080/v1/tags/{tag}/items  — items by tag
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gorivet/rivet"
)

func main() {
	specFlag := flag.Bool("spec", false, "Print the OpenAPI document to stdout and exit")
	yamlFlag := flag.Bool("yaml", false, "Emit YAML instead of JSON (requires -spec)")
	outFlag := flag.String("o", "", "Output file for the document (requires -spec)")
	flag.Parse()

	r := newRouter()

	if *specFlag {
		if err := writeSpec(r, *outFlag, *yamlFlag); err != nil {
			slog.Error("spec generation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting server", "addr", ":8080", "spec", "http://localhost:8080/openapi.json")

	if err := r.ListenAndServe(ctx, ":8080"); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

func writeSpec(r *rivet.Router, path string, asYAML bool) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if asYAML {
		return r.WriteSpecYAML(out)
	}
	return r.WriteSpec(out)
}

func newRouter() *rivet.Router {
	store := newStore()
	auth := rivet.BearerAuth(func(token string) (any, bool) {
		if token == "secret-token" {
			return "admin", true
		}
		return nil, false
	})

	api := rivet.New()

	rivet.Get(api, "/health", store.health,
		rivet.WithDoc("Health check\n\nReports process uptime."),
		rivet.WithTags("ops"),
	)

	rivet.Get(api, "/items", store.list,
		rivet.WithDoc("List items\n\nReturns items filtered by the optional tag query."),
		rivet.WithTags("items"),
	)

	rivet.Post(api, "/items", store.create,
		rivet.WithDoc("Create an item"),
		rivet.WithTags("items"),
		rivet.WithStatus(http.StatusCreated),
		rivet.WithAuth(auth),
		rivet.WithCallback("itemCreated", rivet.Callback{
			URL:     "{$request.body#/callbackUrl}",
			Method:  http.MethodPost,
			Summary: "Item created notification",
			Body:    reflect.TypeFor[Item](),
			Responses: map[int]string{
				http.StatusOK: "Notification received",
			},
		}),
	)

	rivet.Get(api, "/items/<uuid:id>", store.get,
		rivet.WithDoc("Get one item"),
		rivet.WithTags("items"),
		rivet.WithResponse[Item](http.StatusOK),
		rivet.WithResponse[ItemSummary](http.StatusPartialContent),
	)

	rivet.Delete(api, "/items/<uuid:id>", store.remove,
		rivet.WithDoc("Delete an item"),
		rivet.WithTags("items"),
		rivet.WithAuth(auth),
	)

	rivet.Get(api, "/tags/<string(maxLength=32):tag>/items", store.byTag,
		rivet.WithDoc("List items carrying a tag"),
		rivet.WithTags("items", "tags"),
	)

	root := rivet.New(
		rivet.WithTitle("Inventory API"),
		rivet.WithVersion("1.0.0"),
		rivet.WithAPIDescription("Sample inventory service."),
		rivet.WithServers(rivet.Server{URL: "http://localhost:8080"}),
		rivet.WithTagDescriptions(map[string]string{
			"items": "Inventory items",
			"ops":   "Operational endpoints",
		}),
	)
	root.Mount("/v1", api)

	metrics := rivet.NewMetrics(prometheus.DefaultRegisterer)
	root.Use(
		rivet.Recovery(),
		rivet.RequestID(),
		rivet.Logger(slog.Default()),
		metrics.Middleware(),
		rivet.RateLimit(rivet.RateLimitConfig{Rate: 50, Burst: 100}),
	)

	root.ServeSpec("/openapi.json")
	root.ServeSpecYAML("/openapi.yaml")
	root.ServeDocs("/docs")
	root.Handle("GET /metrics", promhttp.Handler())

	return root
}

// Item is an inventory entry.
type Item struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" doc:"Display name" minLength:"1" maxLength:"120"`
	Tags      []string  `json:"tags,omitempty"`
	Quantity  int       `json:"quantity" minimum:"0"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemSummary is the reduced form returned for partial reads.
type ItemSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type store struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]Item
	started time.Time
}

func newStore() *store {
	return &store{
		items:   make(map[uuid.UUID]Item),
		started: time.Now(),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *store) health(_ context.Context, _ *rivet.Void) (*healthResponse, error) {
	return &healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}, nil
}

type listRequest struct {
	Tag   string `query:"tag" doc:"Only items carrying this tag"`
	Limit int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

type listResponse struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

func (s *store) list(_ context.Context, req *listRequest) (*listResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, item := range s.items {
		if req.Tag != "" && !hasTag(item, req.Tag) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return &listResponse{Items: out, Total: len(out)}, nil
}

type createRequest struct {
	Body struct {
		Name     string   `json:"name" required:"true" minLength:"1" maxLength:"120"`
		Tags     []string `json:"tags,omitempty" maxItems:"16"`
		Quantity int      `json:"quantity" minimum:"0"`
	}
}

func (s *store) create(ctx context.Context, req *createRequest) (*Item, error) {
	item := Item{
		ID:        uuid.New(),
		Name:      req.Body.Name,
		Tags:      req.Body.Tags,
		Quantity:  req.Body.Quantity,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	slog.InfoContext(ctx, "item created", "id", item.ID, "by", rivet.Identity(ctx))
	return &item, nil
}

type getRequest struct {
	ID      uuid.UUID `path:"id"`
	Summary bool      `query:"summary" doc:"Return the reduced form"`
}

func (s *store) get(_ context.Context, req *getRequest) (*rivet.Union2[Item, ItemSummary], error) {
	s.mu.RLock()
	item, ok := s.items[req.ID]
	s.mu.RUnlock()

	if !ok {
		return nil, rivet.Errorf(http.StatusNotFound, "item %s not found", req.ID)
	}
	if req.Summary {
		return &rivet.Union2[Item, ItemSummary]{Value: ItemSummary{ID: item.ID, Name: item.Name}}, nil
	}
	return &rivet.Union2[Item, ItemSummary]{Value: item}, nil
}

type deleteRequest struct {
	ID uuid.UUID `path:"id"`
}

func (s *store) remove(_ context.Context, req *deleteRequest) (*rivet.Void, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[req.ID]; !ok {
		return nil, rivet.Errorf(http.StatusNotFound, "item %s not found", req.ID)
	}
	delete(s.items, req.ID)
	return &rivet.Void{}, nil
}

type byTagRequest struct {
	Tag string `path:"tag"`
}

func (s *store) byTag(ctx context.Context, req *byTagRequest) (*listResponse, error) {
	return s.list(ctx, &listRequest{Tag: req.Tag, Limit: 500})
}

func hasTag(item Item, tag string) bool {
	for _, t := range item.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
