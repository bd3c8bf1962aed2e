// Package web mounts generated resource handlers on a chi router.
//
// Each resource registers itself in a ResourceTable from the application's
// routes file:
//
//	var Resources = web.NewResourceTable()
//
//	var _ = Resources.Add("users", func(c *container.Container) (web.ResourceHandler, error) {
//		return container.Resolve[*users.Handler](c)
//	})
//
// and the server mounts the table once the container is populated.
package web

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conduit-lang/scaffold/pkg/container"
)

// ResourceHandler serves the five API resource actions
type ResourceHandler interface {
	Index(w http.ResponseWriter, r *http.Request)
	Show(w http.ResponseWriter, r *http.Request)
	Store(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Destroy(w http.ResponseWriter, r *http.Request)
}

// HandlerFactory builds a resource handler from the application's bindings
type HandlerFactory func(c *container.Container) (ResourceHandler, error)

// ResourceTable is an ordered set of named resources
type ResourceTable struct {
	names     []string
	factories map[string]HandlerFactory
	mu        sync.RWMutex
}

// NewResourceTable creates an empty table
func NewResourceTable() *ResourceTable {
	return &ResourceTable{factories: make(map[string]HandlerFactory)}
}

// Add registers the resource served at /name. Adding a name twice keeps its
// original position and replaces the factory; Add then returns false.
func (t *ResourceTable) Add(name string, factory HandlerFactory) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.factories[name]
	if !exists {
		t.names = append(t.names, name)
	}
	t.factories[name] = factory
	return !exists
}

// Names returns the resource names in registration order
func (t *ResourceTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.names...)
}

// Mount builds every handler from c and registers its routes on r
func (t *ResourceTable) Mount(r chi.Router, c *container.Container) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, name := range t.names {
		handler, err := t.factories[name](c)
		if err != nil {
			return fmt.Errorf("failed to build handler for %s: %w", name, err)
		}
		APIResource(r, name, handler)
	}
	return nil
}

// APIResource registers the conventional routes of one resource:
//
//	GET    /name         Index
//	POST   /name         Store
//	GET    /name/{id}    Show
//	PUT    /name/{id}    Update
//	PATCH  /name/{id}    Update
//	DELETE /name/{id}    Destroy
func APIResource(r chi.Router, name string, h ResourceHandler) {
	r.Route("/"+name, func(r chi.Router) {
		r.Get("/", h.Index)
		r.Post("/", h.Store)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Show)
			r.Put("/", h.Update)
			r.Patch("/", h.Update)
			r.Delete("/", h.Destroy)
		})
	})
}

// NewRouter creates a router with request IDs and panic recovery and mounts
// the table under prefix
func NewRouter(t *ResourceTable, c *container.Container, prefix string) (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if prefix == "" || prefix == "/" {
		if err := t.Mount(r, c); err != nil {
			return nil, err
		}
		return r, nil
	}

	var mountErr error
	r.Route(prefix, func(r chi.Router) {
		mountErr = t.Mount(r, c)
	})
	if mountErr != nil {
		return nil, mountErr
	}
	return r, nil
}
