package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/scaffold/pkg/repository"
	"github.com/conduit-lang/scaffold/pkg/web/query"
	"github.com/conduit-lang/scaffold/pkg/web/response"
)

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithRenderer sets the response renderer
func WithRenderer(r *response.Renderer) ControllerOption {
	return func(c *Controller) {
		c.renderer = r
	}
}

// WithDefaultPerPage sets the page size used when an index request has no
// per_page. Zero lists every record.
func WithDefaultPerPage(n int) ControllerOption {
	return func(c *Controller) {
		c.perPage = n
	}
}

// WithKeyType sets the shape of the {id} route parameter
func WithKeyType(t query.KeyType) ControllerOption {
	return func(c *Controller) {
		c.keyType = t
	}
}

// WithLogger sets the request logger
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller serves the five resource actions over a repository.Store.
// Generated handlers embed it and override actions that need typed request
// binding.
type Controller struct {
	name     string
	store    repository.Store
	renderer *response.Renderer
	perPage  int
	keyType  query.KeyType
	logger   *zap.Logger
}

var _ ResourceHandler = (*Controller)(nil)

// NewController creates a controller for the model called name
func NewController(name string, store repository.Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		name:   name,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renderer == nil {
		c.renderer = response.NewRenderer(response.WithLogger(c.logger))
	}
	return c
}

// Renderer returns the response renderer
func (c *Controller) Renderer() *response.Renderer {
	return c.renderer
}

// Index lists or paginates records
func (c *Controller) Index(w http.ResponseWriter, r *http.Request) {
	req, err := query.ParseIndex(r.URL.Query(), c.perPage)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}

	result, err := c.store.Index(r.Context(), req.Params())
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.renderer.JSON(w, http.StatusOK, result)
}

// Show returns one record
func (c *Controller) Show(w http.ResponseWriter, r *http.Request) {
	req, err := query.ParseShow(chi.URLParam(r, "id"), r.URL.Query(), c.keyType)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}

	record, err := c.store.Find(r.Context(), req.Key(), req.Columns, req.With)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.renderer.JSON(w, http.StatusOK, record)
}

// Store creates a record from a JSON object body
func (c *Controller) Store(w http.ResponseWriter, r *http.Request) {
	attributes, err := DecodeRecord(w, r)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.StoreRecord(w, r, attributes)
}

// StoreRecord creates a record from already-bound attributes and renders it
// with 201
func (c *Controller) StoreRecord(w http.ResponseWriter, r *http.Request, attributes repository.Record) {
	record, err := c.store.Create(r.Context(), attributes)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.logger.Debug("record created", zap.String("model", c.name))
	c.renderer.JSON(w, http.StatusCreated, record)
}

// Update updates a record from a JSON object body
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	attributes, err := DecodeRecord(w, r)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.UpdateRecord(w, r, attributes)
}

// UpdateRecord updates the record named by the {id} parameter from
// already-bound attributes
func (c *Controller) UpdateRecord(w http.ResponseWriter, r *http.Request, attributes repository.Record) {
	id, err := c.Key(r)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}

	record, err := c.store.Update(r.Context(), id, attributes)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.renderer.JSON(w, http.StatusOK, record)
}

// Destroy deletes the record named by the {id} parameter
func (c *Controller) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := c.Key(r)
	if err != nil {
		c.renderer.Error(w, r, err)
		return
	}

	if _, err := c.store.Delete(r.Context(), id); err != nil {
		c.renderer.Error(w, r, err)
		return
	}
	c.renderer.Message(w, http.StatusOK, c.name+" deleted successfully")
}

// Key parses the {id} route parameter
func (c *Controller) Key(r *http.Request) (any, error) {
	req, err := query.ParseShow(chi.URLParam(r, "id"), nil, c.keyType)
	if err != nil {
		return nil, err
	}
	return req.Key(), nil
}
