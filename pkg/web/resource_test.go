package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/scaffold/pkg/container"
	"github.com/conduit-lang/scaffold/pkg/repository"
	"github.com/conduit-lang/scaffold/pkg/web/query"
)

// memoryStore is a repository.Store over a map, recording the last call
type memoryStore struct {
	records   map[int64]repository.Record
	nextID    int64
	lastIndex repository.IndexParams
	lastFind  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[int64]repository.Record{}, nextID: 1}
}

func (s *memoryStore) Index(_ context.Context, p repository.IndexParams) (*repository.Result, error) {
	s.lastIndex = p
	if p.OrderBy == "secret" {
		return nil, &repository.Error{Kind: repository.KindInvalidSortColumn, Detail: p.OrderBy}
	}
	items := make([]repository.Record, 0, len(s.records))
	for id := int64(1); id < s.nextID; id++ {
		if rec, ok := s.records[id]; ok {
			items = append(items, rec)
		}
	}
	if p.PerPage > 0 {
		return &repository.Result{Page: repository.NewPage(items, len(items), p.PerPage, 1)}, nil
	}
	return &repository.Result{Items: items}, nil
}

func (s *memoryStore) Find(_ context.Context, id any, columns, relationships []string) (repository.Record, error) {
	s.lastFind = append(append([]string{}, columns...), relationships...)
	rec, ok := s.records[id.(int64)]
	if !ok {
		return nil, &repository.Error{Kind: repository.KindNotFound, Detail: id}
	}
	return rec, nil
}

func (s *memoryStore) Create(_ context.Context, attributes repository.Record) (repository.Record, error) {
	if attributes["name"] == "boom" {
		return nil, &repository.Error{Kind: repository.KindOperationFailed, Op: repository.OpCreate, Err: errors.New("disk full")}
	}
	attributes["id"] = s.nextID
	s.records[s.nextID] = attributes
	s.nextID++
	return attributes, nil
}

func (s *memoryStore) Update(ctx context.Context, id any, attributes repository.Record) (repository.Record, error) {
	rec, err := s.Find(ctx, id, nil, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range attributes {
		rec[k] = v
	}
	return rec, nil
}

func (s *memoryStore) Delete(ctx context.Context, id any) (bool, error) {
	if _, err := s.Find(ctx, id, nil, nil); err != nil {
		return false, err
	}
	delete(s.records, id.(int64))
	return true, nil
}

func (s *memoryStore) BatchCreate(context.Context, []repository.Record) error { return nil }

func (s *memoryStore) BatchUpdate(context.Context, []any, repository.Record) (int64, error) {
	return 0, nil
}

func (s *memoryStore) BatchDelete(context.Context, []any) (int64, error) { return 0, nil }

func (s *memoryStore) UpdateOrCreate(context.Context, repository.Record, repository.Record) (repository.Record, error) {
	return nil, nil
}

func (s *memoryStore) Exists(context.Context, []any) (bool, error) { return false, nil }

func (s *memoryStore) Count(context.Context, []any) (int, error) { return len(s.records), nil }

func newTestRouter(t *testing.T, store repository.Store, opts ...ControllerOption) chi.Router {
	t.Helper()
	c := container.New()
	container.Instance(c, NewController("User", store, opts...))

	table := NewResourceTable()
	table.Add("users", func(c *container.Container) (ResourceHandler, error) {
		return container.Resolve[*Controller](c)
	})

	r, err := NewRouter(table, c, "/api")
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestResourceRoutes_CRUD(t *testing.T) {
	store := newMemoryStore()
	r := newTestRouter(t, store)

	rec := do(r, http.MethodPost, "/api/users", `{"name":"ann","age":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"ann","age":30}`, rec.Body.String())
	assert.Equal(t, int64(30), store.records[1]["age"])

	rec = do(r, http.MethodGet, "/api/users/1?columns=id,name&with[]=posts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"id", "name", "posts"}, store.lastFind)

	rec = do(r, http.MethodPatch, "/api/users/1", `{"name":"anne"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"anne","age":30}`, rec.Body.String())

	rec = do(r, http.MethodPut, "/api/users/1", `{"age":31}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"anne","age":31}]`, rec.Body.String())

	rec = do(r, http.MethodDelete, "/api/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User deleted successfully"}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Record with ID 1 not found"}`, rec.Body.String())
}

func TestResourceRoutes_IndexParams(t *testing.T) {
	store := newMemoryStore()
	r := newTestRouter(t, store, WithDefaultPerPage(15))

	rec := do(r, http.MethodGet, `/api/users?order_by=name&with=posts.count&filters[]=["status","active"]`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 15, page["per_page"])
	assert.Equal(t, repository.IndexParams{
		PerPage:        15,
		OrderBy:        "name",
		OrderDirection: "asc",
		Relationships:  []string{"posts.count"},
		Filters:        []any{`["status","active"]`},
	}, store.lastIndex)
}

func TestResourceRoutes_Errors(t *testing.T) {
	r := newTestRouter(t, newMemoryStore())

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		msg    string
	}{
		{"invalid page size", http.MethodGet, "/api/users?per_page=500", "", http.StatusUnprocessableEntity, "The given data was invalid."},
		{"bad id", http.MethodGet, "/api/users/abc", "", http.StatusUnprocessableEntity, "The given data was invalid."},
		{"sort column", http.MethodGet, "/api/users?order_by=secret", "", http.StatusBadRequest, "Invalid sort column: secret"},
		{"empty body", http.MethodPost, "/api/users", "", http.StatusBadRequest, "request body is empty"},
		{"array body", http.MethodPost, "/api/users", `[1,2]`, http.StatusBadRequest, ""},
		{"store failure", http.MethodPost, "/api/users", `{"name":"boom"}`, http.StatusInternalServerError, "Failed to create model: disk full"},
		{"update missing", http.MethodPut, "/api/users/9", `{"name":"x"}`, http.StatusNotFound, "Record with ID 9 not found"},
		{"delete missing", http.MethodDelete, "/api/users/9", "", http.StatusNotFound, "Record with ID 9 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.msg != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.msg, body["message"])
			}
		})
	}
}

func TestResourceTable_Add(t *testing.T) {
	table := NewResourceTable()
	first := func(*container.Container) (ResourceHandler, error) { return nil, errors.New("first") }
	second := func(*container.Container) (ResourceHandler, error) { return nil, errors.New("second") }

	assert.True(t, table.Add("users", first))
	assert.True(t, table.Add("posts", first))
	assert.False(t, table.Add("users", second))
	assert.Equal(t, []string{"users", "posts"}, table.Names())

	err := table.Mount(chi.NewRouter(), container.New())
	assert.EqualError(t, err, "failed to build handler for users: second")
}

func TestNewRouter_UnboundHandler(t *testing.T) {
	table := NewResourceTable()
	table.Add("users", func(c *container.Container) (ResourceHandler, error) {
		return container.Resolve[*Controller](c)
	})

	_, err := NewRouter(table, container.New(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, container.ErrNotBound))
}

type createUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Age   int    `json:"age"`
}

func TestBindJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ann","age":7}`))
	var body createUserRequest
	require.NoError(t, BindJSON(httptest.NewRecorder(), req, &body))

	attrs, err := Attributes(body)
	require.NoError(t, err)
	assert.Equal(t, repository.Record{"name": "ann", "age": int64(7)}, attrs)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	err = BindJSON(httptest.NewRecorder(), req, &createUserRequest{})
	require.Error(t, err)
	assert.True(t, query.IsValidationError(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	err = BindJSON(httptest.NewRecorder(), req, &createUserRequest{})
	var bodyErr *BodyError
	require.True(t, errors.As(err, &bodyErr))
	assert.Equal(t, http.StatusBadRequest, bodyErr.StatusCode())
}

func TestDecodeRecord_Numbers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"n":3,"f":1.5,"tags":[1,"x"],"meta":{"k":2}}`))
	rec, err := DecodeRecord(httptest.NewRecorder(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(3), rec["n"])
	assert.Equal(t, 1.5, rec["f"])
	assert.Equal(t, []any{int64(1), "x"}, rec["tags"])
	assert.Equal(t, repository.Record{"k": int64(2)}, rec["meta"])
}
