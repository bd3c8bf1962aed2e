// Package query parses and validates the query-string parameters accepted by
// resource endpoints.
//
// Array parameters may be sent Rails-style (with[]=posts&with[]=tags),
// repeated (with=posts&with=tags) or comma separated (with=posts,tags).
// Filters are JSON-encoded tuples and are never split on commas:
//
//	GET /users?per_page=20&order_by=name&with[]=posts.count&filters[]=["status","active"]
package query

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

// MaxPerPage is the largest accepted page size
const MaxPerPage = 100

// IndexRequest holds the parameters of an index call
type IndexRequest struct {
	PerPage        int      `query:"per_page" validate:"min=0,max=100"`
	Page           int      `query:"page" validate:"min=0"`
	OrderBy        string   `query:"order_by" validate:"max=64"`
	OrderDirection string   `query:"order_direction" validate:"oneof=asc desc"`
	With           []string `query:"with" validate:"dive,required"`
	Columns        []string `query:"columns" validate:"dive,required"`
	Filters        []string `query:"filters" validate:"dive,required"`
}

// ParseIndex reads an IndexRequest from values. defaultPerPage applies when
// per_page is absent; zero lists every record.
func ParseIndex(values url.Values, defaultPerPage int) (*IndexRequest, error) {
	verr := &ValidationError{}

	req := &IndexRequest{
		PerPage:        defaultPerPage,
		OrderBy:        values.Get("order_by"),
		OrderDirection: values.Get("order_direction"),
		With:           list(values, "with", true),
		Columns:        list(values, "columns", true),
		Filters:        list(values, "filters", false),
	}
	if req.OrderDirection == "" {
		req.OrderDirection = "asc"
	}

	if n, ok := intValue(values, "per_page", verr); ok {
		if n < 1 {
			verr.Add("per_page", "must be at least 1")
		}
		req.PerPage = n
	}
	if n, ok := intValue(values, "page", verr); ok {
		if n < 1 {
			verr.Add("page", "must be at least 1")
		}
		req.Page = n
	}

	if err := Struct(req); err != nil {
		if !merge(verr, err) {
			return nil, err
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return req, nil
}

// Params converts the request into repository index parameters
func (r *IndexRequest) Params() repository.IndexParams {
	filters := make([]any, len(r.Filters))
	for i, f := range r.Filters {
		filters[i] = f
	}
	return repository.IndexParams{
		PerPage:        r.PerPage,
		Page:           r.Page,
		OrderBy:        r.OrderBy,
		OrderDirection: r.OrderDirection,
		Relationships:  r.With,
		Columns:        r.Columns,
		Filters:        filters,
	}
}

// ShowRequest holds the parameters of a point lookup
type ShowRequest struct {
	ID      string   `query:"id" validate:"required"`
	Columns []string `query:"columns" validate:"dive,required"`
	With    []string `query:"with" validate:"dive,required"`

	key any
}

// KeyType is the shape of a resource's primary key
type KeyType int

const (
	// IntKey ids are integers of at least 1
	IntKey KeyType = iota
	// UUIDKey ids are UUIDs in any form uuid.Parse accepts
	UUIDKey
	// StringKey ids are taken as-is
	StringKey
)

// ParseShow reads a ShowRequest for the record id and checks the id against
// keyType
func ParseShow(id string, values url.Values, keyType KeyType) (*ShowRequest, error) {
	verr := &ValidationError{}
	req := &ShowRequest{
		ID:      id,
		Columns: list(values, "columns", true),
		With:    list(values, "with", true),
		key:     id,
	}

	if err := Struct(req); err != nil {
		if !merge(verr, err) {
			return nil, err
		}
	}
	if id != "" {
		switch keyType {
		case IntKey:
			n, err := strconv.ParseInt(id, 10, 64)
			switch {
			case err != nil:
				verr.Add("id", "must be an integer")
			case n < 1:
				verr.Add("id", "must be at least 1")
			default:
				req.key = n
			}
		case UUIDKey:
			u, err := uuid.Parse(id)
			if err != nil {
				verr.Add("id", "must be a valid UUID")
			} else {
				req.key = u.String()
			}
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return req, nil
}

// Key returns the record id: int64 for IntKey, the canonical string form for
// UUIDKey, the raw string otherwise
func (r *ShowRequest) Key() any {
	return r.key
}

func merge(dst *ValidationError, err error) bool {
	src, ok := err.(*ValidationError)
	if !ok {
		return false
	}
	for field, messages := range src.Fields {
		for _, m := range messages {
			dst.Add(field, m)
		}
	}
	return true
}
