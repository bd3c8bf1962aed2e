// Package repository provides a generic CRUD data-access layer: a resolver that
// turns filter/sort/relationship parameters into calls on an abstract
// Queryable, a Repository over a persistence Model, and a pass-through Service.
package repository

import (
	"context"
	"encoding/json"
	"iter"
)

// Record is a single row keyed by column name
type Record = map[string]any

// Queryable is a fresh, per-request handle over a collection of records.
// Builder methods mutate the handle and return it for chaining; terminal
// methods execute it.
type Queryable interface {
	Select(columns ...string) Queryable
	Where(field, operator string, value any) Queryable
	WhereRelationHas(relation, column, operator string, value any) Queryable
	With(relations ...string) Queryable
	WithCount(relations ...string) Queryable
	OrderBy(column, direction string) Queryable

	Paginate(ctx context.Context, perPage, page int) (*Page, error)
	List(ctx context.Context) ([]Record, error)
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)

	// Find returns the record with the given primary key, or an error wrapping
	// ErrRecordNotFound.
	Find(ctx context.Context, id any) (Record, error)
	// Chunk calls fn with successive batches of at most size records
	Chunk(ctx context.Context, size int, fn func([]Record) error) error
	// Cursor streams records one at a time
	Cursor(ctx context.Context) iter.Seq2[Record, error]
}

// Page is one page of a paginated index
type Page struct {
	Items       []Record `json:"data"`
	Total       int      `json:"total"`
	PerPage     int      `json:"per_page"`
	CurrentPage int      `json:"current_page"`
	LastPage    int      `json:"last_page"`
}

// NewPage builds a page and computes the last page number
func NewPage(items []Record, total, perPage, currentPage int) *Page {
	if items == nil {
		items = []Record{}
	}
	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = (total + perPage - 1) / perPage
	}
	return &Page{
		Items:       items,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: currentPage,
		LastPage:    lastPage,
	}
}

// Result is the outcome of an index call: a page when the call was
// paginated, a plain list otherwise.
type Result struct {
	Items []Record
	Page  *Page
}

// Paginated reports whether the result carries a page
func (r *Result) Paginated() bool {
	return r.Page != nil
}

// MarshalJSON encodes a page as an object and a list as an array
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Page != nil {
		return json.Marshal(r.Page)
	}
	if r.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Items)
}
