package repository

import (
	"slices"
	"strings"
)

const countSuffix = ".count"

// IndexParams are the pagination, sort, relationship, column and filter
// parameters of an index call.
type IndexParams struct {
	// PerPage > 0 paginates; 0 lists everything
	PerPage int
	// Page is the 1-based page number, used only when paginating
	Page           int
	OrderBy        string
	OrderDirection string
	Relationships  []string
	Columns        []string
	// Filters holds Filter values, 2/3-element slices or JSON strings
	Filters []any
}

// Resolver configures a Queryable from index and find parameters. It never
// executes the query.
type Resolver struct {
	sortable []string
}

// NewResolver creates a resolver. An empty allow-list permits any sort column.
func NewResolver(sortableColumns ...string) *Resolver {
	return &Resolver{sortable: sortableColumns}
}

// SortableColumns returns the configured allow-list
func (r *Resolver) SortableColumns() []string {
	return r.sortable
}

// ResolveIndex selects columns, loads/counts relationships, applies filters
// and sorting, and returns q un-executed.
func (r *Resolver) ResolveIndex(q Queryable, p IndexParams) (Queryable, error) {
	q = r.ResolveFind(q, p.Columns, p.Relationships)

	if len(p.Filters) > 0 {
		if err := ApplyFilters(q, p.Filters); err != nil {
			return q, err
		}
	}

	if p.OrderBy != "" {
		direction := p.OrderDirection
		if direction == "" {
			direction = "asc"
		}
		if err := r.ApplySorting(q, p.OrderBy, direction); err != nil {
			return q, err
		}
	}

	return q, nil
}

// ResolveFind selects columns and loads/counts relationships
func (r *Resolver) ResolveFind(q Queryable, columns, relationships []string) Queryable {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	q = q.Select(columns...)

	if len(relationships) > 0 {
		loaded, counted := PartitionRelationships(relationships)
		if len(counted) > 0 {
			q = q.WithCount(counted...)
		}
		if len(loaded) > 0 {
			q = q.With(loaded...)
		}
	}

	return q
}

// ApplySorting validates the direction and the allow-list, then orders q
func (r *Resolver) ApplySorting(q Queryable, column, direction string) error {
	if direction != "asc" && direction != "desc" {
		return newError(KindInvalidOrderDirection, direction)
	}
	if len(r.sortable) > 0 && !slices.Contains(r.sortable, column) {
		return newError(KindInvalidSortColumn, column)
	}
	q.OrderBy(column, direction)
	return nil
}

// PartitionRelationships splits names into eager-loaded and counted
// relationships. Names ending in ".count" are counted with the suffix
// stripped; relative order is kept in both lists.
func PartitionRelationships(relationships []string) (loaded, counted []string) {
	for _, name := range relationships {
		if strings.HasSuffix(name, countSuffix) {
			counted = append(counted, strings.TrimSuffix(name, countSuffix))
		} else {
			loaded = append(loaded, name)
		}
	}
	return loaded, counted
}
