package sqlstore

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

// eagerLoad loads each included relation for records with one batched query
// per relation
func (q *Query) eagerLoad(ctx context.Context, records []repository.Record) error {
	for _, name := range q.includes {
		rel, err := q.table.relation(name)
		if err != nil {
			return err
		}
		if err := q.loadRelation(ctx, records, name, rel); err != nil {
			return fmt.Errorf("failed to load relationship %s: %w", name, err)
		}
	}
	return nil
}

func (q *Query) loadRelation(ctx context.Context, records []repository.Record, name string, rel Relation) error {
	parentKey := rel.parentKey()
	relatedKey := rel.relatedKey()

	// Collect distinct parent keys
	var ids []interface{}
	seen := make(map[string]bool)
	for _, record := range records {
		id := record[parentKey]
		if id == nil {
			continue
		}
		key := idToString(id)
		if !seen[key] {
			seen[key] = true
			ids = append(ids, id)
		}
	}

	grouped := make(map[string][]repository.Record)
	if len(ids) > 0 {
		b := &binder{dialect: q.dialect}
		column := rel.Table + "." + relatedKey

		var cond string
		if q.dialect == Postgres {
			cond = fmt.Sprintf("%s = ANY(%s)", column, b.bind(pq.Array(ids)))
		} else {
			cond = fmt.Sprintf("%s IN (%s)", column, bindList(b, ids))
		}

		related, err := q.query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s", rel.Table, cond), b.args)
		if err != nil {
			return err
		}
		for _, r := range related {
			key := idToString(r[relatedKey])
			grouped[key] = append(grouped[key], r)
		}
	}

	// Attach to parent records
	for _, record := range records {
		var matches []repository.Record
		if id := record[parentKey]; id != nil {
			matches = grouped[idToString(id)]
		}

		switch rel.Kind {
		case HasMany:
			if matches == nil {
				matches = []repository.Record{}
			}
			record[name] = matches
		default:
			if len(matches) > 0 {
				record[name] = matches[0]
			} else {
				record[name] = nil
			}
		}
	}

	return nil
}
