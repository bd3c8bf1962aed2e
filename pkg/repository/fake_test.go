package repository

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// recordingQuery records every call made on it in order
type recordingQuery struct {
	calls   []string
	records []Record
	err     error
	total   int
}

var _ Queryable = (*recordingQuery)(nil)

func (q *recordingQuery) record(format string, args ...any) {
	q.calls = append(q.calls, fmt.Sprintf(format, args...))
}

func (q *recordingQuery) Select(columns ...string) Queryable {
	q.record("select(%s)", strings.Join(columns, ","))
	return q
}

func (q *recordingQuery) Where(field, operator string, value any) Queryable {
	q.record("where(%s,%s,%v)", field, operator, value)
	return q
}

func (q *recordingQuery) WhereRelationHas(relation, column, operator string, value any) Queryable {
	q.record("whereHas(%s,%s,%s,%v)", relation, column, operator, value)
	return q
}

func (q *recordingQuery) With(relations ...string) Queryable {
	q.record("with(%s)", strings.Join(relations, ","))
	return q
}

func (q *recordingQuery) WithCount(relations ...string) Queryable {
	q.record("withCount(%s)", strings.Join(relations, ","))
	return q
}

func (q *recordingQuery) OrderBy(column, direction string) Queryable {
	q.record("orderBy(%s,%s)", column, direction)
	return q
}

func (q *recordingQuery) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	q.record("paginate(%d,%d)", perPage, page)
	if q.err != nil {
		return nil, q.err
	}
	return NewPage(q.records, q.total, perPage, page), nil
}

func (q *recordingQuery) List(ctx context.Context) ([]Record, error) {
	q.record("list()")
	if q.err != nil {
		return nil, q.err
	}
	return q.records, nil
}

func (q *recordingQuery) Exists(ctx context.Context) (bool, error) {
	q.record("exists()")
	if q.err != nil {
		return false, q.err
	}
	return len(q.records) > 0, nil
}

func (q *recordingQuery) Count(ctx context.Context) (int, error) {
	q.record("count()")
	if q.err != nil {
		return 0, q.err
	}
	return len(q.records), nil
}

func (q *recordingQuery) Find(ctx context.Context, id any) (Record, error) {
	q.record("find(%v)", id)
	if q.err != nil {
		return nil, q.err
	}
	for _, r := range q.records {
		if fmt.Sprint(r["id"]) == fmt.Sprint(id) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("users: %w", ErrRecordNotFound)
}

func (q *recordingQuery) Chunk(ctx context.Context, size int, fn func([]Record) error) error {
	q.record("chunk(%d)", size)
	for start := 0; start < len(q.records); start += size {
		end := min(start+size, len(q.records))
		if err := fn(q.records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (q *recordingQuery) Cursor(ctx context.Context) iter.Seq2[Record, error] {
	q.record("cursor()")
	return func(yield func(Record, error) bool) {
		for _, r := range q.records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// fakeModel hands out one shared recordingQuery and records model calls
type fakeModel struct {
	query *recordingQuery
	calls []string
	err   error
}

var _ Model = (*fakeModel)(nil)

func newFakeModel(records ...Record) *fakeModel {
	return &fakeModel{query: &recordingQuery{records: records, total: len(records)}}
}

func (m *fakeModel) NewQuery() Queryable {
	return m.query
}

func (m *fakeModel) Create(ctx context.Context, attributes Record) (Record, error) {
	m.calls = append(m.calls, "create")
	if m.err != nil {
		return nil, m.err
	}
	return attributes, nil
}

func (m *fakeModel) Update(ctx context.Context, id any, attributes Record) (Record, error) {
	m.calls = append(m.calls, fmt.Sprintf("update(%v)", id))
	if m.err != nil {
		return nil, m.err
	}
	return attributes, nil
}

func (m *fakeModel) Delete(ctx context.Context, id any) (bool, error) {
	m.calls = append(m.calls, fmt.Sprintf("delete(%v)", id))
	return m.err == nil, m.err
}

func (m *fakeModel) ForceDelete(ctx context.Context, id any) (bool, error) {
	m.calls = append(m.calls, fmt.Sprintf("forceDelete(%v)", id))
	return m.err == nil, m.err
}

func (m *fakeModel) Restore(ctx context.Context, id any) (bool, error) {
	m.calls = append(m.calls, fmt.Sprintf("restore(%v)", id))
	return m.err == nil, m.err
}

func (m *fakeModel) Insert(ctx context.Context, records []Record) error {
	m.calls = append(m.calls, fmt.Sprintf("insert(%d)", len(records)))
	return m.err
}

func (m *fakeModel) UpdateWhereIn(ctx context.Context, column string, ids []any, attributes Record) (int64, error) {
	m.calls = append(m.calls, fmt.Sprintf("updateWhereIn(%s,%v)", column, ids))
	return int64(len(ids)), m.err
}

func (m *fakeModel) DeleteWhereIn(ctx context.Context, column string, ids []any) (int64, error) {
	m.calls = append(m.calls, fmt.Sprintf("deleteWhereIn(%s,%v)", column, ids))
	return int64(len(ids)), m.err
}

func (m *fakeModel) UpdateOrCreate(ctx context.Context, attributes, values Record) (Record, error) {
	m.calls = append(m.calls, "updateOrCreate")
	if m.err != nil {
		return nil, m.err
	}
	return values, nil
}
