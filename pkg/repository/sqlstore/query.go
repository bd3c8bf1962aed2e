package sqlstore

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

// clause is one AND-ed WHERE condition. Relation clauses compile to an
// EXISTS subquery aliased by the relation name.
type clause struct {
	cond     Condition
	relation string
	rel      Relation
}

// Query is a SQL-backed repository.Queryable over one table. Builder errors
// are kept and returned by the first terminal call.
type Query struct {
	db      DB
	dialect Dialect
	table   *Table
	logger  *zap.Logger

	columns     []string
	counts      []string
	includes    []string
	clauses     []clause
	orderBy     []string
	limit       *int
	offset      *int
	withTrashed bool

	err error
}

var _ repository.Queryable = (*Query)(nil)

// NewQuery creates a query over table
func NewQuery(db DB, dialect Dialect, table *Table, logger *zap.Logger) *Query {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{
		db:      db,
		dialect: dialect,
		table:   table,
		logger:  logger,
	}
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Err returns the first builder error
func (q *Query) Err() error {
	return q.err
}

// Select replaces the selected columns. "*" selects every column.
func (q *Query) Select(columns ...string) repository.Queryable {
	q.columns = q.columns[:0]
	for _, c := range columns {
		if c == "*" {
			q.columns = append(q.columns, q.table.Name+".*")
			continue
		}
		if !isValidIdentifier(c) {
			q.fail(fmt.Errorf("%w: %q", ErrInvalidIdentifier, c))
			continue
		}
		q.columns = append(q.columns, q.table.column(c))
	}
	return q
}

// Where adds an AND condition on a column of the table
func (q *Query) Where(field, operator string, value any) repository.Queryable {
	op, err := ParseOperator(operator)
	if err != nil {
		q.fail(err)
		return q
	}
	if !isValidIdentifier(field) {
		q.fail(fmt.Errorf("%w: %q", ErrInvalidIdentifier, field))
		return q
	}
	q.clauses = append(q.clauses, clause{
		cond: Condition{Field: q.table.column(field), Operator: op, Value: value},
	})
	return q
}

// WhereRelationHas keeps rows with at least one related row matching the
// condition
func (q *Query) WhereRelationHas(relation, column, operator string, value any) repository.Queryable {
	rel, err := q.table.relation(relation)
	if err != nil {
		q.fail(err)
		return q
	}
	op, err := ParseOperator(operator)
	if err != nil {
		q.fail(err)
		return q
	}
	if !isValidIdentifier(relation) || !isValidIdentifier(column) {
		q.fail(fmt.Errorf("%w: %q", ErrInvalidIdentifier, relation+"."+column))
		return q
	}
	q.clauses = append(q.clauses, clause{
		cond:     Condition{Field: relation + "." + column, Operator: op, Value: value},
		relation: relation,
		rel:      rel,
	})
	return q
}

// With eager-loads relations after the main query runs
func (q *Query) With(relations ...string) repository.Queryable {
	for _, name := range relations {
		if _, err := q.table.relation(name); err != nil {
			q.fail(err)
			continue
		}
		q.includes = append(q.includes, name)
	}
	return q
}

// WithCount adds a "<relation>_count" column per relation
func (q *Query) WithCount(relations ...string) repository.Queryable {
	for _, name := range relations {
		if _, err := q.table.relation(name); err != nil {
			q.fail(err)
			continue
		}
		if !isValidIdentifier(name) {
			q.fail(fmt.Errorf("%w: %q", ErrInvalidIdentifier, name))
			continue
		}
		q.counts = append(q.counts, name)
	}
	return q
}

// OrderBy adds an ORDER BY clause. Count columns added by WithCount may be
// ordered by their alias.
func (q *Query) OrderBy(column, direction string) repository.Queryable {
	if !isValidIdentifier(column) {
		q.fail(fmt.Errorf("%w: %q", ErrInvalidIdentifier, column))
		return q
	}
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	field := q.table.column(column)
	if q.isCountAlias(column) {
		field = column
	}
	q.orderBy = append(q.orderBy, fmt.Sprintf("%s %s", field, dir))
	return q
}

func (q *Query) isCountAlias(column string) bool {
	for _, name := range q.counts {
		if column == name+"_count" {
			return true
		}
	}
	return false
}

// WithTrashed includes soft-deleted rows
func (q *Query) WithTrashed() *Query {
	q.withTrashed = true
	return q
}

// Limit caps the number of rows returned
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset skips the first n rows
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

func (q *Query) clone() *Query {
	c := *q
	c.columns = slices.Clone(q.columns)
	c.counts = slices.Clone(q.counts)
	c.includes = slices.Clone(q.includes)
	c.clauses = slices.Clone(q.clauses)
	c.orderBy = slices.Clone(q.orderBy)
	return &c
}

func (q *Query) selectList() string {
	parts := slices.Clone(q.columns)
	if len(parts) == 0 {
		parts = []string{q.table.Name + ".*"}
	}
	for _, name := range q.counts {
		rel := q.table.Relations[name]
		parts = append(parts, fmt.Sprintf(
			"(SELECT COUNT(*) FROM %s AS %s WHERE %s) AS %s_count",
			rel.Table, name, rel.joinCondition(name, q.table.Name), name,
		))
	}
	return strings.Join(parts, ", ")
}

func (q *Query) whereSQL(b *binder) (string, error) {
	parts := make([]string, 0, len(q.clauses)+1)
	for _, c := range q.clauses {
		sql, err := conditionToSQL(c.cond, b)
		if err != nil {
			return "", fmt.Errorf("failed to build condition: %w", err)
		}
		if c.relation != "" {
			sql = fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s AND %s)",
				c.rel.Table, c.relation, c.rel.joinCondition(c.relation, q.table.Name), sql)
		}
		parts = append(parts, sql)
	}
	if q.table.SoftDeletes && !q.withTrashed {
		parts = append(parts, q.table.column(deletedAtColumn)+" IS NULL")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// ToSQL renders the SELECT statement and its arguments
func (q *Query) ToSQL() (string, []interface{}, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	b := &binder{dialect: q.dialect}
	var sql strings.Builder
	sql.WriteString(fmt.Sprintf("SELECT %s FROM %s", q.selectList(), q.table.Name))

	where, err := q.whereSQL(b)
	if err != nil {
		return "", nil, err
	}
	sql.WriteString(where)

	if len(q.orderBy) > 0 {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit != nil {
		sql.WriteString(" LIMIT " + b.bind(*q.limit))
	}
	if q.offset != nil {
		sql.WriteString(" OFFSET " + b.bind(*q.offset))
	}

	return sql.String(), b.args, nil
}

// List runs the query and eager-loads requested relations
func (q *Query) List(ctx context.Context) ([]repository.Record, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}

	records, err := q.query(ctx, query, args)
	if err != nil {
		return nil, err
	}

	if len(q.includes) > 0 && len(records) > 0 {
		if err := q.eagerLoad(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to load relationships: %w", err)
		}
	}

	if records == nil {
		records = []repository.Record{}
	}
	return records, nil
}

// Paginate counts matching rows and returns the requested page
func (q *Query) Paginate(ctx context.Context, perPage, page int) (*repository.Page, error) {
	if perPage < 1 {
		return nil, fmt.Errorf("per page must be positive, got %d", perPage)
	}
	if page < 1 {
		page = 1
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}

	items, err := q.clone().Limit(perPage).Offset((page-1)*perPage).List(ctx)
	if err != nil {
		return nil, err
	}

	return repository.NewPage(items, total, perPage, page), nil
}

// Count returns the number of matching rows
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}

	b := &binder{dialect: q.dialect}
	where, err := q.whereSQL(b)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.table.Name, where)
	q.logger.Debug("sql query", zap.String("sql", query), zap.Int("args", len(b.args)))

	var count int
	if err := q.db.QueryRowContext(ctx, query, b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", ConvertDBError(err))
	}
	return count, nil
}

// Exists reports whether any row matches
func (q *Query) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Find returns the row with the given primary key
func (q *Query) Find(ctx context.Context, id any) (repository.Record, error) {
	f := q.clone()
	f.clauses = append(f.clauses, clause{
		cond: Condition{Field: q.table.column(q.table.primaryKey()), Operator: OpEqual, Value: id},
	})

	records, err := f.Limit(1).List(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %v: %w", q.table.Name, id, repository.ErrRecordNotFound)
	}
	return records[0], nil
}

// Chunk pages through matching rows in primary key order unless an order
// was given
func (q *Query) Chunk(ctx context.Context, size int, fn func([]repository.Record) error) error {
	if size < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}

	base := q.clone()
	if len(base.orderBy) == 0 {
		base.orderBy = []string{q.table.column(q.table.primaryKey()) + " ASC"}
	}

	for offset := 0; ; offset += size {
		records, err := base.clone().Limit(size).Offset(offset).List(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := fn(records); err != nil {
			return err
		}
		if len(records) < size {
			return nil
		}
	}
}

// Cursor streams matching rows one at a time. Relations are not loaded.
func (q *Query) Cursor(ctx context.Context) iter.Seq2[repository.Record, error] {
	return func(yield func(repository.Record, error) bool) {
		query, args, err := q.ToSQL()
		if err != nil {
			yield(nil, err)
			return
		}

		q.logger.Debug("sql cursor", zap.String("sql", query), zap.Int("args", len(args)))
		rows, err := q.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, ConvertDBError(err))
			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, err)
			return
		}

		for rows.Next() {
			record, err := scanRow(rows, columns)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, ConvertDBError(err))
		}
	}
}

func (q *Query) query(ctx context.Context, query string, args []interface{}) ([]repository.Record, error) {
	q.logger.Debug("sql query", zap.String("sql", query), zap.Int("args", len(args)))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", ConvertDBError(err))
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", ConvertDBError(err))
	}
	return records, nil
}
