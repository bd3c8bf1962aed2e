package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

// Model implements repository.Model over one table
type Model struct {
	db      DB
	dialect Dialect
	table   *Table
	logger  *zap.Logger
	now     func() time.Time
}

var _ repository.Model = (*Model)(nil)

// ModelOption configures a Model
type ModelOption func(*Model)

// WithLogger sets the logger SQL statements are written to at debug level
func WithLogger(logger *zap.Logger) ModelOption {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the time source used for timestamps and soft deletes
func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) {
		m.now = now
	}
}

// NewModel creates a model for table
func NewModel(db DB, dialect Dialect, table *Table, opts ...ModelOption) *Model {
	m := &Model{
		db:      db,
		dialect: dialect,
		table:   table,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the mapped table
func (m *Model) Table() *Table {
	return m.table
}

// NewQuery returns a fresh query over the table
func (m *Model) NewQuery() repository.Queryable {
	return m.Query()
}

// Query returns a fresh query with the store-specific builder methods
func (m *Model) Query() *Query {
	return NewQuery(m.db, m.dialect, m.table, m.logger)
}

// Create inserts a record and returns it as stored
func (m *Model) Create(ctx context.Context, attributes repository.Record) (repository.Record, error) {
	record := m.prepareInsert(attributes)
	columns := sortedColumns(record)
	if err := validateColumns(columns); err != nil {
		return nil, err
	}

	b := &binder{dialect: m.dialect}
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = b.bind(record[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.table.Name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if m.dialect.SupportsReturning() {
		records, err := m.Query().query(ctx, query+" RETURNING *", b.args)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return record, nil
		}
		return records[0], nil
	}

	result, err := m.exec(ctx, query, b.args)
	if err != nil {
		return nil, err
	}
	if _, ok := record[m.table.primaryKey()]; !ok {
		if id, err := result.LastInsertId(); err == nil {
			record[m.table.primaryKey()] = id
		}
	}
	return record, nil
}

// Update applies attributes to the row with the given key and returns the
// updated row
func (m *Model) Update(ctx context.Context, id any, attributes repository.Record) (repository.Record, error) {
	record := m.prepareUpdate(attributes)
	if err := validateColumns(sortedColumns(record)); err != nil {
		return nil, err
	}
	if len(record) > 0 {
		b := &binder{dialect: m.dialect}
		set := m.setClause(b, record)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
			m.table.Name, set, m.table.primaryKey(), b.bind(id))

		// MySQL reports zero affected rows for no-op updates, so a miss is
		// detected by the lookup below instead
		if _, err := m.exec(ctx, query, b.args); err != nil {
			return nil, err
		}
	}
	return m.Query().Find(ctx, id)
}

// Delete removes the row, or marks it deleted when the table soft-deletes
func (m *Model) Delete(ctx context.Context, id any) (bool, error) {
	if !m.table.SoftDeletes {
		return m.ForceDelete(ctx, id)
	}

	b := &binder{dialect: m.dialect}
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s AND %s IS NULL",
		m.table.Name, deletedAtColumn, b.bind(m.now()), m.table.primaryKey(), b.bind(id), deletedAtColumn)

	affected, err := m.execAffected(ctx, query, b.args)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ForceDelete removes the row permanently
func (m *Model) ForceDelete(ctx context.Context, id any) (bool, error) {
	b := &binder{dialect: m.dialect}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", m.table.Name, m.table.primaryKey(), b.bind(id))

	affected, err := m.execAffected(ctx, query, b.args)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Restore clears deleted_at on the row with the given key. The row is looked
// up first, trashed or not, so restoring a live row succeeds.
func (m *Model) Restore(ctx context.Context, id any) (bool, error) {
	if !m.table.SoftDeletes {
		return false, fmt.Errorf("%w: %s", ErrSoftDeletesDisabled, m.table.Name)
	}
	if _, err := m.Query().WithTrashed().Find(ctx, id); err != nil {
		return false, err
	}

	b := &binder{dialect: m.dialect}
	query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = %s",
		m.table.Name, deletedAtColumn, m.table.primaryKey(), b.bind(id))

	// MySQL reports zero affected rows when deleted_at was already NULL
	if _, err := m.exec(ctx, query, b.args); err != nil {
		return false, err
	}
	return true, nil
}

// Insert adds records in a single statement. Columns are the union of all
// record keys; missing values are inserted as NULL.
func (m *Model) Insert(ctx context.Context, records []repository.Record) error {
	if len(records) == 0 {
		return nil
	}

	prepared := make([]repository.Record, len(records))
	seen := make(map[string]bool)
	var columns []string
	for i, r := range records {
		prepared[i] = m.prepareInsert(r)
		for col := range prepared[i] {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	if err := validateColumns(columns); err != nil {
		return err
	}

	b := &binder{dialect: m.dialect}
	rows := make([]string, len(prepared))
	for i, record := range prepared {
		placeholders := make([]string, len(columns))
		for j, col := range columns {
			placeholders[j] = b.bind(record[col])
		}
		rows[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		m.table.Name, strings.Join(columns, ", "), strings.Join(rows, ", "))
	_, err := m.exec(ctx, query, b.args)
	return err
}

// UpdateWhereIn applies attributes to rows whose column value is in ids
func (m *Model) UpdateWhereIn(ctx context.Context, column string, ids []any, attributes repository.Record) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !isValidIdentifier(column) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, column)
	}

	record := m.prepareUpdate(attributes)
	if len(record) == 0 {
		return 0, nil
	}
	if err := validateColumns(sortedColumns(record)); err != nil {
		return 0, err
	}

	b := &binder{dialect: m.dialect}
	set := m.setClause(b, record)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)%s",
		m.table.Name, set, column, bindList(b, ids), m.notTrashed())
	return m.execAffected(ctx, query, b.args)
}

// DeleteWhereIn deletes (or soft-deletes) rows whose column value is in ids
func (m *Model) DeleteWhereIn(ctx context.Context, column string, ids []any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !isValidIdentifier(column) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, column)
	}

	b := &binder{dialect: m.dialect}
	var query string
	if m.table.SoftDeletes {
		query = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IN (%s)%s",
			m.table.Name, deletedAtColumn, b.bind(m.now()), column, bindList(b, ids), m.notTrashed())
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", m.table.Name, column, bindList(b, ids))
	}
	return m.execAffected(ctx, query, b.args)
}

// UpdateOrCreate updates the first row matching attributes with values, or
// creates a row from attributes and values
func (m *Model) UpdateOrCreate(ctx context.Context, attributes, values repository.Record) (repository.Record, error) {
	q := m.Query()
	for _, col := range sortedColumns(attributes) {
		q.Where(col, "=", attributes[col])
	}

	existing, err := q.Limit(1).List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return m.Update(ctx, existing[0][m.table.primaryKey()], values)
	}

	merged := make(repository.Record, len(attributes)+len(values))
	for k, v := range attributes {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return m.Create(ctx, merged)
}

// prepareInsert copies attributes and fills generated keys and timestamps
func (m *Model) prepareInsert(attributes repository.Record) repository.Record {
	record := make(repository.Record, len(attributes)+3)
	for k, v := range attributes {
		record[k] = v
	}

	pk := m.table.primaryKey()
	if m.table.UUIDKeys {
		if v, ok := record[pk]; !ok || v == nil {
			record[pk] = uuid.New().String()
		}
	}
	if m.table.Timestamps {
		now := m.now()
		if _, ok := record[createdAtColumn]; !ok {
			record[createdAtColumn] = now
		}
		if _, ok := record[updatedAtColumn]; !ok {
			record[updatedAtColumn] = now
		}
	}
	return record
}

// prepareUpdate copies attributes, drops the primary key and touches
// updated_at
func (m *Model) prepareUpdate(attributes repository.Record) repository.Record {
	record := make(repository.Record, len(attributes)+1)
	for k, v := range attributes {
		if k == m.table.primaryKey() {
			continue
		}
		record[k] = v
	}
	if m.table.Timestamps && len(record) > 0 {
		if _, ok := record[updatedAtColumn]; !ok {
			record[updatedAtColumn] = m.now()
		}
	}
	return record
}

func (m *Model) setClause(b *binder, record repository.Record) string {
	columns := sortedColumns(record)
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s = %s", col, b.bind(record[col]))
	}
	return strings.Join(parts, ", ")
}

func (m *Model) notTrashed() string {
	if m.table.SoftDeletes {
		return fmt.Sprintf(" AND %s IS NULL", deletedAtColumn)
	}
	return ""
}

type execResult interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

func (m *Model) exec(ctx context.Context, query string, args []interface{}) (execResult, error) {
	m.logger.Debug("sql exec", zap.String("sql", query), zap.Int("args", len(args)))

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", ConvertDBError(err))
	}
	return result, nil
}

func (m *Model) execAffected(ctx context.Context, query string, args []interface{}) (int64, error) {
	result, err := m.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// sortedColumns returns record keys in sorted order for deterministic SQL
func sortedColumns(record repository.Record) []string {
	columns := make([]string, 0, len(record))
	for col := range record {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func validateColumns(columns []string) error {
	for _, col := range columns {
		if !isValidIdentifier(col) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, col)
		}
	}
	return nil
}
