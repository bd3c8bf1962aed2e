package repository

import (
	"context"
	"errors"
	"iter"

	"go.uber.org/zap"
)

// Model is the persistence collaborator a Repository delegates to. Lookups
// that match nothing must return an error wrapping ErrRecordNotFound.
type Model interface {
	NewQuery() Queryable
	Create(ctx context.Context, attributes Record) (Record, error)
	Update(ctx context.Context, id any, attributes Record) (Record, error)
	Delete(ctx context.Context, id any) (bool, error)
	ForceDelete(ctx context.Context, id any) (bool, error)
	// Restore looks the record up including soft-deleted rows
	Restore(ctx context.Context, id any) (bool, error)
	Insert(ctx context.Context, records []Record) error
	UpdateWhereIn(ctx context.Context, column string, ids []any, attributes Record) (int64, error)
	DeleteWhereIn(ctx context.Context, column string, ids []any) (int64, error)
	UpdateOrCreate(ctx context.Context, attributes, values Record) (Record, error)
}

// Option configures a Repository
type Option func(*Repository)

// WithSortableColumns restricts the columns an index may be ordered by
func WithSortableColumns(columns ...string) Option {
	return func(r *Repository) {
		r.resolver = NewResolver(columns...)
	}
}

// WithLogger sets the logger used for persistence failures
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithKeyColumn sets the column batch operations match IDs against
func WithKeyColumn(column string) Option {
	return func(r *Repository) {
		r.keyColumn = column
	}
}

// Repository implements index/find/CRUD/batch operations over a Model.
// Every failure is returned as an *Error.
type Repository struct {
	model     Model
	resolver  *Resolver
	keyColumn string
	logger    *zap.Logger
}

// New creates a repository for model
func New(model Model, opts ...Option) *Repository {
	r := &Repository{
		model:     model,
		resolver:  NewResolver(),
		keyColumn: "id",
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the underlying persistence model
func (r *Repository) Model() Model {
	return r.model
}

// NewQuery returns a fresh queryable from the model
func (r *Repository) NewQuery() Queryable {
	return r.model.NewQuery()
}

// Resolver returns the resolver used by Index and Find
func (r *Repository) Resolver() *Resolver {
	return r.resolver
}

// Index resolves p and runs it, paginating when p.PerPage > 0
func (r *Repository) Index(ctx context.Context, p IndexParams) (*Result, error) {
	q, err := r.resolver.ResolveIndex(r.model.NewQuery(), p)
	if err != nil {
		return nil, err
	}

	if p.PerPage > 0 {
		page := p.Page
		if page < 1 {
			page = 1
		}
		result, err := q.Paginate(ctx, p.PerPage, page)
		if err != nil {
			return nil, r.fail(OpFind, err)
		}
		return &Result{Items: result.Items, Page: result}, nil
	}

	items, err := q.List(ctx)
	if err != nil {
		return nil, r.fail(OpFind, err)
	}
	return &Result{Items: items}, nil
}

// Find returns the record with the given ID
func (r *Repository) Find(ctx context.Context, id any, columns, relationships []string) (Record, error) {
	q := r.resolver.ResolveFind(r.model.NewQuery(), columns, relationships)

	record, err := q.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, &Error{Kind: KindNotFound, Detail: id, Err: err}
		}
		return nil, r.fail(OpFind, err)
	}
	if record == nil {
		return nil, newError(KindNotFound, id)
	}
	return record, nil
}

// Create inserts a new record
func (r *Repository) Create(ctx context.Context, attributes Record) (Record, error) {
	record, err := r.model.Create(ctx, attributes)
	if err != nil {
		return nil, r.fail(OpCreate, err)
	}
	return record, nil
}

// Update finds the record and applies attributes. NotFound is returned as is.
func (r *Repository) Update(ctx context.Context, id any, attributes Record) (Record, error) {
	if _, err := r.Find(ctx, id, nil, nil); err != nil {
		return nil, err
	}

	record, err := r.model.Update(ctx, id, attributes)
	if err != nil {
		return nil, r.fail(OpUpdate, err)
	}
	return record, nil
}

// Delete finds the record and deletes it (softly, if the model supports it)
func (r *Repository) Delete(ctx context.Context, id any) (bool, error) {
	if _, err := r.Find(ctx, id, nil, nil); err != nil {
		return false, err
	}

	deleted, err := r.model.Delete(ctx, id)
	if err != nil {
		return false, r.fail(OpDelete, err)
	}
	return deleted, nil
}

// ForceDelete finds the record and removes it permanently
func (r *Repository) ForceDelete(ctx context.Context, id any) (bool, error) {
	if _, err := r.Find(ctx, id, nil, nil); err != nil {
		return false, err
	}

	deleted, err := r.model.ForceDelete(ctx, id)
	if err != nil {
		return false, r.fail(OpForceDelete, err)
	}
	return deleted, nil
}

// Restore un-deletes a soft-deleted record
func (r *Repository) Restore(ctx context.Context, id any) (bool, error) {
	restored, err := r.model.Restore(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, &Error{Kind: KindNotFound, Detail: id, Err: err}
		}
		return false, r.fail(OpRestore, err)
	}
	return restored, nil
}

// BatchCreate inserts records in one statement
func (r *Repository) BatchCreate(ctx context.Context, records []Record) error {
	if err := r.model.Insert(ctx, records); err != nil {
		return r.fail(OpBatchCreate, err)
	}
	return nil
}

// BatchUpdate applies attributes to every record whose key is in ids
func (r *Repository) BatchUpdate(ctx context.Context, ids []any, attributes Record) (int64, error) {
	n, err := r.model.UpdateWhereIn(ctx, r.keyColumn, ids, attributes)
	if err != nil {
		return 0, r.fail(OpBatchUpdate, err)
	}
	return n, nil
}

// BatchDelete deletes every record whose key is in ids
func (r *Repository) BatchDelete(ctx context.Context, ids []any) (int64, error) {
	n, err := r.model.DeleteWhereIn(ctx, r.keyColumn, ids)
	if err != nil {
		return 0, r.fail(OpBatchDelete, err)
	}
	return n, nil
}

// UpdateOrCreate updates the record matching attributes with values, or
// creates it from both.
func (r *Repository) UpdateOrCreate(ctx context.Context, attributes, values Record) (Record, error) {
	record, err := r.model.UpdateOrCreate(ctx, attributes, values)
	if err != nil {
		return nil, r.fail(OpUpdateOrCreate, err)
	}
	return record, nil
}

// Exists reports whether any record matches conditions
func (r *Repository) Exists(ctx context.Context, conditions []any) (bool, error) {
	q := r.model.NewQuery()
	if err := ApplyFilters(q, conditions); err != nil {
		return false, err
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, r.fail(OpExistsCheck, err)
	}
	return exists, nil
}

// Count returns the number of records matching conditions
func (r *Repository) Count(ctx context.Context, conditions []any) (int, error) {
	q := r.model.NewQuery()
	if len(conditions) > 0 {
		if err := ApplyFilters(q, conditions); err != nil {
			return 0, err
		}
	}

	n, err := q.Count(ctx)
	if err != nil {
		return 0, r.fail(OpCount, err)
	}
	return n, nil
}

// Chunk calls fn with batches of at most size records matching conditions
func (r *Repository) Chunk(ctx context.Context, size int, fn func([]Record) error, conditions ...any) error {
	q := r.model.NewQuery()
	if err := ApplyFilters(q, conditions); err != nil {
		return err
	}
	return q.Chunk(ctx, size, fn)
}

// Cursor streams the records matching conditions
func (r *Repository) Cursor(ctx context.Context, conditions ...any) iter.Seq2[Record, error] {
	q := r.model.NewQuery()
	if err := ApplyFilters(q, conditions); err != nil {
		return func(yield func(Record, error) bool) {
			yield(nil, err)
		}
	}
	return q.Cursor(ctx)
}

// fail wraps a persistence error as OperationFailed. Errors that already
// carry a kind pass through.
func (r *Repository) fail(op string, err error) error {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	r.logger.Warn("repository operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
	return operationFailed(op, err)
}
