package repository

import "context"

// Store is the operation set a Service forwards to. *Repository implements it.
type Store interface {
	Index(ctx context.Context, p IndexParams) (*Result, error)
	Find(ctx context.Context, id any, columns, relationships []string) (Record, error)
	Create(ctx context.Context, attributes Record) (Record, error)
	Update(ctx context.Context, id any, attributes Record) (Record, error)
	Delete(ctx context.Context, id any) (bool, error)
	BatchCreate(ctx context.Context, records []Record) error
	BatchUpdate(ctx context.Context, ids []any, attributes Record) (int64, error)
	BatchDelete(ctx context.Context, ids []any) (int64, error)
	UpdateOrCreate(ctx context.Context, attributes, values Record) (Record, error)
	Exists(ctx context.Context, conditions []any) (bool, error)
	Count(ctx context.Context, conditions []any) (int, error)
}

var _ Store = (*Repository)(nil)

// Service forwards every call to its store. Resource services embed it and
// add business logic alongside.
type Service struct {
	store Store
}

var _ Store = (*Service)(nil)

// NewService creates a service over store
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Store returns the wrapped store
func (s *Service) Store() Store {
	return s.store
}

func (s *Service) Index(ctx context.Context, p IndexParams) (*Result, error) {
	return s.store.Index(ctx, p)
}

func (s *Service) Find(ctx context.Context, id any, columns, relationships []string) (Record, error) {
	return s.store.Find(ctx, id, columns, relationships)
}

func (s *Service) Create(ctx context.Context, attributes Record) (Record, error) {
	return s.store.Create(ctx, attributes)
}

func (s *Service) Update(ctx context.Context, id any, attributes Record) (Record, error) {
	return s.store.Update(ctx, id, attributes)
}

func (s *Service) Delete(ctx context.Context, id any) (bool, error) {
	return s.store.Delete(ctx, id)
}

func (s *Service) BatchCreate(ctx context.Context, records []Record) error {
	return s.store.BatchCreate(ctx, records)
}

func (s *Service) BatchUpdate(ctx context.Context, ids []any, attributes Record) (int64, error) {
	return s.store.BatchUpdate(ctx, ids, attributes)
}

func (s *Service) BatchDelete(ctx context.Context, ids []any) (int64, error) {
	return s.store.BatchDelete(ctx, ids)
}

func (s *Service) UpdateOrCreate(ctx context.Context, attributes, values Record) (Record, error) {
	return s.store.UpdateOrCreate(ctx, attributes, values)
}

func (s *Service) Exists(ctx context.Context, conditions []any) (bool, error) {
	return s.store.Exists(ctx, conditions)
}

func (s *Service) Count(ctx context.Context, conditions []any) (int, error) {
	return s.store.Count(ctx, conditions)
}
