package crud

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
)

var (
	// ErrNotFound indicates the requested entity does not exist or is deleted.
	ErrNotFound = errors.New("crud: entity not found")
	// ErrAlreadyDeleted indicates a delete was requested for a tombstoned row.
	ErrAlreadyDeleted = errors.New("crud: entity already deleted")
)

// Entity constrains the generic layer to pointer types carrying an identity
// and a tombstone.
type Entity[T any] interface {
	*T
	models.SoftDeletable
}

// Bindings supplies the DTO mapping functions for one entity type.
// ApplyCreate fills a fresh entity from the create DTO; ApplyPatch copies
// only the non-nil fields of the update DTO onto an existing entity;
// Present maps an entity to its details DTO. The context is the request
// context, for bindings that validate against the database.
type Bindings[PT any, C any, U any, D any] struct {
	ApplyCreate func(context.Context, PT, C) error
	ApplyPatch  func(context.Context, PT, U) error
	Present     func(PT) D
}

// Service implements create/read/patch/soft-delete for one entity type.
// Deleted rows are invisible to every read path but survive physically
// until the tombstone sweeper purges them.
type Service[T any, PT Entity[T], C any, U any, D any] struct {
	db        *gorm.DB
	bindings  Bindings[PT, C, U, D]
	retention time.Duration
	now       func() time.Time
}

// Option customises a Service.
type Option func(*serviceSettings)

type serviceSettings struct {
	retention time.Duration
	now       func() time.Time
}

// WithRetention overrides the soft-delete retention window.
func WithRetention(retention time.Duration) Option {
	return func(s *serviceSettings) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *serviceSettings) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a CRUD service for one entity type.
func NewService[T any, PT Entity[T], C any, U any, D any](db *gorm.DB, bindings Bindings[PT, C, U, D], opts ...Option) (*Service[T, PT, C, U, D], error) {
	if db == nil {
		return nil, errors.New("crud: db is required")
	}
	if bindings.ApplyCreate == nil || bindings.Present == nil {
		return nil, errors.New("crud: create and present bindings are required")
	}

	settings := serviceSettings{
		retention: models.DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &Service[T, PT, C, U, D]{
		db:        db,
		bindings:  bindings,
		retention: settings.retention,
		now:       settings.now,
	}, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Create persists a new entity mapped from the create DTO.
func (s *Service[T, PT, C, U, D]) Create(ctx context.Context, input C) (D, error) {
	var zero D
	ctx = ensureContext(ctx)

	var entity T
	pt := PT(&entity)
	if err := s.bindings.ApplyCreate(ctx, pt, input); err != nil {
		return zero, err
	}

	if err := s.db.WithContext(ctx).Create(&entity).Error; err != nil {
		return zero, err
	}
	return s.bindings.Present(pt), nil
}

// GetOne returns the details of a single non-deleted entity.
func (s *Service[T, PT, C, U, D]) GetOne(ctx context.Context, id string) (D, error) {
	var zero D
	pt, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	return s.bindings.Present(pt), nil
}

// GetAll returns details for every non-deleted entity. An empty result is
// not an error.
func (s *Service[T, PT, C, U, D]) GetAll(ctx context.Context) ([]D, error) {
	ctx = ensureContext(ctx)

	var rows []T
	if err := s.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	dtos := make([]D, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, s.bindings.Present(PT(&rows[i])))
	}
	return dtos, nil
}

// Patch applies the non-nil fields of the update DTO to an existing entity.
// An empty patch is a no-op equivalent to GetOne.
func (s *Service[T, PT, C, U, D]) Patch(ctx context.Context, id string, input U) (D, error) {
	var zero D
	ctx = ensureContext(ctx)

	pt, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}

	if s.bindings.ApplyPatch != nil {
		if err := s.bindings.ApplyPatch(ctx, pt, input); err != nil {
			return zero, err
		}
	}

	if err := s.db.WithContext(ctx).Save(pt).Error; err != nil {
		return zero, err
	}
	return s.bindings.Present(pt), nil
}

// Delete tombstones an entity. The row is hidden immediately and removed
// permanently once the retention window has passed.
func (s *Service[T, PT, C, U, D]) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	pt, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	pt.Meta().MarkDeleted(s.now(), s.retention)
	return s.db.WithContext(ctx).Save(pt).Error
}

// DB exposes the underlying handle for callers composing extra queries.
func (s *Service[T, PT, C, U, D]) DB() *gorm.DB { return s.db }

func (s *Service[T, PT, C, U, D]) load(ctx context.Context, id string) (PT, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var entity T
	err := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return PT(&entity), nil
}
