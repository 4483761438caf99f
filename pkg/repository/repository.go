package repository

import (
	"context"
	"errors"

	"affiliate-platform/pkg/db/option"

	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store port. Query structs use gorm's
// struct-condition semantics: zero-valued fields are ignored.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, query *T, values any) error
	BatchCreate(ctx context.Context, resources []*T) error
	Count(ctx context.Context, query *T) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (s *store[T]) apply(ctx context.Context, opts []option.QueryOption) *gorm.DB {
	tx := s.db.WithContext(ctx)
	for _, opt := range opts {
		tx = opt(tx)
	}
	return tx
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var resources []*T
	if err := s.apply(ctx, opts).Where(query).Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// FindOne returns (nil, nil) when no row matches.
func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var resource T
	if err := s.apply(ctx, opts).Where(query).First(&resource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &resource, nil
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

func (s *store[T]) Update(ctx context.Context, query *T, values any) error {
	return s.db.WithContext(ctx).Model(new(T)).Where(query).Updates(values).Error
}

func (s *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(resources).Error
}

func (s *store[T]) Count(ctx context.Context, query *T) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(new(T)).Where(query).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
