// Package repository provides a small generic gorm store for simple
// per-model persistence. Services fall back to raw SQL for hot paths.
package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository exposes basic persistence operations for a gorm model.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	CreateTx(ctx context.Context, tx *gorm.DB, record *T) error
	FindByID(ctx context.Context, id any) (*T, error)
	Find(ctx context.Context, conds map[string]any) ([]T, error)
	Save(ctx context.Context, record *T) error
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore constructs a Repository bound to the given connection.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *store[T]) CreateTx(ctx context.Context, tx *gorm.DB, record *T) error {
	return tx.WithContext(ctx).Create(record).Error
}

func (s *store[T]) FindByID(ctx context.Context, id any) (*T, error) {
	var record T
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store[T]) Find(ctx context.Context, conds map[string]any) ([]T, error) {
	var records []T
	query := s.db.WithContext(ctx)
	for key, value := range conds {
		query = query.Where(key+" = ?", value)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store[T]) Save(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Save(record).Error
}
