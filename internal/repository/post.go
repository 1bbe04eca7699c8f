package repository

import (
	"context"

	"github.com/google/uuid"

	"snapfeed/internal/domain"
)

// PostRepository exposes persistence operations for feed posts.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ListNewestFirst(ctx context.Context) ([]domain.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
