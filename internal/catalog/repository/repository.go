package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/reelpack/reelpack/internal/catalog/domain"
)

// OverrideRepository persists user edit overlays independently of the
// in-memory catalog snapshot.
type OverrideRepository interface {
	Save(ctx context.Context, override *domain.Override) error
	Get(ctx context.Context, videoID uuid.UUID) (*domain.Override, error)
	List(ctx context.Context) ([]*domain.Override, error)
	Delete(ctx context.Context, videoID uuid.UUID) error
}

// OrphanRepository persists orphan markers for assets whose remote deletion
// failed.
type OrphanRepository interface {
	Save(ctx context.Context, orphan *domain.Orphan) error
	Get(ctx context.Context, videoID uuid.UUID) (*domain.Orphan, error)
	List(ctx context.Context) ([]*domain.Orphan, error)
	Delete(ctx context.Context, videoID uuid.UUID) error
}
