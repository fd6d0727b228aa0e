package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/reelpack/reelpack/internal/playlist/domain"
)

// Repository persists playlists. Playlists are owned locally; no remote copy
// exists outside exported archives.
type Repository interface {
	Save(ctx context.Context, playlist *domain.Playlist) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Playlist, error)
	List(ctx context.Context) ([]*domain.Playlist, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
