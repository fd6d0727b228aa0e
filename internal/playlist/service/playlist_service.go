package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	catalogdomain "github.com/reelpack/reelpack/internal/catalog/domain"
	"github.com/reelpack/reelpack/internal/playlist/domain"
	"github.com/reelpack/reelpack/internal/playlist/repository"
	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/events"
	"github.com/reelpack/reelpack/pkg/interfaces"
)

// CatalogView is the read-only catalog surface the playlist store checks
// references against.
type CatalogView interface {
	Get(id uuid.UUID) (*catalogdomain.Video, bool)
}

// PlaylistService owns ordered playlists and enforces referential integrity
// against the live catalog on every mutation.
type PlaylistService struct {
	repo     repository.Repository
	catalog  CatalogView
	eventBus interfaces.EventBus
	logger   interfaces.Logger

	mu        sync.RWMutex
	playlists map[uuid.UUID]*domain.Playlist
}

// NewPlaylistService creates a playlist service.
func NewPlaylistService(
	repo repository.Repository,
	catalog CatalogView,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
) *PlaylistService {
	return &PlaylistService{
		repo:      repo,
		catalog:   catalog,
		eventBus:  eventBus,
		logger:    logger,
		playlists: make(map[uuid.UUID]*domain.Playlist),
	}
}

// Restore loads persisted playlists into memory.
func (s *PlaylistService) Restore(ctx context.Context) error {
	persisted, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range persisted {
		s.playlists[p.ID] = p
	}
	s.logger.Info("playlists restored", interfaces.Int("count", len(persisted)))
	return nil
}

// Create creates a new empty playlist.
func (s *PlaylistService) Create(ctx context.Context, name, description string) (*domain.Playlist, error) {
	if name == "" {
		return nil, errors.BadRequest("playlist name is required")
	}

	now := time.Now().UTC()
	playlist := &domain.Playlist{
		ID:           uuid.New(),
		Name:         name,
		Description:  description,
		DateCreated:  now,
		LastModified: now,
	}

	if err := s.repo.Save(ctx, playlist); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.playlists[playlist.ID] = playlist
	s.mu.Unlock()

	s.publish(ctx, "playlist.created", playlist)
	s.logger.Info("playlist created",
		interfaces.String("id", playlist.ID.String()),
		interfaces.String("name", name))

	return playlist.Clone(), nil
}

// Get returns a copy of a playlist.
func (s *PlaylistService) Get(id uuid.UUID) (*domain.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.playlists[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// List returns copies of all playlists.
func (s *PlaylistService) List() []*domain.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		out = append(out, p.Clone())
	}
	return out
}

// Rename renames a playlist.
func (s *PlaylistService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	if name == "" {
		return errors.BadRequest("playlist name is required")
	}
	return s.mutate(ctx, id, func(p *domain.Playlist) error {
		p.Name = name
		return nil
	})
}

// Delete removes a playlist.
func (s *PlaylistService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	playlist, ok := s.playlists[id]
	if ok {
		delete(s.playlists, id)
	}
	s.mu.Unlock()
	if !ok {
		return errors.NotFound(fmt.Sprintf("playlist %s not found", id))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, "playlist.deleted", playlist)
	return nil
}

// AddVideo inserts a video reference. It fails without mutation if the video
// does not resolve in the current catalog snapshot or is already present.
func (s *PlaylistService) AddVideo(ctx context.Context, playlistID, videoID uuid.UUID, atIndex *int) error {
	if _, ok := s.catalog.Get(videoID); !ok {
		return errors.Integrity(fmt.Sprintf("video %s does not exist in the catalog", videoID))
	}

	return s.mutate(ctx, playlistID, func(p *domain.Playlist) error {
		if p.Contains(videoID) {
			return errors.Conflict(fmt.Sprintf("video %s already in playlist", videoID))
		}
		idx := len(p.VideoOrder)
		if atIndex != nil {
			idx = clamp(*atIndex, 0, len(p.VideoOrder))
		}
		p.VideoOrder = append(p.VideoOrder, uuid.Nil)
		copy(p.VideoOrder[idx+1:], p.VideoOrder[idx:])
		p.VideoOrder[idx] = videoID
		return nil
	})
}

// RemoveVideo removes a video reference.
func (s *PlaylistService) RemoveVideo(ctx context.Context, playlistID, videoID uuid.UUID) error {
	return s.mutate(ctx, playlistID, func(p *domain.Playlist) error {
		idx := p.IndexOf(videoID)
		if idx < 0 {
			return errors.NotFound(fmt.Sprintf("video %s not in playlist", videoID))
		}
		p.VideoOrder = append(p.VideoOrder[:idx], p.VideoOrder[idx+1:]...)
		return nil
	})
}

// MoveVideo moves a video between playlists. A nil source is an add on the
// target. With a source it is remove-then-add; if the add fails the removal
// is not rolled back (at-most-once semantics, kept intentionally).
func (s *PlaylistService) MoveVideo(ctx context.Context, fromID *uuid.UUID, toID, videoID uuid.UUID, atIndex *int) error {
	if fromID != nil {
		if err := s.RemoveVideo(ctx, *fromID, videoID); err != nil {
			return err
		}
	}
	return s.AddVideo(ctx, toID, videoID, atIndex)
}

// Reorder splices a video out of the order and reinserts it at newIndex,
// clamped to the valid range. Aggregates are unaffected by pure reordering.
func (s *PlaylistService) Reorder(ctx context.Context, playlistID, videoID uuid.UUID, newIndex int) error {
	return s.mutate(ctx, playlistID, func(p *domain.Playlist) error {
		idx := p.IndexOf(videoID)
		if idx < 0 {
			return errors.NotFound(fmt.Sprintf("video %s not in playlist", videoID))
		}
		p.VideoOrder = append(p.VideoOrder[:idx], p.VideoOrder[idx+1:]...)
		target := clamp(newIndex, 0, len(p.VideoOrder))
		p.VideoOrder = append(p.VideoOrder, uuid.Nil)
		copy(p.VideoOrder[target+1:], p.VideoOrder[target:])
		p.VideoOrder[target] = videoID
		return nil
	})
}

// RemoveVideoFromAll strips a video from every playlist, returning how many
// playlists were touched. Used by the catalog reconciler on video deletion.
func (s *PlaylistService) RemoveVideoFromAll(ctx context.Context, videoID uuid.UUID) (int, error) {
	s.mu.RLock()
	var affected []uuid.UUID
	for id, p := range s.playlists {
		if p.Contains(videoID) {
			affected = append(affected, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range affected {
		if err := s.RemoveVideo(ctx, id, videoID); err != nil && !errors.IsNotFound(err) {
			return len(affected), err
		}
	}
	return len(affected), nil
}

// mutate applies fn to a clone of the playlist, recomputes aggregates,
// persists the clone, and only then swaps it into the live map. A failed save
// leaves both memory and disk on the previous state, so no caller observes an
// edit the repository rejected.
func (s *PlaylistService) mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Playlist) error) error {
	s.mu.Lock()
	current, ok := s.playlists[id]
	if !ok {
		s.mu.Unlock()
		return errors.NotFound(fmt.Sprintf("playlist %s not found", id))
	}

	updated := current.Clone()
	if err := fn(updated); err != nil {
		s.mu.Unlock()
		return err
	}

	updated.Meta = s.computeMetadata(updated)
	updated.LastModified = time.Now().UTC()
	s.mu.Unlock()

	if err := s.repo.Save(ctx, updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.playlists[id] = updated
	s.mu.Unlock()

	s.publish(ctx, "playlist.updated", updated)
	return nil
}

// computeMetadata derives aggregates from the order and the live video set.
// Caller holds the lock.
func (s *PlaylistService) computeMetadata(p *domain.Playlist) domain.Metadata {
	meta := domain.Metadata{VideoCount: len(p.VideoOrder)}
	for _, videoID := range p.VideoOrder {
		if video, ok := s.catalog.Get(videoID); ok {
			meta.TotalDurationSeconds += video.DurationSeconds
			meta.TotalSizeBytes += video.FileSizeBytes
		}
	}
	return meta
}

func (s *PlaylistService) publish(ctx context.Context, eventType string, p *domain.Playlist) {
	s.eventBus.PublishAsync(ctx, events.NewAggregateEvent(eventType, p.ID.String(), map[string]interface{}{
		"name":        p.Name,
		"video_count": p.Meta.VideoCount,
	}))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
