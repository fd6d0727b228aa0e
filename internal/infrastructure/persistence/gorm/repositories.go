package gorm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	catalogdomain "github.com/reelpack/reelpack/internal/catalog/domain"
	catalogrepo "github.com/reelpack/reelpack/internal/catalog/repository"
	playlistdomain "github.com/reelpack/reelpack/internal/playlist/domain"
	playlistrepo "github.com/reelpack/reelpack/internal/playlist/repository"
	"github.com/reelpack/reelpack/pkg/errors"
)

// OverrideRepository is the GORM implementation of the override store.
type OverrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository creates an override repository.
func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

var _ catalogrepo.OverrideRepository = (*OverrideRepository)(nil)

func (r *OverrideRepository) Save(ctx context.Context, override *catalogdomain.Override) error {
	rec, err := overrideToRecord(override)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (r *OverrideRepository) Get(ctx context.Context, videoID uuid.UUID) (*catalogdomain.Override, error) {
	var rec OverrideRecord
	err := r.db.WithContext(ctx).First(&rec, "video_id = ?", videoID.String()).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound(fmt.Sprintf("no override for video %s", videoID))
		}
		return nil, err
	}
	return recordToOverride(&rec)
}

func (r *OverrideRepository) List(ctx context.Context) ([]*catalogdomain.Override, error) {
	var recs []OverrideRecord
	if err := r.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	overrides := make([]*catalogdomain.Override, 0, len(recs))
	for i := range recs {
		o, err := recordToOverride(&recs[i])
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

func (r *OverrideRepository) Delete(ctx context.Context, videoID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&OverrideRecord{}, "video_id = ?", videoID.String()).Error
}

// OrphanRepository is the GORM implementation of the orphan store.
type OrphanRepository struct {
	db *gorm.DB
}

// NewOrphanRepository creates an orphan repository.
func NewOrphanRepository(db *gorm.DB) *OrphanRepository {
	return &OrphanRepository{db: db}
}

var _ catalogrepo.OrphanRepository = (*OrphanRepository)(nil)

func (r *OrphanRepository) Save(ctx context.Context, orphan *catalogdomain.Orphan) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(orphanToRecord(orphan)).Error
}

func (r *OrphanRepository) Get(ctx context.Context, videoID uuid.UUID) (*catalogdomain.Orphan, error) {
	var rec OrphanRecord
	err := r.db.WithContext(ctx).First(&rec, "video_id = ?", videoID.String()).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound(fmt.Sprintf("no orphan marker for video %s", videoID))
		}
		return nil, err
	}
	return recordToOrphan(&rec)
}

func (r *OrphanRepository) List(ctx context.Context) ([]*catalogdomain.Orphan, error) {
	var recs []OrphanRecord
	if err := r.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	orphans := make([]*catalogdomain.Orphan, 0, len(recs))
	for i := range recs {
		o, err := recordToOrphan(&recs[i])
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, o)
	}
	return orphans, nil
}

func (r *OrphanRepository) Delete(ctx context.Context, videoID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&OrphanRecord{}, "video_id = ?", videoID.String()).Error
}

// PlaylistRepository is the GORM implementation of the playlist store.
type PlaylistRepository struct {
	db *gorm.DB
}

// NewPlaylistRepository creates a playlist repository.
func NewPlaylistRepository(db *gorm.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

var _ playlistrepo.Repository = (*PlaylistRepository)(nil)

func (r *PlaylistRepository) Save(ctx context.Context, playlist *playlistdomain.Playlist) error {
	rec, err := playlistToRecord(playlist)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (r *PlaylistRepository) Get(ctx context.Context, id uuid.UUID) (*playlistdomain.Playlist, error) {
	var rec PlaylistRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id.String()).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound(fmt.Sprintf("playlist %s not found", id))
		}
		return nil, err
	}
	return recordToPlaylist(&rec)
}

func (r *PlaylistRepository) List(ctx context.Context) ([]*playlistdomain.Playlist, error) {
	var recs []PlaylistRecord
	if err := r.db.WithContext(ctx).Order("date_created").Find(&recs).Error; err != nil {
		return nil, err
	}
	playlists := make([]*playlistdomain.Playlist, 0, len(recs))
	for i := range recs {
		p, err := recordToPlaylist(&recs[i])
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

func (r *PlaylistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&PlaylistRecord{}, "id = ?", id.String()).Error
}
