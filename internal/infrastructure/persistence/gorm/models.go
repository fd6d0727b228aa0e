package gorm

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	catalogdomain "github.com/reelpack/reelpack/internal/catalog/domain"
	playlistdomain "github.com/reelpack/reelpack/internal/playlist/domain"
)

// OverrideRecord persists a user edit overlay row.
type OverrideRecord struct {
	VideoID         string `gorm:"primaryKey;size:36"`
	Title           *string
	Tags            string // JSON-encoded []string; empty means not overridden
	DurationSeconds *int
	Resolution      *string
	UpdatedAt       time.Time
}

func (OverrideRecord) TableName() string { return "video_overrides" }

func overrideToRecord(o *catalogdomain.Override) (*OverrideRecord, error) {
	rec := &OverrideRecord{
		VideoID:         o.VideoID.String(),
		Title:           o.Title,
		DurationSeconds: o.DurationSeconds,
		Resolution:      o.Resolution,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Tags != nil {
		raw, err := json.Marshal(o.Tags)
		if err != nil {
			return nil, err
		}
		rec.Tags = string(raw)
	}
	return rec, nil
}

func recordToOverride(rec *OverrideRecord) (*catalogdomain.Override, error) {
	id, err := uuid.Parse(rec.VideoID)
	if err != nil {
		return nil, err
	}
	o := &catalogdomain.Override{
		VideoID:         id,
		Title:           rec.Title,
		DurationSeconds: rec.DurationSeconds,
		Resolution:      rec.Resolution,
		UpdatedAt:       rec.UpdatedAt,
	}
	if rec.Tags != "" {
		if err := json.Unmarshal([]byte(rec.Tags), &o.Tags); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OrphanRecord persists an orphan marker.
type OrphanRecord struct {
	VideoID  string `gorm:"primaryKey;size:36"`
	Key      string
	Bucket   string
	Reason   string
	Attempts int
	ForcedAt time.Time
}

func (OrphanRecord) TableName() string { return "orphaned_assets" }

func orphanToRecord(o *catalogdomain.Orphan) *OrphanRecord {
	return &OrphanRecord{
		VideoID:  o.VideoID.String(),
		Key:      o.Key,
		Bucket:   o.Bucket,
		Reason:   o.Reason,
		Attempts: o.Attempts,
		ForcedAt: o.ForcedAt,
	}
}

func recordToOrphan(rec *OrphanRecord) (*catalogdomain.Orphan, error) {
	id, err := uuid.Parse(rec.VideoID)
	if err != nil {
		return nil, err
	}
	return &catalogdomain.Orphan{
		VideoID:  id,
		Key:      rec.Key,
		Bucket:   rec.Bucket,
		Reason:   rec.Reason,
		Attempts: rec.Attempts,
		ForcedAt: rec.ForcedAt,
	}, nil
}

// PlaylistRecord persists a playlist row. The video order is stored as a
// JSON-encoded id list; aggregates are denormalized for listing queries.
type PlaylistRecord struct {
	ID                   string `gorm:"primaryKey;size:36"`
	Name                 string `gorm:"index"`
	Description          string
	VideoOrder           string // JSON-encoded []uuid.UUID
	DateCreated          time.Time
	LastModified         time.Time
	TotalDurationSeconds int
	VideoCount           int
	TotalSizeBytes       int64
}

func (PlaylistRecord) TableName() string { return "playlists" }

func playlistToRecord(p *playlistdomain.Playlist) (*PlaylistRecord, error) {
	order, err := json.Marshal(p.VideoOrder)
	if err != nil {
		return nil, err
	}
	return &PlaylistRecord{
		ID:                   p.ID.String(),
		Name:                 p.Name,
		Description:          p.Description,
		VideoOrder:           string(order),
		DateCreated:          p.DateCreated,
		LastModified:         p.LastModified,
		TotalDurationSeconds: p.Meta.TotalDurationSeconds,
		VideoCount:           p.Meta.VideoCount,
		TotalSizeBytes:       p.Meta.TotalSizeBytes,
	}, nil
}

func recordToPlaylist(rec *PlaylistRecord) (*playlistdomain.Playlist, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, err
	}
	p := &playlistdomain.Playlist{
		ID:           id,
		Name:         rec.Name,
		Description:  rec.Description,
		DateCreated:  rec.DateCreated,
		LastModified: rec.LastModified,
		Meta: playlistdomain.Metadata{
			TotalDurationSeconds: rec.TotalDurationSeconds,
			VideoCount:           rec.VideoCount,
			TotalSizeBytes:       rec.TotalSizeBytes,
		},
	}
	if rec.VideoOrder != "" {
		if err := json.Unmarshal([]byte(rec.VideoOrder), &p.VideoOrder); err != nil {
			return nil, err
		}
	}
	return p, nil
}
