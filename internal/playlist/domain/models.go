package domain

import (
	"time"

	"github.com/google/uuid"
)

// Metadata is the aggregate summary of a playlist. It is always recomputed
// from the video order and the live catalog, never hand-edited.
type Metadata struct {
	TotalDurationSeconds int
	VideoCount           int
	TotalSizeBytes       int64
}

// Playlist is an ordered collection of video references. VideoOrder is the
// sole ordering authority and contains no duplicates.
type Playlist struct {
	ID           uuid.UUID
	Name         string
	Description  string
	VideoOrder   []uuid.UUID
	DateCreated  time.Time
	LastModified time.Time
	Meta         Metadata
}

// IndexOf returns the position of a video in the order, or -1.
func (p *Playlist) IndexOf(videoID uuid.UUID) int {
	for i, id := range p.VideoOrder {
		if id == videoID {
			return i
		}
	}
	return -1
}

// Contains reports whether the playlist references a video.
func (p *Playlist) Contains(videoID uuid.UUID) bool {
	return p.IndexOf(videoID) >= 0
}

// Clone returns a deep copy safe to hand to callers.
func (p *Playlist) Clone() *Playlist {
	cp := *p
	cp.VideoOrder = append([]uuid.UUID(nil), p.VideoOrder...)
	return &cp
}
