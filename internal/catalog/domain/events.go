package domain

import (
	"time"

	"github.com/google/uuid"
)

// CatalogRefreshedEvent is published after a successful catalog refresh
type CatalogRefreshedEvent struct {
	VideoCount int
	timestamp  int64
}

func NewCatalogRefreshedEvent(videoCount int) *CatalogRefreshedEvent {
	return &CatalogRefreshedEvent{
		VideoCount: videoCount,
		timestamp:  time.Now().Unix(),
	}
}

func (e *CatalogRefreshedEvent) EventType() string {
	return "catalog.refreshed"
}

func (e *CatalogRefreshedEvent) Timestamp() int64 {
	return e.timestamp
}

func (e *CatalogRefreshedEvent) AggregateID() string {
	return ""
}

// VideoUpdatedEvent is published when a video's override is applied
type VideoUpdatedEvent struct {
	Video     *Video
	timestamp int64
}

func NewVideoUpdatedEvent(video *Video) *VideoUpdatedEvent {
	return &VideoUpdatedEvent{
		Video:     video,
		timestamp: time.Now().Unix(),
	}
}

func (e *VideoUpdatedEvent) EventType() string {
	return "video.updated"
}

func (e *VideoUpdatedEvent) Timestamp() int64 {
	return e.timestamp
}

func (e *VideoUpdatedEvent) AggregateID() string {
	return e.Video.ID.String()
}

// VideoDeletedEvent is published when a video is removed from the catalog
type VideoDeletedEvent struct {
	VideoID   uuid.UUID
	Key       string
	Forced    bool
	timestamp int64
}

func NewVideoDeletedEvent(videoID uuid.UUID, key string, forced bool) *VideoDeletedEvent {
	return &VideoDeletedEvent{
		VideoID:   videoID,
		Key:       key,
		Forced:    forced,
		timestamp: time.Now().Unix(),
	}
}

func (e *VideoDeletedEvent) EventType() string {
	return "video.deleted"
}

func (e *VideoDeletedEvent) Timestamp() int64 {
	return e.timestamp
}

func (e *VideoDeletedEvent) AggregateID() string {
	return e.VideoID.String()
}
