package domain

import (
	"path"
	"time"

	"github.com/google/uuid"
)

// videoNamespace is the fixed UUIDv5 namespace for deriving video IDs from
// store keys. The same object key always maps to the same ID across refreshes.
var videoNamespace = uuid.MustParse("8f2f3a84-1f5d-4c5e-9a37-62dbb6c01d5a")

// VideoIDForKey derives the stable video ID for an object-store key.
func VideoIDForKey(key string) uuid.UUID {
	return uuid.NewSHA1(videoNamespace, []byte(key))
}

// StorageRef locates a video's backing object in the remote store.
type StorageRef struct {
	Key          string
	Bucket       string
	ETag         string
	UploadDate   time.Time
	ThumbnailKey string
	ThumbnailURL string
}

// Video is a catalog record. The remote store owns the canonical set; user
// edits live in an Override merged on top of the store-derived record.
type Video struct {
	ID              uuid.UUID
	Title           string
	Filename        string
	DurationSeconds int
	FileSizeBytes   int64
	Tags            []string
	Resolution      string
	DateAdded       time.Time
	LastModified    time.Time
	Storage         StorageRef
}

// VideoFromObject builds the store-derived record for an object under the
// video prefix. Title defaults to the filename stem until overridden.
func VideoFromObject(key, bucket string, size int64, lastModified time.Time, etag string) *Video {
	filename := path.Base(key)
	title := filename
	if ext := path.Ext(filename); ext != "" {
		title = filename[:len(filename)-len(ext)]
	}
	return &Video{
		ID:            VideoIDForKey(key),
		Title:         title,
		Filename:      filename,
		FileSizeBytes: size,
		DateAdded:     lastModified,
		LastModified:  lastModified,
		Storage: StorageRef{
			Key:        key,
			Bucket:     bucket,
			ETag:       etag,
			UploadDate: lastModified,
		},
	}
}

// Override holds the user-edited fields for a video, keyed by video ID and
// persisted independently of the catalog snapshot. Nil pointer fields are
// "not overridden".
type Override struct {
	VideoID         uuid.UUID
	Title           *string
	Tags            []string
	DurationSeconds *int
	Resolution      *string
	UpdatedAt       time.Time
}

// Apply merges the override into a store-derived record.
func (o *Override) Apply(v *Video) {
	if o == nil {
		return
	}
	if o.Title != nil {
		v.Title = *o.Title
	}
	if o.Tags != nil {
		v.Tags = append([]string(nil), o.Tags...)
	}
	if o.DurationSeconds != nil {
		v.DurationSeconds = *o.DurationSeconds
	}
	if o.Resolution != nil {
		v.Resolution = *o.Resolution
	}
	if o.UpdatedAt.After(v.LastModified) {
		v.LastModified = o.UpdatedAt
	}
}

// Merge folds a later patch into the override, leaving untouched fields alone.
func (o *Override) Merge(patch Override) {
	if patch.Title != nil {
		o.Title = patch.Title
	}
	if patch.Tags != nil {
		o.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.DurationSeconds != nil {
		o.DurationSeconds = patch.DurationSeconds
	}
	if patch.Resolution != nil {
		o.Resolution = patch.Resolution
	}
	o.UpdatedAt = time.Now().UTC()
}

// Orphan records a video whose remote deletion failed but whose local record
// was force-removed. Orphans are surfaced for manual reconciliation and never
// retried without operator action.
type Orphan struct {
	VideoID  uuid.UUID
	Key      string
	Bucket   string
	Reason   string
	Attempts int
	ForcedAt time.Time
}

// DeleteResult reports the per-sub-operation outcome of a video deletion.
// Flags are independent; a partial failure is never collapsed into one bool.
type DeleteResult struct {
	VideoID          uuid.UUID
	RemoteDeleted    bool
	LocalRemoved     bool
	Orphaned         bool
	PlaylistsTouched int
	RemoteErr        error
}
